package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PortfolioRepository handles portfolio rows in portfolio.db.
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a portfolio repository.
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Create inserts a new portfolio and returns it with a generated ID.
func (r *PortfolioRepository) Create(name string) (Portfolio, error) {
	now := time.Now().UTC()
	p := Portfolio{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.Exec(
		`INSERT INTO portfolios (id, name, total_value, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		p.ID, p.Name, now.Unix(), now.Unix(),
	)
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to insert portfolio: %w", err)
	}

	r.log.Info().Str("portfolio_id", p.ID).Str("name", name).Msg("Created portfolio")
	return p, nil
}

const portfolioColumns = `id, name, total_value, esg_score_overall, environmental_score,
	social_score, governance_score, esg_rating, carbon_intensity, carbon_footprint,
	created_at, updated_at`

// GetByID returns one portfolio, or ErrNotFound.
func (r *PortfolioRepository) GetByID(id string) (Portfolio, error) {
	row := r.db.QueryRow(`SELECT `+portfolioColumns+` FROM portfolios WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Portfolio{}, fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Portfolio{}, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return p, nil
}

// List returns all portfolios ordered by creation time.
func (r *PortfolioRepository) List() ([]Portfolio, error) {
	rows, err := r.db.Query(`SELECT ` + portfolioColumns + ` FROM portfolios ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return portfolios, nil
}

// UpdateTotalValue stores the current market value of the portfolio.
func (r *PortfolioRepository) UpdateTotalValue(id string, totalValue float64) error {
	res, err := r.db.Exec(
		`UPDATE portfolios SET total_value = ?, updated_at = ? WHERE id = ?`,
		totalValue, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio value: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	return nil
}

// ESGSummary carries the denormalized ESG aggregate written back onto the
// portfolio row after analytics run.
type ESGSummary struct {
	Overall         float64
	Environmental   float64
	Social          float64
	Governance      float64
	Rating          string
	CarbonIntensity float64
	CarbonFootprint float64
}

// UpdateESGSummary refreshes the portfolio's denormalized ESG fields.
func (r *PortfolioRepository) UpdateESGSummary(id string, s ESGSummary) error {
	res, err := r.db.Exec(
		`UPDATE portfolios SET esg_score_overall = ?, environmental_score = ?,
			social_score = ?, governance_score = ?, esg_rating = ?,
			carbon_intensity = ?, carbon_footprint = ?, updated_at = ?
		WHERE id = ?`,
		s.Overall, s.Environmental, s.Social, s.Governance, s.Rating,
		s.CarbonIntensity, s.CarbonFootprint, time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update ESG summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a portfolio; holdings and snapshots cascade.
func (r *PortfolioRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("portfolio %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (Portfolio, error) {
	var p Portfolio
	var createdAt, updatedAt int64
	err := row.Scan(
		&p.ID, &p.Name, &p.TotalValue,
		&p.ESGScoreOverall, &p.EnvironmentalScore, &p.SocialScore, &p.GovernanceScore,
		&p.ESGRating, &p.CarbonIntensity, &p.CarbonFootprint,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return Portfolio{}, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return p, nil
}
