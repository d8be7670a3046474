package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CompanyESGRepository handles company_esg rows in portfolio.db.
type CompanyESGRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCompanyESGRepository creates a company ESG repository.
func NewCompanyESGRepository(db *sql.DB, log zerolog.Logger) *CompanyESGRepository {
	return &CompanyESGRepository{
		db:  db,
		log: log.With().Str("repo", "company_esg").Logger(),
	}
}

// Upsert stores a company's ESG record, replacing any previous one.
func (r *CompanyESGRepository) Upsert(c CompanyESG) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO company_esg (ticker, company_name, sector, esg_score,
			environmental_score, social_score, governance_score, esg_rating,
			esg_controversies, raw_metrics, carbon_emissions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker) DO UPDATE SET
			company_name = excluded.company_name,
			sector = excluded.sector,
			esg_score = excluded.esg_score,
			environmental_score = excluded.environmental_score,
			social_score = excluded.social_score,
			governance_score = excluded.governance_score,
			esg_rating = excluded.esg_rating,
			esg_controversies = excluded.esg_controversies,
			raw_metrics = excluded.raw_metrics,
			carbon_emissions = excluded.carbon_emissions,
			updated_at = excluded.updated_at`,
		c.Ticker, c.CompanyName, c.Sector, c.ESGScore,
		c.EnvironmentalScore, c.SocialScore, c.GovernanceScore, c.ESGRating,
		c.Controversies, c.RawMetrics, c.CarbonEmissions, c.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert company ESG for %s: %w", c.Ticker, err)
	}
	return nil
}

const companyColumns = `ticker, company_name, sector, esg_score, environmental_score,
	social_score, governance_score, esg_rating, esg_controversies, raw_metrics,
	carbon_emissions, updated_at`

// GetByTicker returns one company record, or ErrNotFound.
func (r *CompanyESGRepository) GetByTicker(ticker string) (CompanyESG, error) {
	row := r.db.QueryRow(`SELECT `+companyColumns+` FROM company_esg WHERE ticker = ?`, ticker)
	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CompanyESG{}, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return CompanyESG{}, fmt.Errorf("failed to get company ESG: %w", err)
	}
	return c, nil
}

// GetAll returns every stored company record.
func (r *CompanyESGRepository) GetAll() ([]CompanyESG, error) {
	rows, err := r.db.Query(`SELECT ` + companyColumns + ` FROM company_esg ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query company ESG: %w", err)
	}
	defer rows.Close()

	var companies []CompanyESG
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company ESG: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating company ESG: %w", err)
	}
	return companies, nil
}

func scanCompany(row rowScanner) (CompanyESG, error) {
	var c CompanyESG
	var companyName, sector sql.NullString
	var updatedAt int64
	err := row.Scan(
		&c.Ticker, &companyName, &sector, &c.ESGScore,
		&c.EnvironmentalScore, &c.SocialScore, &c.GovernanceScore, &c.ESGRating,
		&c.Controversies, &c.RawMetrics, &c.CarbonEmissions, &updatedAt,
	)
	if err != nil {
		return CompanyESG{}, err
	}
	c.CompanyName = companyName.String
	c.Sector = sector.String
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return c, nil
}
