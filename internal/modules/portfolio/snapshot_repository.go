package portfolio

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SnapshotRepository persists computed risk and ESG snapshots per portfolio.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a snapshot repository.
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// SaveRisk inserts a risk snapshot and returns it with generated ID and
// timestamp filled in.
func (r *SnapshotRepository) SaveRisk(s RiskSnapshot) (RiskSnapshot, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CalculatedAt.IsZero() {
		s.CalculatedAt = time.Now().UTC()
	}

	stressJSON, err := json.Marshal(s.StressTests)
	if err != nil {
		return RiskSnapshot{}, fmt.Errorf("failed to encode stress tests: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO risk_snapshots (id, portfolio_id, calculated_at,
			var_95_daily, var_95_monthly, var_99_daily, cvar_95,
			sharpe_ratio, sortino_ratio, volatility, max_drawdown, max_drawdown_pct,
			beta, alpha, stress_tests, portfolio_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PortfolioID, s.CalculatedAt.Unix(),
		s.VaR95Daily, s.VaR95Monthly, s.VaR99Daily, s.CVaR95,
		s.SharpeRatio, s.SortinoRatio, s.Volatility, s.MaxDrawdown, s.MaxDrawdownPct,
		s.Beta, s.Alpha, string(stressJSON), s.PortfolioValue,
	)
	if err != nil {
		return RiskSnapshot{}, fmt.Errorf("failed to insert risk snapshot: %w", err)
	}

	r.log.Debug().Str("portfolio_id", s.PortfolioID).Msg("Saved risk snapshot")
	return s, nil
}

// LatestRisk returns the most recent risk snapshot for a portfolio, or
// ErrNotFound when none has been computed yet.
func (r *SnapshotRepository) LatestRisk(portfolioID string) (RiskSnapshot, error) {
	row := r.db.QueryRow(
		`SELECT id, portfolio_id, calculated_at, var_95_daily, var_95_monthly,
			var_99_daily, cvar_95, sharpe_ratio, sortino_ratio, volatility,
			max_drawdown, max_drawdown_pct, beta, alpha, stress_tests, portfolio_value
		FROM risk_snapshots WHERE portfolio_id = ?
		ORDER BY calculated_at DESC, id LIMIT 1`,
		portfolioID,
	)

	var s RiskSnapshot
	var calculatedAt int64
	var stressJSON string
	err := row.Scan(
		&s.ID, &s.PortfolioID, &calculatedAt, &s.VaR95Daily, &s.VaR95Monthly,
		&s.VaR99Daily, &s.CVaR95, &s.SharpeRatio, &s.SortinoRatio, &s.Volatility,
		&s.MaxDrawdown, &s.MaxDrawdownPct, &s.Beta, &s.Alpha, &stressJSON, &s.PortfolioValue,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskSnapshot{}, fmt.Errorf("risk snapshot for %s: %w", portfolioID, ErrNotFound)
	}
	if err != nil {
		return RiskSnapshot{}, fmt.Errorf("failed to get risk snapshot: %w", err)
	}

	s.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
	if stressJSON != "" {
		if err := json.Unmarshal([]byte(stressJSON), &s.StressTests); err != nil {
			return RiskSnapshot{}, fmt.Errorf("failed to decode stress tests: %w", err)
		}
	}
	return s, nil
}

// SaveESG inserts an ESG snapshot.
func (r *SnapshotRepository) SaveESG(s ESGSnapshot) (ESGSnapshot, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CalculatedAt.IsZero() {
		s.CalculatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(
		`INSERT INTO esg_snapshots (id, portfolio_id, calculated_at,
			portfolio_esg_score, portfolio_rating, environmental_score,
			social_score, governance_score, carbon_intensity, carbon_footprint, holdings_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.PortfolioID, s.CalculatedAt.Unix(),
		s.PortfolioESGScore, s.PortfolioRating, s.EnvironmentalScore,
		s.SocialScore, s.GovernanceScore, s.CarbonIntensity, s.CarbonFootprint, s.HoldingsCount,
	)
	if err != nil {
		return ESGSnapshot{}, fmt.Errorf("failed to insert ESG snapshot: %w", err)
	}

	r.log.Debug().Str("portfolio_id", s.PortfolioID).Msg("Saved ESG snapshot")
	return s, nil
}

// LatestESG returns the most recent ESG snapshot for a portfolio, or
// ErrNotFound.
func (r *SnapshotRepository) LatestESG(portfolioID string) (ESGSnapshot, error) {
	row := r.db.QueryRow(
		`SELECT id, portfolio_id, calculated_at, portfolio_esg_score, portfolio_rating,
			environmental_score, social_score, governance_score,
			carbon_intensity, carbon_footprint, holdings_count
		FROM esg_snapshots WHERE portfolio_id = ?
		ORDER BY calculated_at DESC, id LIMIT 1`,
		portfolioID,
	)

	var s ESGSnapshot
	var calculatedAt int64
	err := row.Scan(
		&s.ID, &s.PortfolioID, &calculatedAt, &s.PortfolioESGScore, &s.PortfolioRating,
		&s.EnvironmentalScore, &s.SocialScore, &s.GovernanceScore,
		&s.CarbonIntensity, &s.CarbonFootprint, &s.HoldingsCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ESGSnapshot{}, fmt.Errorf("ESG snapshot for %s: %w", portfolioID, ErrNotFound)
	}
	if err != nil {
		return ESGSnapshot{}, fmt.Errorf("failed to get ESG snapshot: %w", err)
	}

	s.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
	return s, nil
}
