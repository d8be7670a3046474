// Package portfolio stores portfolios, their holdings, and per-company ESG
// records in portfolio.db, along with computed risk and ESG snapshots.
package portfolio

import "time"

// Portfolio is a named collection of holdings. ESG summary fields mirror the
// latest computed aggregate; they are denormalized for cheap dashboard reads
// and refreshed whenever analytics run.
type Portfolio struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalValue float64 `json:"total_value"`

	ESGScoreOverall    *float64 `json:"esg_score_overall,omitempty"`
	EnvironmentalScore *float64 `json:"environmental_score,omitempty"`
	SocialScore        *float64 `json:"social_score,omitempty"`
	GovernanceScore    *float64 `json:"governance_score,omitempty"`
	ESGRating          *string  `json:"esg_rating,omitempty"`
	CarbonIntensity    *float64 `json:"carbon_intensity,omitempty"`
	CarbonFootprint    *float64 `json:"carbon_footprint,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Holding is one position in a portfolio. CurrentPrice is nil until the
// first price sync succeeds.
type Holding struct {
	ID            string    `json:"id"`
	PortfolioID   string    `json:"portfolio_id"`
	Ticker        string    `json:"ticker"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	PurchaseDate  time.Time `json:"purchase_date"`
	Sector        string    `json:"sector"`
}

// MarketValue values the holding at the current price, falling back to cost
// basis when no quote is available yet.
func (h Holding) MarketValue() float64 {
	price := h.PurchasePrice
	if h.CurrentPrice != nil && *h.CurrentPrice > 0 {
		price = *h.CurrentPrice
	}
	return h.Quantity * price
}

// PriceOrCost returns the current price, or the purchase price when no quote
// is available.
func (h Holding) PriceOrCost() float64 {
	if h.CurrentPrice != nil && *h.CurrentPrice > 0 {
		return *h.CurrentPrice
	}
	return h.PurchasePrice
}

// CompanyESG is the stored ESG record for one company: the scored results
// plus the raw metrics they were computed from.
type CompanyESG struct {
	Ticker      string `json:"ticker"`
	CompanyName string `json:"company_name"`
	Sector      string `json:"sector"`

	ESGScore           *float64 `json:"esg_score,omitempty"`
	EnvironmentalScore *float64 `json:"environmental_score,omitempty"`
	SocialScore        *float64 `json:"social_score,omitempty"`
	GovernanceScore    *float64 `json:"governance_score,omitempty"`
	ESGRating          *string  `json:"esg_rating,omitempty"`
	Controversies      int      `json:"esg_controversies"`

	RawMetrics      []byte  `json:"-"` // json-encoded esg.CompanyInput
	CarbonEmissions float64 `json:"carbon_emissions"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RiskSnapshot is a persisted risk calculation for a portfolio.
type RiskSnapshot struct {
	ID           string    `json:"id"`
	PortfolioID  string    `json:"portfolio_id"`
	CalculatedAt time.Time `json:"calculated_at"`

	VaR95Daily     float64  `json:"var_95_daily"`
	VaR95Monthly   float64  `json:"var_95_monthly"`
	VaR99Daily     float64  `json:"var_99_daily"`
	CVaR95         float64  `json:"cvar_95"`
	SharpeRatio    float64  `json:"sharpe_ratio"`
	SortinoRatio   float64  `json:"sortino_ratio"`
	Volatility     float64  `json:"volatility"`
	MaxDrawdown    float64  `json:"max_drawdown"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	Beta           *float64 `json:"beta,omitempty"`
	Alpha          *float64 `json:"alpha,omitempty"`

	StressTests    map[string]float64 `json:"stress_tests"`
	PortfolioValue float64            `json:"portfolio_value"`
}

// ESGSnapshot is a persisted portfolio ESG aggregate.
type ESGSnapshot struct {
	ID           string    `json:"id"`
	PortfolioID  string    `json:"portfolio_id"`
	CalculatedAt time.Time `json:"calculated_at"`

	PortfolioESGScore  float64 `json:"portfolio_esg_score"`
	PortfolioRating    string  `json:"portfolio_rating"`
	EnvironmentalScore float64 `json:"environmental_score"`
	SocialScore        float64 `json:"social_score"`
	GovernanceScore    float64 `json:"governance_score"`
	CarbonIntensity    float64 `json:"carbon_intensity"`
	CarbonFootprint    float64 `json:"carbon_footprint"`
	HoldingsCount      int     `json:"holdings_count"`
}
