package risk

// Method selects the VaR computation methodology.
type Method string

const (
	MethodHistorical Method = "historical"
	MethodParametric Method = "parametric"
	MethodMonteCarlo Method = "monte_carlo"
)

// ParseMethod validates a method string from an API request or config value.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodHistorical, MethodParametric, MethodMonteCarlo:
		return Method(s), nil
	}
	return "", &UnknownMethodError{Method: s}
}

// VaRResult holds Value-at-Risk figures for a single method.
// All VaR/CVaR values are positive fractional losses (magnitude, not signed return).
// Monthly VaR is always daily VaR scaled by sqrt(21); it is never re-derived from
// monthly data. This square-root-of-time scaling assumes i.i.d. returns and is kept
// as-is because downstream consumers depend on the exact relationship.
type VaRResult struct {
	Method       Method  `json:"method"`
	VaR95Daily   float64 `json:"var_95_daily"`
	VaR95Monthly float64 `json:"var_95_monthly"`
	CVaR95       float64 `json:"cvar_95"`

	// Monte Carlo only
	VaR99Daily  float64 `json:"var_99_daily,omitempty"`
	WorstCase   float64 `json:"worst_case,omitempty"`
	BestCase    float64 `json:"best_case,omitempty"`
	Simulations int     `json:"simulations,omitempty"`
}

// DrawdownMetrics describes the worst peak-to-trough decline of a price series.
type DrawdownMetrics struct {
	MaxDrawdown    float64 `json:"max_drawdown"`     // positive magnitude
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // magnitude * 100
	PeakIndex      int     `json:"peak_index"`
	TroughIndex    int     `json:"trough_index"`
	RecoveryDays   int     `json:"recovery_days"`
}

// RiskMetrics is the consolidated output of ComprehensiveRisk.
// Produced fresh per call and never mutated after construction.
type RiskMetrics struct {
	VaR            VaRResult          `json:"var"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	SortinoRatio   float64            `json:"sortino_ratio"`
	Volatility     float64            `json:"volatility"`
	MaxDrawdown    float64            `json:"max_drawdown"`
	MaxDrawdownPct float64            `json:"max_drawdown_pct"`
	Beta           *float64           `json:"beta,omitempty"`
	Alpha          *float64           `json:"alpha,omitempty"`
	StressTests    map[string]float64 `json:"stress_tests"`
	PortfolioValue float64            `json:"portfolio_value"`
}
