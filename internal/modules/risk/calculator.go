// Package risk computes portfolio risk metrics: Value at Risk under three
// methodologies, risk-adjusted performance ratios, drawdown analysis, stress
// scenarios, and market-relative measures (beta/alpha).
//
// The calculator is pure: it performs no I/O, retains no input, and shares no
// mutable state across calls, so a single instance is safe for concurrent use.
// The only source of non-determinism is the Monte Carlo sampler, which draws
// from the random source injected at construction.
package risk

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// TradingDaysPerYear is the annualization constant for daily series.
	TradingDaysPerYear = 252
	// TradingDaysPerMonth approximates one month for square-root-of-time scaling.
	TradingDaysPerMonth = 21

	// DefaultConfidence is the VaR confidence level used when none is configured.
	DefaultConfidence = 0.95
	// DefaultSimulations is the Monte Carlo sample count used when none is configured.
	DefaultSimulations = 10000
	// DefaultRiskFreeRate is the annual risk-free rate (T-bill proxy).
	DefaultRiskFreeRate = 0.045

	// weight sum tolerance for diversification-ratio inputs
	weightSumTolerance = 1e-6
	// symmetry / unit-diagonal tolerance for correlation matrices
	matrixTolerance = 1e-9
)

// Config holds calculator configuration, fixed at construction.
type Config struct {
	Confidence   float64     // VaR confidence level, defaults to 0.95
	Simulations  int         // Monte Carlo sample count, defaults to 10000
	RiskFreeRate float64     // annual risk-free rate, defaults to 0.045
	Source       rand.Source // random source for Monte Carlo; nil uses the global source
}

// Calculator computes risk metrics over in-memory return and price series.
type Calculator struct {
	confidence   float64
	simulations  int
	riskFreeRate float64
	src          rand.Source
	log          zerolog.Logger
}

// NewCalculator creates a calculator. Zero values in cfg fall back to defaults.
func NewCalculator(cfg Config, log zerolog.Logger) *Calculator {
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = DefaultConfidence
	}
	if cfg.Simulations <= 0 {
		cfg.Simulations = DefaultSimulations
	}
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = DefaultRiskFreeRate
	}
	return &Calculator{
		confidence:   cfg.Confidence,
		simulations:  cfg.Simulations,
		riskFreeRate: cfg.RiskFreeRate,
		src:          cfg.Source,
		log:          log.With().Str("component", "risk_calculator").Logger(),
	}
}

// Confidence returns the configured confidence level.
func (c *Calculator) Confidence() float64 { return c.confidence }

// RiskFreeRate returns the configured annual risk-free rate.
func (c *Calculator) RiskFreeRate() float64 { return c.riskFreeRate }

// validateSeries rejects empty series and non-finite values before any math runs.
func validateSeries(name string, series []float64) error {
	if len(series) == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptySeries)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s[%d]=%v: %w", name, i, v, ErrNonFiniteValue)
		}
	}
	return nil
}

// VaR calculates Value at Risk for the given returns series under the selected
// method. All returned figures are positive loss magnitudes.
func (c *Calculator) VaR(returns []float64, method Method) (VaRResult, error) {
	if err := validateSeries("returns", returns); err != nil {
		return VaRResult{}, err
	}

	switch method {
	case MethodHistorical:
		return c.historicalVaR(returns), nil
	case MethodParametric:
		return c.parametricVaR(returns), nil
	case MethodMonteCarlo:
		return c.monteCarloVaR(returns), nil
	}
	return VaRResult{}, &UnknownMethodError{Method: string(method)}
}

// VaRAtConfidence recomputes historical VaR at an explicit confidence level.
// Within one method a higher confidence level always yields a VaR greater than
// or equal to the VaR at a lower level for the same series.
func (c *Calculator) VaRAtConfidence(returns []float64, confidence float64) (float64, error) {
	if err := validateSeries("returns", returns); err != nil {
		return 0, err
	}
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("confidence must be in (0, 1), got %v", confidence)
	}
	sorted := sortedCopy(returns)
	k := tailIndex(len(sorted), confidence)
	return math.Abs(sorted[k]), nil
}

// historicalVaR reads the loss directly off the empirical distribution.
func (c *Calculator) historicalVaR(returns []float64) VaRResult {
	sorted := sortedCopy(returns)
	k := tailIndex(len(sorted), c.confidence)

	varDaily := math.Abs(sorted[k])

	// CVaR is the mean of the k worst observations. When the series is too
	// short for the tail to contain any observation (k == 0), fall back to the
	// single worst return instead of averaging over nothing.
	var cvar float64
	if k == 0 {
		cvar = math.Abs(sorted[0])
	} else {
		cvar = math.Abs(stat.Mean(sorted[:k], nil))
	}

	return VaRResult{
		Method:       MethodHistorical,
		VaR95Daily:   varDaily,
		VaR95Monthly: scaleMonthly(varDaily),
		CVaR95:       cvar,
	}
}

// parametricVaR assumes returns ~ Normal(mu, sigma) and reads the loss off the
// fitted distribution. CVaR uses the closed-form normal expected-shortfall
// formula |mu - sigma*phi(z)/(1-confidence)|.
func (c *Calculator) parametricVaR(returns []float64) VaRResult {
	mu := stat.Mean(returns, nil)
	sigma := stat.PopStdDev(returns, nil)

	z := distuv.UnitNormal.Quantile(1 - c.confidence)
	varDaily := math.Abs(mu + z*sigma)
	cvar := math.Abs(mu - sigma*distuv.UnitNormal.Prob(z)/(1-c.confidence))

	return VaRResult{
		Method:       MethodParametric,
		VaR95Daily:   varDaily,
		VaR95Monthly: scaleMonthly(varDaily),
		CVaR95:       cvar,
	}
}

// monteCarloVaR simulates i.i.d. normal daily returns with moments estimated
// from the input series, then reads VaR/CVaR off the simulated sample exactly
// as the historical method does.
func (c *Calculator) monteCarloVaR(returns []float64) VaRResult {
	mu := stat.Mean(returns, nil)
	sigma := stat.PopStdDev(returns, nil)

	normal := distuv.Normal{Mu: mu, Sigma: sigma, Src: c.src}
	simulated := make([]float64, c.simulations)
	for i := range simulated {
		simulated[i] = normal.Rand()
	}
	sort.Float64s(simulated)

	k := tailIndex(len(simulated), c.confidence)
	varDaily := math.Abs(simulated[k])

	var cvar float64
	if k == 0 {
		cvar = math.Abs(simulated[0])
	} else {
		cvar = math.Abs(stat.Mean(simulated[:k], nil))
	}

	k99 := tailIndex(len(simulated), 0.99)

	return VaRResult{
		Method:       MethodMonteCarlo,
		VaR95Daily:   varDaily,
		VaR95Monthly: scaleMonthly(varDaily),
		CVaR95:       cvar,
		VaR99Daily:   math.Abs(simulated[k99]),
		WorstCase:    math.Abs(simulated[0]),
		BestCase:     simulated[len(simulated)-1],
		Simulations:  c.simulations,
	}
}

// SharpeRatio calculates excess return per unit of total volatility, annualized
// over 252 trading days.
//
// Degenerate case: when the annualized standard deviation is zero the ratio is
// undefined; this returns +Inf or -Inf with the sign of the excess return, and
// 0 when the excess return is also zero, rather than letting NaN propagate.
func (c *Calculator) SharpeRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if err := validateSeries("returns", returns); err != nil {
		return 0, err
	}

	annMean := stat.Mean(returns, nil) * TradingDaysPerYear
	annStd := stat.PopStdDev(returns, nil) * math.Sqrt(TradingDaysPerYear)
	excess := annMean - riskFreeRate

	if annStd == 0 {
		switch {
		case excess > 0:
			return math.Inf(1), nil
		case excess < 0:
			return math.Inf(-1), nil
		default:
			return 0, nil
		}
	}
	return excess / annStd, nil
}

// SortinoRatio is the Sharpe numerator over annualized downside-only deviation
// (strictly negative returns). A series with no negative returns has zero
// downside deviation and returns +Inf.
func (c *Calculator) SortinoRatio(returns []float64, riskFreeRate float64) (float64, error) {
	if err := validateSeries("returns", returns); err != nil {
		return 0, err
	}

	annMean := stat.Mean(returns, nil) * TradingDaysPerYear

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return math.Inf(1), nil
	}

	downsideStd := stat.PopStdDev(downside, nil) * math.Sqrt(TradingDaysPerYear)
	if downsideStd == 0 {
		return math.Inf(1), nil
	}
	return (annMean - riskFreeRate) / downsideStd, nil
}

// Volatility calculates annualized standard deviation of daily returns.
func (c *Calculator) Volatility(returns []float64) (float64, error) {
	if err := validateSeries("returns", returns); err != nil {
		return 0, err
	}
	return stat.PopStdDev(returns, nil) * math.Sqrt(TradingDaysPerYear), nil
}

// MaxDrawdown calculates the worst peak-to-trough decline of a price series.
// The peak search is restricted to indices strictly before the trough: a
// drawdown cannot precede its own peak. A monotonically increasing series
// yields a drawdown of exactly zero.
func (c *Calculator) MaxDrawdown(prices []float64) (DrawdownMetrics, error) {
	if err := validateSeries("prices", prices); err != nil {
		return DrawdownMetrics{}, err
	}

	runningMax := prices[0]
	maxDD := 0.0
	troughIdx := 0
	for i, p := range prices {
		if p > runningMax {
			runningMax = p
		}
		dd := (p - runningMax) / runningMax
		if dd < maxDD {
			maxDD = dd
			troughIdx = i
		}
	}

	peakIdx := 0
	if troughIdx > 0 {
		peakPrice := prices[0]
		for i := 1; i < troughIdx; i++ {
			if prices[i] > peakPrice {
				peakPrice = prices[i]
				peakIdx = i
			}
		}
	}

	return DrawdownMetrics{
		MaxDrawdown:    math.Abs(maxDD),
		MaxDrawdownPct: math.Abs(maxDD) * 100,
		PeakIndex:      peakIdx,
		TroughIndex:    troughIdx,
		RecoveryDays:   len(prices) - troughIdx,
	}, nil
}

// Beta calculates sensitivity of portfolio returns to a market benchmark:
// Cov(portfolio, market) / Var(market). Both series must be equal length and
// aligned by index; mismatched lengths are a validation error, never truncated.
func (c *Calculator) Beta(portfolioReturns, marketReturns []float64) (float64, error) {
	if err := validatePair(portfolioReturns, marketReturns); err != nil {
		return 0, err
	}

	cov := stat.Covariance(portfolioReturns, marketReturns, nil)
	marketVar := stat.PopVariance(marketReturns, nil)
	if marketVar == 0 {
		return 0, fmt.Errorf("market returns have zero variance")
	}
	return cov / marketVar, nil
}

// Alpha calculates the CAPM residual: annualized portfolio return minus the
// return expected from market exposure alone.
func (c *Calculator) Alpha(portfolioReturns, marketReturns []float64, riskFreeRate float64) (float64, error) {
	beta, err := c.Beta(portfolioReturns, marketReturns)
	if err != nil {
		return 0, err
	}

	portfolioReturn := stat.Mean(portfolioReturns, nil) * TradingDaysPerYear
	marketReturn := stat.Mean(marketReturns, nil) * TradingDaysPerYear

	expected := riskFreeRate + beta*(marketReturn-riskFreeRate)
	return portfolioReturn - expected, nil
}

// DiversificationRatio calculates the ratio of the weighted sum of individual
// asset volatilities to the realized portfolio volatility:
//
//	DR = (w · vol) / sqrt(wᵀ Σ w),  Σ = corr ⊙ (vol ⊗ vol)
//
// Weights must sum to 1 within tolerance; the correlation matrix must be
// square, symmetric, with unit diagonal. Violations are validation errors.
func (c *Calculator) DiversificationRatio(weights, volatilities []float64, correlation [][]float64) (float64, error) {
	n := len(weights)
	if n == 0 {
		return 0, fmt.Errorf("weights: %w", ErrEmptySeries)
	}
	if len(volatilities) != n {
		return 0, fmt.Errorf("weights (%d) vs volatilities (%d): %w", n, len(volatilities), ErrLengthMismatch)
	}
	if len(correlation) != n {
		return 0, fmt.Errorf("correlation matrix must be %dx%d", n, n)
	}

	sumW := 0.0
	for _, w := range weights {
		sumW += w
	}
	if math.Abs(sumW-1) > weightSumTolerance {
		return 0, fmt.Errorf("weights must sum to 1, got %v", sumW)
	}

	for i := range correlation {
		if len(correlation[i]) != n {
			return 0, fmt.Errorf("correlation matrix must be %dx%d", n, n)
		}
		if math.Abs(correlation[i][i]-1) > matrixTolerance {
			return 0, fmt.Errorf("correlation matrix diagonal must be 1, got %v at [%d][%d]", correlation[i][i], i, i)
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(correlation[i][j]-correlation[j][i]) > matrixTolerance {
				return 0, fmt.Errorf("correlation matrix not symmetric at [%d][%d]", i, j)
			}
		}
	}

	weightedVol := 0.0
	for i := range weights {
		weightedVol += weights[i] * volatilities[i]
	}

	// Σ = corr ⊙ (vol outer vol), symmetric by construction
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, correlation[i][j]*volatilities[i]*volatilities[j])
		}
	}

	w := mat.NewVecDense(n, append([]float64(nil), weights...))
	portfolioVar := mat.Inner(w, sigma, w)
	if portfolioVar <= 0 {
		return 0, fmt.Errorf("portfolio variance is non-positive (%v); volatilities must contain a positive value", portfolioVar)
	}

	return weightedVol / math.Sqrt(portfolioVar), nil
}

// Stress scenario names. The shocks are deterministic illustrative multipliers,
// not calibrated forecasts; only the black swan scenario is derived from the
// series' own moments (a 3-sigma daily move).
const (
	ScenarioMarketCrash20 = "market_crash_20pct"
	ScenarioMarketCrash30 = "market_crash_30pct"
	ScenarioBlackSwan     = "black_swan_3sigma"
	ScenarioFlashCrash    = "flash_crash_10pct_1day"
	ScenarioSlowDecline   = "slow_decline_15pct_3months"
)

// StressTest applies the fixed shock scenarios to the portfolio value and
// returns the dollar impact of each.
func (c *Calculator) StressTest(portfolioValue float64, returns []float64) (map[string]float64, error) {
	if err := validateSeries("returns", returns); err != nil {
		return nil, err
	}

	mu := stat.Mean(returns, nil)
	sigma := stat.PopStdDev(returns, nil)

	return map[string]float64{
		ScenarioMarketCrash20: portfolioValue * -0.20,
		ScenarioMarketCrash30: portfolioValue * -0.30,
		ScenarioBlackSwan:     portfolioValue * (mu - 3*sigma),
		ScenarioFlashCrash:    portfolioValue * -0.10,
		ScenarioSlowDecline:   portfolioValue * -0.15,
	}, nil
}

// ComprehensiveRisk runs the full set of metrics in one pass: Monte Carlo VaR,
// Sharpe, Sortino, volatility, drawdown on the cumulative-product price path,
// stress scenarios, and beta/alpha when a market benchmark series is supplied.
// Every sub-computation remains independently callable.
func (c *Calculator) ComprehensiveRisk(returns []float64, portfolioValue float64, marketReturns []float64) (RiskMetrics, error) {
	if err := validateSeries("returns", returns); err != nil {
		return RiskMetrics{}, err
	}
	if portfolioValue <= 0 {
		return RiskMetrics{}, fmt.Errorf("portfolio value must be positive, got %v", portfolioValue)
	}
	if marketReturns != nil {
		if err := validatePair(returns, marketReturns); err != nil {
			return RiskMetrics{}, err
		}
	}

	c.log.Debug().Int("observations", len(returns)).Msg("Calculating comprehensive risk metrics")

	varResult := c.monteCarloVaR(returns)

	sharpe, err := c.SharpeRatio(returns, c.riskFreeRate)
	if err != nil {
		return RiskMetrics{}, err
	}
	sortino, err := c.SortinoRatio(returns, c.riskFreeRate)
	if err != nil {
		return RiskMetrics{}, err
	}
	volatility, err := c.Volatility(returns)
	if err != nil {
		return RiskMetrics{}, err
	}

	// Derive a price path from the return series via cumulative product.
	prices := make([]float64, len(returns))
	cumulative := portfolioValue
	for i, r := range returns {
		cumulative *= 1 + r
		prices[i] = cumulative
	}
	drawdown, err := c.MaxDrawdown(prices)
	if err != nil {
		return RiskMetrics{}, err
	}

	stress, err := c.StressTest(portfolioValue, returns)
	if err != nil {
		return RiskMetrics{}, err
	}

	metrics := RiskMetrics{
		VaR:            varResult,
		SharpeRatio:    sharpe,
		SortinoRatio:   sortino,
		Volatility:     volatility,
		MaxDrawdown:    drawdown.MaxDrawdown,
		MaxDrawdownPct: drawdown.MaxDrawdownPct,
		StressTests:    stress,
		PortfolioValue: portfolioValue,
	}

	if marketReturns != nil {
		beta, err := c.Beta(returns, marketReturns)
		if err != nil {
			return RiskMetrics{}, err
		}
		alpha, err := c.Alpha(returns, marketReturns, c.riskFreeRate)
		if err != nil {
			return RiskMetrics{}, err
		}
		metrics.Beta = &beta
		metrics.Alpha = &alpha
	}

	c.log.Info().
		Float64("var_95_daily", varResult.VaR95Daily).
		Float64("sharpe", sharpe).
		Float64("volatility", volatility).
		Msg("Risk calculation complete")

	return metrics, nil
}

// validatePair validates two aligned series and their length equality.
func validatePair(a, b []float64) error {
	if err := validateSeries("portfolio returns", a); err != nil {
		return err
	}
	if err := validateSeries("market returns", b); err != nil {
		return err
	}
	if len(a) != len(b) {
		return fmt.Errorf("portfolio (%d) vs market (%d): %w", len(a), len(b), ErrLengthMismatch)
	}
	return nil
}

// sortedCopy returns an ascending-sorted copy, leaving the input untouched.
func sortedCopy(series []float64) []float64 {
	sorted := make([]float64, len(series))
	copy(sorted, series)
	sort.Float64s(sorted)
	return sorted
}

// tailIndex returns the index of the VaR observation for a sorted series:
// floor((1-confidence) * n), clamped to the valid range.
func tailIndex(n int, confidence float64) int {
	k := int((1 - confidence) * float64(n))
	if k >= n {
		k = n - 1
	}
	if k < 0 {
		k = 0
	}
	return k
}

// scaleMonthly converts a daily VaR to monthly via square-root-of-time scaling.
func scaleMonthly(daily float64) float64 {
	return daily * math.Sqrt(TradingDaysPerMonth)
}
