package risk

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T, cfg Config) *Calculator {
	t.Helper()
	return NewCalculator(cfg, zerolog.Nop())
}

func TestHistoricalVaR(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// 100 returns: -0.050, -0.049, ..., up to +0.049
	returns := make([]float64, 100)
	for i := range returns {
		returns[i] = float64(i-50) / 1000.0
	}

	result, err := calc.VaR(returns, MethodHistorical)
	require.NoError(t, err)

	// k = floor(0.05 * 100) = 5, sorted[5] = -0.045
	assert.InDelta(t, 0.045, result.VaR95Daily, 1e-12)
	assert.InDelta(t, result.VaR95Daily*math.Sqrt(21), result.VaR95Monthly, 1e-12)

	// CVaR = |mean(-0.050, -0.049, -0.048, -0.047, -0.046)| = 0.048
	assert.InDelta(t, 0.048, result.CVaR95, 1e-12)
	assert.Equal(t, MethodHistorical, result.Method)
}

func TestHistoricalVaRShortSeries(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// n=5 at 95%: k = 0, must fall back to the single worst observation
	returns := []float64{0.01, -0.02, 0.005, -0.01, 0.015}
	result, err := calc.VaR(returns, MethodHistorical)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, result.VaR95Daily, 1e-12)
	assert.InDelta(t, 0.02, result.CVaR95, 1e-12)
}

func TestParametricVaRZeroVariance(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// All identical returns: sigma = 0, so VaR must equal |mean| exactly
	returns := []float64{0.01, 0.01, 0.01, 0.01, 0.01}
	result, err := calc.VaR(returns, MethodParametric)
	require.NoError(t, err)

	assert.Equal(t, 0.01, result.VaR95Daily)
	assert.InDelta(t, 0.01*math.Sqrt(21), result.VaR95Monthly, 1e-12)
}

func TestParametricVaRNormalSeries(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	returns := []float64{0.02, -0.01, 0.015, -0.025, 0.01, 0.005, -0.015, 0.02}
	result, err := calc.VaR(returns, MethodParametric)
	require.NoError(t, err)

	assert.Greater(t, result.VaR95Daily, 0.0)
	assert.Greater(t, result.CVaR95, result.VaR95Daily, "normal expected shortfall exceeds VaR")
	assert.InDelta(t, result.VaR95Daily*math.Sqrt(21), result.VaR95Monthly, 1e-12)
}

func TestMonteCarloVaRDeterministicWithSeed(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.005, -0.01, 0.015, 0.002, -0.008, 0.012}

	calcA := newTestCalculator(t, Config{Simulations: 5000, Source: rand.NewPCG(42, 0)})
	calcB := newTestCalculator(t, Config{Simulations: 5000, Source: rand.NewPCG(42, 0)})

	resultA, err := calcA.VaR(returns, MethodMonteCarlo)
	require.NoError(t, err)
	resultB, err := calcB.VaR(returns, MethodMonteCarlo)
	require.NoError(t, err)

	assert.Equal(t, resultA, resultB, "same seed must produce identical results")
	assert.Equal(t, 5000, resultA.Simulations)
	assert.Greater(t, resultA.VaR99Daily, 0.0)
	assert.Greater(t, resultA.WorstCase, 0.0)
	assert.InDelta(t, resultA.VaR95Daily*math.Sqrt(21), resultA.VaR95Monthly, 1e-12)
}

func TestMonteCarloVaR99ExceedsVaR95(t *testing.T) {
	calc := newTestCalculator(t, Config{Simulations: 10000, Source: rand.NewPCG(7, 0)})

	returns := []float64{0.01, -0.02, 0.005, -0.01, 0.015, -0.03, 0.02, 0.001}
	result, err := calc.VaR(returns, MethodMonteCarlo)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.VaR99Daily, result.VaR95Daily,
		"within one method a higher confidence level yields a VaR at least as large")
}

func TestVaRAtConfidenceMonotone(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	returns := make([]float64, 252)
	src := rand.New(rand.NewPCG(1, 2))
	for i := range returns {
		returns[i] = src.NormFloat64() * 0.02
	}

	var95, err := calc.VaRAtConfidence(returns, 0.95)
	require.NoError(t, err)
	var99, err := calc.VaRAtConfidence(returns, 0.99)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, var99, var95)
}

func TestVaRValidation(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	tests := []struct {
		name    string
		returns []float64
		method  Method
		wantErr error
	}{
		{"empty series", nil, MethodHistorical, ErrEmptySeries},
		{"NaN value", []float64{0.01, math.NaN()}, MethodHistorical, ErrNonFiniteValue},
		{"Inf value", []float64{0.01, math.Inf(1)}, MethodParametric, ErrNonFiniteValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.VaR(tt.returns, tt.method)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := calc.VaR([]float64{0.01}, Method("garch"))
	require.Error(t, err)
	var unknownErr *UnknownMethodError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestParseMethod(t *testing.T) {
	for _, valid := range []string{"historical", "parametric", "monte_carlo"} {
		m, err := ParseMethod(valid)
		require.NoError(t, err)
		assert.Equal(t, Method(valid), m)
	}

	_, err := ParseMethod("bootstrap")
	assert.Error(t, err)
}

func TestSharpeRatio(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// Hand-computed: mean = 0.001, popstd = 0.001 (values 0.000, 0.002 repeated)
	returns := []float64{0.000, 0.002, 0.000, 0.002}
	annMean := 0.001 * 252
	annStd := 0.001 * math.Sqrt(252)
	want := (annMean - 0.045) / annStd

	sharpe, err := calc.SharpeRatio(returns, 0.045)
	require.NoError(t, err)
	assert.InDelta(t, want, sharpe, 1e-9)
}

func TestSharpeRatioZeroVariance(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// Positive excess return with zero variance
	sharpe, err := calc.SharpeRatio([]float64{0.01, 0.01, 0.01}, 0.045)
	require.NoError(t, err)
	assert.True(t, math.IsInf(sharpe, 1))

	// Negative excess return with zero variance
	sharpe, err = calc.SharpeRatio([]float64{0.0, 0.0, 0.0}, 0.045)
	require.NoError(t, err)
	assert.True(t, math.IsInf(sharpe, -1))
}

func TestSortinoRatio(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	returns := []float64{0.01, -0.02, 0.015, -0.01, 0.02}
	sortino, err := calc.SortinoRatio(returns, 0.045)
	require.NoError(t, err)

	// Downside returns: -0.02, -0.01; popstd = 0.005
	annMean := (0.01 - 0.02 + 0.015 - 0.01 + 0.02) / 5 * 252
	downStd := 0.005 * math.Sqrt(252)
	assert.InDelta(t, (annMean-0.045)/downStd, sortino, 1e-9)
}

func TestSortinoRatioNoNegativeReturns(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	sortino, err := calc.SortinoRatio([]float64{0.01, 0.02, 0.005}, 0.045)
	require.NoError(t, err)
	assert.True(t, math.IsInf(sortino, 1), "no downside means infinite Sortino")
}

func TestMaxDrawdown(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// Peak at index 2 (120), trough at index 4 (84): drawdown = 30%
	prices := []float64{100, 110, 120, 90, 84, 100, 125}
	metrics, err := calc.MaxDrawdown(prices)
	require.NoError(t, err)

	assert.InDelta(t, 0.30, metrics.MaxDrawdown, 1e-12)
	assert.InDelta(t, 30.0, metrics.MaxDrawdownPct, 1e-12)
	assert.Equal(t, 2, metrics.PeakIndex)
	assert.Equal(t, 4, metrics.TroughIndex)
	assert.Equal(t, 3, metrics.RecoveryDays)
}

func TestMaxDrawdownMonotonicIncrease(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	prices := []float64{100, 101, 105, 110, 140}
	metrics, err := calc.MaxDrawdown(prices)
	require.NoError(t, err)

	assert.Equal(t, 0.0, metrics.MaxDrawdown)
	assert.Equal(t, 0.0, metrics.MaxDrawdownPct)
	assert.Equal(t, 0, metrics.TroughIndex)
}

func TestBetaAndAlpha(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	// Portfolio moves exactly 2x the market: beta = 2 (up to estimator choice)
	market := []float64{0.01, -0.02, 0.015, -0.005, 0.02, -0.01}
	portfolio := make([]float64, len(market))
	for i, m := range market {
		portfolio[i] = 2 * m
	}

	beta, err := calc.Beta(portfolio, market)
	require.NoError(t, err)
	// Sample covariance over population variance: 2 * n/(n-1)
	n := float64(len(market))
	assert.InDelta(t, 2*n/(n-1), beta, 1e-9)

	_, err = calc.Alpha(portfolio, market, 0.045)
	require.NoError(t, err)
}

func TestBetaLengthMismatch(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	_, err := calc.Beta([]float64{0.01, 0.02}, []float64{0.01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestVolatility(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	vol, err := calc.Volatility([]float64{0.000, 0.002, 0.000, 0.002})
	require.NoError(t, err)
	assert.InDelta(t, 0.001*math.Sqrt(252), vol, 1e-12)
}

func TestDiversificationRatio(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	weights := []float64{0.5, 0.5}
	vols := []float64{0.2, 0.2}
	corr := [][]float64{
		{1.0, 0.5},
		{0.5, 1.0},
	}

	ratio, err := calc.DiversificationRatio(weights, vols, corr)
	require.NoError(t, err)

	// weighted vol = 0.2; portfolio var = 0.25*0.04 + 0.25*0.04 + 2*0.25*0.02 = 0.03
	assert.InDelta(t, 0.2/math.Sqrt(0.03), ratio, 1e-9)
	assert.Greater(t, ratio, 1.0, "imperfect correlation diversifies")
}

func TestDiversificationRatioPerfectCorrelation(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	ratio, err := calc.DiversificationRatio(
		[]float64{0.5, 0.5},
		[]float64{0.2, 0.2},
		[][]float64{{1, 1}, {1, 1}},
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ratio, 1e-9, "perfect correlation means no diversification benefit")
}

func TestDiversificationRatioValidation(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	tests := []struct {
		name    string
		weights []float64
		vols    []float64
		corr    [][]float64
	}{
		{"weights do not sum to 1", []float64{0.5, 0.4}, []float64{0.2, 0.2}, [][]float64{{1, 0}, {0, 1}}},
		{"asymmetric matrix", []float64{0.5, 0.5}, []float64{0.2, 0.2}, [][]float64{{1, 0.5}, {0.3, 1}}},
		{"non-unit diagonal", []float64{0.5, 0.5}, []float64{0.2, 0.2}, [][]float64{{0.9, 0.5}, {0.5, 1}}},
		{"length mismatch", []float64{0.5, 0.5}, []float64{0.2}, [][]float64{{1, 0}, {0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.DiversificationRatio(tt.weights, tt.vols, tt.corr)
			assert.Error(t, err)
		})
	}
}

func TestStressTest(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	returns := []float64{0.001, 0.001, 0.001, 0.001}
	scenarios, err := calc.StressTest(100000, returns)
	require.NoError(t, err)

	assert.Len(t, scenarios, 5)
	assert.InDelta(t, -20000, scenarios[ScenarioMarketCrash20], 1e-9)
	assert.InDelta(t, -30000, scenarios[ScenarioMarketCrash30], 1e-9)
	assert.InDelta(t, -10000, scenarios[ScenarioFlashCrash], 1e-9)
	assert.InDelta(t, -15000, scenarios[ScenarioSlowDecline], 1e-9)
	// Zero variance: black swan is just the mean daily move
	assert.InDelta(t, 100000*0.001, scenarios[ScenarioBlackSwan], 1e-9)
}

func TestComprehensiveRisk(t *testing.T) {
	calc := newTestCalculator(t, Config{Simulations: 2000, Source: rand.NewPCG(99, 0)})

	// One year of synthetic daily returns around +0.1% with 2% vol
	src := rand.New(rand.NewPCG(42, 0))
	returns := make([]float64, 252)
	for i := range returns {
		returns[i] = 0.001 + src.NormFloat64()*0.02
	}

	metrics, err := calc.ComprehensiveRisk(returns, 100000, nil)
	require.NoError(t, err)

	assert.Equal(t, MethodMonteCarlo, metrics.VaR.Method)
	assert.Greater(t, metrics.VaR.VaR95Daily, 0.0)
	assert.InDelta(t, metrics.VaR.VaR95Daily*math.Sqrt(21), metrics.VaR.VaR95Monthly, 1e-12)
	assert.Greater(t, metrics.Volatility, 0.0)
	assert.Greater(t, metrics.MaxDrawdown, 0.0)
	assert.Len(t, metrics.StressTests, 5)
	assert.Nil(t, metrics.Beta)
	assert.Nil(t, metrics.Alpha)
	assert.Equal(t, 100000.0, metrics.PortfolioValue)

	// Cross-check Sharpe against the standalone computation
	sharpe, err := calc.SharpeRatio(returns, calc.RiskFreeRate())
	require.NoError(t, err)
	assert.InDelta(t, sharpe, metrics.SharpeRatio, 1e-6)
}

func TestComprehensiveRiskWithMarket(t *testing.T) {
	calc := newTestCalculator(t, Config{Simulations: 2000, Source: rand.NewPCG(5, 0)})

	src := rand.New(rand.NewPCG(8, 0))
	market := make([]float64, 120)
	portfolio := make([]float64, 120)
	for i := range market {
		market[i] = src.NormFloat64() * 0.01
		portfolio[i] = 1.5*market[i] + src.NormFloat64()*0.002
	}

	metrics, err := calc.ComprehensiveRisk(portfolio, 50000, market)
	require.NoError(t, err)

	require.NotNil(t, metrics.Beta)
	require.NotNil(t, metrics.Alpha)
	assert.InDelta(t, 1.5, *metrics.Beta, 0.2)
}

func TestComprehensiveRiskValidation(t *testing.T) {
	calc := newTestCalculator(t, Config{})

	_, err := calc.ComprehensiveRisk(nil, 100000, nil)
	assert.ErrorIs(t, err, ErrEmptySeries)

	_, err = calc.ComprehensiveRisk([]float64{0.01}, 0, nil)
	assert.Error(t, err)

	_, err = calc.ComprehensiveRisk([]float64{0.01, 0.02}, 1000, []float64{0.01})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}
