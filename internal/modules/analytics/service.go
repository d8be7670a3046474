// Package analytics orchestrates the full portfolio analysis pipeline:
// price history in, risk metrics, ESG aggregates, and trade signals out,
// with results persisted as snapshots.
package analytics

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/esg"
	"github.com/aristath/meridian/internal/modules/marketdata"
	"github.com/aristath/meridian/internal/modules/portfolio"
	"github.com/aristath/meridian/internal/modules/risk"
	"github.com/aristath/meridian/internal/modules/signals"
)

// ErrInsufficientHistory is returned when no holding has enough price bars
// to build a return series.
var ErrInsufficientHistory = errors.New("insufficient price history")

// riskWindow is how many daily bars feed the risk calculation, roughly one
// trading year.
const riskWindow = 252

// DefaultBenchmark is the market proxy for beta and alpha.
const DefaultBenchmark = "SPY"

// Config holds analytics service configuration.
type Config struct {
	// BenchmarkTicker is the market proxy; empty means DefaultBenchmark.
	BenchmarkTicker string
}

// Service runs the analysis pipeline over stored portfolios.
type Service struct {
	portfolios *portfolio.PortfolioRepository
	holdings   *portfolio.HoldingRepository
	companies  *portfolio.CompanyESGRepository
	snapshots  *portfolio.SnapshotRepository
	prices     *marketdata.PriceRepository

	riskCalc *risk.Calculator
	esgCalc  *esg.Calculator
	signals  *signals.Aggregator

	benchmark string
	log       zerolog.Logger
}

// NewService wires the analytics pipeline.
func NewService(
	portfolios *portfolio.PortfolioRepository,
	holdings *portfolio.HoldingRepository,
	companies *portfolio.CompanyESGRepository,
	snapshots *portfolio.SnapshotRepository,
	prices *marketdata.PriceRepository,
	riskCalc *risk.Calculator,
	esgCalc *esg.Calculator,
	aggregator *signals.Aggregator,
	cfg Config,
	log zerolog.Logger,
) *Service {
	benchmark := cfg.BenchmarkTicker
	if benchmark == "" {
		benchmark = DefaultBenchmark
	}
	return &Service{
		portfolios: portfolios,
		holdings:   holdings,
		companies:  companies,
		snapshots:  snapshots,
		prices:     prices,
		riskCalc:   riskCalc,
		esgCalc:    esgCalc,
		signals:    aggregator,
		benchmark:  benchmark,
		log:        log.With().Str("component", "analytics").Logger(),
	}
}

// PortfolioReturns builds the value-weighted daily return series for a
// portfolio from stored price history. Holdings without history are excluded
// and the remaining weights renormalized. Series are aligned on their most
// recent observations.
func (s *Service) PortfolioReturns(portfolioID string) ([]float64, float64, error) {
	holdings, err := s.holdings.GetByPortfolio(portfolioID)
	if err != nil {
		return nil, 0, err
	}
	if len(holdings) == 0 {
		return nil, 0, fmt.Errorf("portfolio %s has no holdings", portfolioID)
	}

	type series struct {
		returns []float64
		value   float64
	}

	var (
		contributing []series
		totalValue   float64
		coveredValue float64
		minLen       int
	)

	for _, h := range holdings {
		totalValue += h.MarketValue()

		closes, err := s.prices.Closes(h.Ticker, riskWindow)
		if err != nil {
			return nil, 0, err
		}
		returns := marketdata.Returns(closes)
		if len(returns) == 0 {
			s.log.Warn().Str("ticker", h.Ticker).Msg("No price history, excluding from return series")
			continue
		}

		contributing = append(contributing, series{returns: returns, value: h.MarketValue()})
		coveredValue += h.MarketValue()
		if minLen == 0 || len(returns) < minLen {
			minLen = len(returns)
		}
	}

	if len(contributing) == 0 || coveredValue == 0 {
		return nil, 0, fmt.Errorf("portfolio %s: %w", portfolioID, ErrInsufficientHistory)
	}

	weighted := make([]float64, minLen)
	for _, c := range contributing {
		w := c.value / coveredValue
		tail := c.returns[len(c.returns)-minLen:]
		for i, r := range tail {
			weighted[i] += w * r
		}
	}

	return weighted, totalValue, nil
}

// PortfolioRisk computes comprehensive risk metrics for a portfolio and
// persists them as a snapshot. Beta and alpha are included when benchmark
// history is stored; their absence is not an error.
func (s *Service) PortfolioRisk(portfolioID string) (risk.RiskMetrics, error) {
	if _, err := s.portfolios.GetByID(portfolioID); err != nil {
		return risk.RiskMetrics{}, err
	}

	returns, totalValue, err := s.PortfolioReturns(portfolioID)
	if err != nil {
		return risk.RiskMetrics{}, err
	}

	marketReturns := s.benchmarkReturns(len(returns))

	metrics, err := s.riskCalc.ComprehensiveRisk(returns, totalValue, marketReturns)
	if err != nil {
		return risk.RiskMetrics{}, err
	}

	if _, err := s.snapshots.SaveRisk(portfolio.RiskSnapshot{
		PortfolioID:    portfolioID,
		VaR95Daily:     metrics.VaR.VaR95Daily,
		VaR95Monthly:   metrics.VaR.VaR95Monthly,
		VaR99Daily:     metrics.VaR.VaR99Daily,
		CVaR95:         metrics.VaR.CVaR95,
		SharpeRatio:    metrics.SharpeRatio,
		SortinoRatio:   metrics.SortinoRatio,
		Volatility:     metrics.Volatility,
		MaxDrawdown:    metrics.MaxDrawdown,
		MaxDrawdownPct: metrics.MaxDrawdownPct,
		Beta:           metrics.Beta,
		Alpha:          metrics.Alpha,
		StressTests:    metrics.StressTests,
		PortfolioValue: metrics.PortfolioValue,
	}); err != nil {
		return risk.RiskMetrics{}, err
	}

	if err := s.portfolios.UpdateTotalValue(portfolioID, totalValue); err != nil {
		return risk.RiskMetrics{}, err
	}

	return metrics, nil
}

// benchmarkReturns loads the benchmark return series trimmed to n most
// recent observations, or nil when history is missing or too short.
func (s *Service) benchmarkReturns(n int) []float64 {
	closes, err := s.prices.Closes(s.benchmark, riskWindow)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", s.benchmark).Msg("Failed to load benchmark history")
		return nil
	}
	returns := marketdata.Returns(closes)
	if len(returns) < n {
		return nil
	}
	return returns[len(returns)-n:]
}

// ScoreCompany ensures a scored ESG record exists for a ticker and returns
// the result. Stored raw metrics are re-scored; a company seen for the first
// time gets deterministic sample metrics for its sector.
func (s *Service) ScoreCompany(ticker, sector string) (esg.Result, error) {
	var input esg.CompanyInput

	stored, err := s.companies.GetByTicker(ticker)
	switch {
	case err == nil && len(stored.RawMetrics) > 0:
		if err := json.Unmarshal(stored.RawMetrics, &input); err != nil {
			return esg.Result{}, fmt.Errorf("failed to decode stored metrics for %s: %w", ticker, err)
		}
		if sector == "" {
			sector = stored.Sector
		}
	case errors.Is(err, portfolio.ErrNotFound) || (err == nil && len(stored.RawMetrics) == 0):
		input = esg.GenerateSampleInput(ticker, sector)
	default:
		return esg.Result{}, err
	}

	result := s.esgCalc.Score(input, sector)

	raw, err := json.Marshal(input)
	if err != nil {
		return esg.Result{}, fmt.Errorf("failed to encode metrics for %s: %w", ticker, err)
	}

	if err := s.companies.Upsert(portfolio.CompanyESG{
		Ticker:             ticker,
		CompanyName:        stored.CompanyName,
		Sector:             result.Sector,
		ESGScore:           &result.AdjustedScore,
		EnvironmentalScore: &result.EnvironmentalScore,
		SocialScore:        &result.SocialScore,
		GovernanceScore:    &result.GovernanceScore,
		ESGRating:          &result.AdjustedRating,
		Controversies:      result.Controversies,
		RawMetrics:         raw,
		CarbonEmissions:    input.CarbonEmissions,
	}); err != nil {
		return esg.Result{}, err
	}

	return result, nil
}

// PortfolioESG aggregates holdings into a value-weighted portfolio ESG
// score, persists the snapshot, and refreshes the portfolio's denormalized
// summary. Companies without a scored record are scored on the fly.
func (s *Service) PortfolioESG(portfolioID string) (esg.PortfolioResult, error) {
	if _, err := s.portfolios.GetByID(portfolioID); err != nil {
		return esg.PortfolioResult{}, err
	}

	holdings, err := s.holdings.GetByPortfolio(portfolioID)
	if err != nil {
		return esg.PortfolioResult{}, err
	}

	esgHoldings := make([]esg.PortfolioHolding, 0, len(holdings))
	for _, h := range holdings {
		ph := esg.PortfolioHolding{Ticker: h.Ticker, Value: h.MarketValue()}

		company, err := s.companies.GetByTicker(h.Ticker)
		if errors.Is(err, portfolio.ErrNotFound) {
			if _, err := s.ScoreCompany(h.Ticker, h.Sector); err != nil {
				return esg.PortfolioResult{}, err
			}
			company, err = s.companies.GetByTicker(h.Ticker)
			if err != nil {
				return esg.PortfolioResult{}, err
			}
		} else if err != nil {
			return esg.PortfolioResult{}, err
		}

		if company.EnvironmentalScore != nil && company.SocialScore != nil && company.GovernanceScore != nil {
			ph.ESG = &esg.PillarScores{
				Environmental:   *company.EnvironmentalScore,
				Social:          *company.SocialScore,
				Governance:      *company.GovernanceScore,
				CarbonEmissions: company.CarbonEmissions,
			}
		}
		esgHoldings = append(esgHoldings, ph)
	}

	result := s.esgCalc.PortfolioScore(esgHoldings)

	if _, err := s.snapshots.SaveESG(portfolio.ESGSnapshot{
		PortfolioID:        portfolioID,
		PortfolioESGScore:  result.PortfolioScore,
		PortfolioRating:    result.PortfolioRating,
		EnvironmentalScore: result.EnvironmentalScore,
		SocialScore:        result.SocialScore,
		GovernanceScore:    result.GovernanceScore,
		CarbonIntensity:    result.CarbonIntensity,
		CarbonFootprint:    result.CarbonFootprint,
		HoldingsCount:      result.HoldingsCount,
	}); err != nil {
		return esg.PortfolioResult{}, err
	}

	if err := s.portfolios.UpdateESGSummary(portfolioID, portfolio.ESGSummary{
		Overall:         result.PortfolioScore,
		Environmental:   result.EnvironmentalScore,
		Social:          result.SocialScore,
		Governance:      result.GovernanceScore,
		Rating:          result.PortfolioRating,
		CarbonIntensity: result.CarbonIntensity,
		CarbonFootprint: result.CarbonFootprint,
	}); err != nil {
		return esg.PortfolioResult{}, err
	}

	return result, nil
}

// PortfolioSignals classifies every holding into BUY / HOLD / SELL and
// attaches trend indicators where price history allows.
func (s *Service) PortfolioSignals(portfolioID string) ([]signals.Row, error) {
	if _, err := s.portfolios.GetByID(portfolioID); err != nil {
		return nil, err
	}

	holdings, err := s.holdings.GetByPortfolio(portfolioID)
	if err != nil {
		return nil, err
	}

	sigHoldings := make([]signals.Holding, len(holdings))
	esgScores := make(map[string]float64)
	closesByTicker := make(map[string][]float64)

	for i, h := range holdings {
		sigHoldings[i] = signals.Holding{
			Ticker:        h.Ticker,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			CurrentPrice:  derefOrZero(h.CurrentPrice),
			Sector:        h.Sector,
		}

		if company, err := s.companies.GetByTicker(h.Ticker); err == nil && company.ESGScore != nil {
			esgScores[h.Ticker] = *company.ESGScore
		}

		closes, err := s.prices.Closes(h.Ticker, riskWindow)
		if err != nil {
			return nil, err
		}
		if len(closes) > 0 {
			closesByTicker[h.Ticker] = closes
		}
	}

	rows := s.signals.Compute(sigHoldings, esgScores)
	s.signals.AttachTrend(rows, closesByTicker)
	return rows, nil
}

// RefreshPortfolio runs the full pipeline for one portfolio: ESG first so
// signals see fresh scores, then risk.
func (s *Service) RefreshPortfolio(portfolioID string) error {
	if _, err := s.PortfolioESG(portfolioID); err != nil {
		return fmt.Errorf("ESG refresh failed: %w", err)
	}

	if _, err := s.PortfolioRisk(portfolioID); err != nil {
		if errors.Is(err, ErrInsufficientHistory) {
			s.log.Warn().Str("portfolio_id", portfolioID).Msg("Skipping risk refresh, no price history yet")
			return nil
		}
		return fmt.Errorf("risk refresh failed: %w", err)
	}
	return nil
}

// RefreshAll refreshes every stored portfolio. Per-portfolio failures are
// logged and do not stop the run.
func (s *Service) RefreshAll() error {
	portfolios, err := s.portfolios.List()
	if err != nil {
		return err
	}

	var failed int
	for _, p := range portfolios {
		if err := s.RefreshPortfolio(p.ID); err != nil {
			failed++
			s.log.Error().Err(err).Str("portfolio_id", p.ID).Msg("Failed to refresh portfolio")
		}
	}

	s.log.Info().Int("portfolios", len(portfolios)).Int("failed", failed).Msg("Analytics refresh complete")
	if failed == len(portfolios) && failed > 0 {
		return fmt.Errorf("all %d portfolio refreshes failed", failed)
	}
	return nil
}

func derefOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
