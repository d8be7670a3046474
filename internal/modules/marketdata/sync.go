package marketdata

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/clients/alphavantage"
)

// seriesFetcher is the slice of the Alpha Vantage client the sync needs.
type seriesFetcher interface {
	GetDailyTimeSeries(ctx context.Context, symbol string, full bool) ([]alphavantage.DailyPrice, error)
	GetRemainingRequests() int
}

// holdingsSource provides the tickers to sync and receives price updates.
type holdingsSource interface {
	Tickers() ([]string, error)
	UpdateCurrentPrice(ticker string, price float64) (int64, error)
}

// SyncResult summarises one sync run.
type SyncResult struct {
	Synced  int      `json:"synced"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// SyncService pulls daily bars for every held ticker into history.db and
// refreshes current prices on holdings. Per-ticker failures are recorded
// and the run continues; one bad symbol must not starve the rest.
type SyncService struct {
	client   seriesFetcher
	prices   *PriceRepository
	holdings holdingsSource
	log      zerolog.Logger
}

// NewSyncService creates a price sync service.
func NewSyncService(client seriesFetcher, prices *PriceRepository, holdings holdingsSource, log zerolog.Logger) *SyncService {
	return &SyncService{
		client:   client,
		prices:   prices,
		holdings: holdings,
		log:      log.With().Str("component", "price_sync").Logger(),
	}
}

// SyncAll fetches and stores daily bars for every distinct held ticker.
// Tickers beyond the remaining API budget are skipped, not failed.
func (s *SyncService) SyncAll(ctx context.Context) (SyncResult, error) {
	tickers, err := s.holdings.Tickers()
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to list tickers: %w", err)
	}

	var result SyncResult
	for _, ticker := range tickers {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if s.client.GetRemainingRequests() <= 0 {
			result.Skipped = len(tickers) - result.Synced - result.Failed
			s.log.Warn().Int("skipped", result.Skipped).Msg("API budget exhausted, stopping sync early")
			break
		}

		if err := s.SyncTicker(ctx, ticker); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", ticker, err))
			s.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to sync ticker")
			continue
		}
		result.Synced++
	}

	s.log.Info().
		Int("synced", result.Synced).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("Price sync complete")
	return result, nil
}

// SyncTicker fetches, stores, and applies the latest bars for one ticker.
func (s *SyncService) SyncTicker(ctx context.Context, ticker string) error {
	// First sync of a ticker pulls the full history, later syncs only the
	// recent window.
	existing, err := s.prices.CountBars(ticker)
	if err != nil {
		return err
	}

	bars, err := s.client.GetDailyTimeSeries(ctx, ticker, existing == 0)
	if err != nil {
		return fmt.Errorf("failed to fetch daily series: %w", err)
	}
	if len(bars) == 0 {
		return fmt.Errorf("provider returned no bars")
	}

	stored := make([]DailyPrice, len(bars))
	for i, b := range bars {
		stored[i] = DailyPrice{
			Ticker: ticker,
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	if err := s.prices.UpsertPrices(ticker, stored); err != nil {
		return err
	}

	// bars arrive newest first
	latest := bars[0].Close
	if _, err := s.holdings.UpdateCurrentPrice(ticker, latest); err != nil {
		return fmt.Errorf("failed to update current price: %w", err)
	}
	return nil
}
