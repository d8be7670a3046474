package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/meridian/internal/modules/marketdata"
)

// Cron specs for the standing jobs, server-local time.
const (
	// SpecSyncPrices runs after US market close.
	SpecSyncPrices = "30 22 * * 1-5"
	// SpecRefreshMetrics recomputes analytics after price sync.
	SpecRefreshMetrics = "0 23 * * 1-5"
	// SpecCacheCleanup prunes expired API cache entries.
	SpecCacheCleanup = "0 3 * * *"
	// SpecResetAPIBudget resets the provider request counter at midnight UTC.
	SpecResetAPIBudget = "0 0 * * *"
	// SpecBackup uploads database snapshots nightly.
	SpecBackup = "0 4 * * *"
)

// syncTimeout bounds one full price sync run.
const syncTimeout = 10 * time.Minute

// SyncPricesJob pulls daily bars for every held ticker.
type SyncPricesJob struct {
	sync *marketdata.SyncService
	log  zerolog.Logger
}

// NewSyncPricesJob creates the nightly price sync job.
func NewSyncPricesJob(sync *marketdata.SyncService, log zerolog.Logger) *SyncPricesJob {
	return &SyncPricesJob{
		sync: sync,
		log:  log.With().Str("job", "sync_prices").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *SyncPricesJob) Name() string { return "sync_prices" }

// Run executes one sync pass.
func (j *SyncPricesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	result, err := j.sync.SyncAll(ctx)
	if err != nil {
		return err
	}
	j.log.Info().Int("synced", result.Synced).Int("failed", result.Failed).Msg("Price sync run finished")
	return nil
}

// metricsRefresher is the slice of the analytics pipeline the refresh job
// needs.
type metricsRefresher interface {
	RefreshAll() error
}

// RefreshMetricsJob recomputes risk and ESG snapshots for every portfolio.
type RefreshMetricsJob struct {
	analytics metricsRefresher
}

// NewRefreshMetricsJob creates the analytics refresh job.
func NewRefreshMetricsJob(analytics metricsRefresher) *RefreshMetricsJob {
	return &RefreshMetricsJob{analytics: analytics}
}

// Name returns the job name for scheduling and logging.
func (j *RefreshMetricsJob) Name() string { return "refresh_metrics" }

// Run refreshes all portfolios.
func (j *RefreshMetricsJob) Run() error {
	return j.analytics.RefreshAll()
}

// budgetResetter resets a provider's daily request counter.
type budgetResetter interface {
	ResetDailyCounter()
}

// ResetAPIBudgetJob resets the market data provider's request budget.
type ResetAPIBudgetJob struct {
	client budgetResetter
}

// NewResetAPIBudgetJob creates the budget reset job.
func NewResetAPIBudgetJob(client budgetResetter) *ResetAPIBudgetJob {
	return &ResetAPIBudgetJob{client: client}
}

// Name returns the job name for scheduling and logging.
func (j *ResetAPIBudgetJob) Name() string { return "reset_api_budget" }

// Run resets the counter.
func (j *ResetAPIBudgetJob) Run() error {
	j.client.ResetDailyCounter()
	return nil
}
