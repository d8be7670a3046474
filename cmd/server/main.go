// Package main is the entry point for Meridian, a portfolio risk and ESG
// analytics service. It computes risk metrics (VaR, Sharpe, drawdown, beta),
// ESG scores and BUY/HOLD/SELL signals over stored portfolios, syncing daily
// price history from Alpha Vantage on a schedule.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/meridian/internal/clientdata"
	"github.com/aristath/meridian/internal/clients/alphavantage"
	"github.com/aristath/meridian/internal/config"
	"github.com/aristath/meridian/internal/database"
	"github.com/aristath/meridian/internal/modules/analytics"
	"github.com/aristath/meridian/internal/modules/esg"
	esghandlers "github.com/aristath/meridian/internal/modules/esg/handlers"
	"github.com/aristath/meridian/internal/modules/marketdata"
	"github.com/aristath/meridian/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/meridian/internal/modules/portfolio/handlers"
	"github.com/aristath/meridian/internal/modules/risk"
	riskhandlers "github.com/aristath/meridian/internal/modules/risk/handlers"
	"github.com/aristath/meridian/internal/modules/signals"
	signalhandlers "github.com/aristath/meridian/internal/modules/signals/handlers"
	"github.com/aristath/meridian/internal/reliability"
	"github.com/aristath/meridian/internal/scheduler"
	"github.com/aristath/meridian/internal/server"
	"github.com/aristath/meridian/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Meridian")

	// Databases
	portfolioDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "portfolio.db"),
		Name: "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	historyDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "history.db"),
		Name: "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	clientDataDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Name:    "client_data",
		Profile: database.ProfileCache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client_data database")
	}
	defer clientDataDB.Close()

	for _, db := range []*database.DB{portfolioDB, historyDB, clientDataDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// Repositories
	portfolioRepo := portfolio.NewPortfolioRepository(portfolioDB.Conn(), log)
	holdingRepo := portfolio.NewHoldingRepository(portfolioDB.Conn(), log)
	companyRepo := portfolio.NewCompanyESGRepository(portfolioDB.Conn(), log)
	snapshotRepo := portfolio.NewSnapshotRepository(portfolioDB.Conn(), log)
	priceRepo := marketdata.NewPriceRepository(historyDB.Conn(), log)
	cacheRepo := clientdata.NewRepository(clientDataDB.Conn())

	// Calculators
	riskCalc := risk.NewCalculator(risk.Config{RiskFreeRate: cfg.RiskFreeRate}, log)
	esgCalc := esg.NewCalculator(log)
	aggregator := signals.NewAggregator(log)

	analyticsService := analytics.NewService(
		portfolioRepo,
		holdingRepo,
		companyRepo,
		snapshotRepo,
		priceRepo,
		riskCalc,
		esgCalc,
		aggregator,
		analytics.Config{BenchmarkTicker: cfg.BenchmarkTicker},
		log,
	)

	// Market data client and sync, only when an API key is configured
	var avClient *alphavantage.Client
	var syncService *marketdata.SyncService
	if cfg.AlphaVantageAPIKey != "" {
		avClient = alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)
		syncService = marketdata.NewSyncService(avClient, priceRepo, holdingRepo, log)
	} else {
		log.Warn().Msg("No Alpha Vantage API key configured, price sync disabled")
	}

	// Scheduler
	sched := scheduler.New(log)
	if syncService != nil {
		if err := sched.Schedule(scheduler.SpecSyncPrices, scheduler.NewSyncPricesJob(syncService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule price sync")
		}
		if err := sched.Schedule(scheduler.SpecResetAPIBudget, scheduler.NewResetAPIBudgetJob(avClient)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule API budget reset")
		}
	}
	if err := sched.Schedule(scheduler.SpecRefreshMetrics, scheduler.NewRefreshMetricsJob(analyticsService)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule metrics refresh")
	}
	if err := sched.Schedule(scheduler.SpecCacheCleanup, clientdata.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cache cleanup")
	}

	// S3 backups, only when a bucket is configured
	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup client")
		}
		backupService := reliability.NewBackupService(
			s3Client,
			[]*database.DB{portfolioDB, historyDB},
			cfg.DataDir,
			log,
		)
		backupJob := reliability.NewBackupJob(backupService, cfg.Backup.RetentionDays, log)
		if err := sched.Schedule(scheduler.SpecBackup, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
	} else {
		log.Info().Msg("No backup bucket configured, backups disabled")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP server
	systemHandlers := server.NewSystemHandlers(
		log,
		cfg.DataDir,
		[]*database.DB{portfolioDB, historyDB, clientDataDB},
		sched,
		budgetOrNil(avClient),
	)

	srv := server.New(server.Config{
		Log:     log,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
		System:  systemHandlers,
		Modules: []server.Registrar{
			portfoliohandlers.NewHandler(portfolioRepo, holdingRepo, log),
			riskhandlers.NewHandler(riskCalc, analyticsService, snapshotRepo, log),
			esghandlers.NewHandler(esgCalc, analyticsService, companyRepo, snapshotRepo, log),
			signalhandlers.NewHandler(analyticsService, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// budgetOrNil avoids passing a typed nil pointer into an interface value.
func budgetOrNil(client *alphavantage.Client) interface{ GetRemainingRequests() int } {
	if client == nil {
		return nil
	}
	return client
}
