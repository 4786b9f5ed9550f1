// Package main is the entry point for the Folio portfolio analysis service.
// It wires the broker client, SQLite stores, return calculator, background
// jobs, and HTTP API, then runs until interrupted.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/folio/internal/cache"
	"github.com/foliolabs/folio/internal/clients/alpaca"
	"github.com/foliolabs/folio/internal/config"
	"github.com/foliolabs/folio/internal/database"
	"github.com/foliolabs/folio/internal/jobs"
	"github.com/foliolabs/folio/internal/modules/analysis"
	"github.com/foliolabs/folio/internal/modules/cashflows"
	"github.com/foliolabs/folio/internal/modules/classification"
	"github.com/foliolabs/folio/internal/modules/positions"
	"github.com/foliolabs/folio/internal/modules/returns"
	"github.com/foliolabs/folio/internal/modules/snapshots"
	"github.com/foliolabs/folio/internal/modules/targets"
	"github.com/foliolabs/folio/internal/reliability"
	"github.com/foliolabs/folio/internal/server"
	"github.com/foliolabs/folio/pkg/logger"
)

// accountID keys per-account caches; the service manages a single account
const accountID = "primary"

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

	log.Info().Msg("Starting Folio")

	// Databases
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}

	databases := map[string]*database.DB{
		"portfolio": portfolioDB,
		"cache":     cacheDB,
	}
	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to apply schema")
		}
	}

	cacheStore := cache.New(cacheDB.Conn(), log)

	// Broker client and domain services
	broker := alpaca.NewClient(cfg.BrokerBaseURL, cfg.BrokerAPIKey, cfg.BrokerAPISecret, cfg.BrokerTimeout, log)
	normalizer := positions.NewNormalizer(log)
	classifier := classification.NewClassifier(broker, cacheStore, log)
	analysisService := analysis.NewService(classifier, cfg.RebalanceTolerancePP, log)
	targetRepo := targets.NewRepository(portfolioDB.Conn(), log)

	ledger := cashflows.NewLedger(portfolioDB.Conn(), log)
	resolver := cashflows.NewResolver(broker, ledger, cfg.Location(), log)
	snapshotRepo := snapshots.NewRepository(portfolioDB.Conn(), log)

	policy := returns.Policy{
		AcceptThreshold:  cfg.AcceptThreshold,
		CapThreshold:     cfg.CapThreshold,
		CappingEnabled:   cfg.CappingEnabled,
		EstimateFraction: cfg.EstimateFraction,
	}
	calculator := returns.NewCalculator(broker, normalizer, resolver, snapshotRepo, cacheStore, policy, cfg.ReturnCacheTTL, log)

	// Trade-update stream: fills invalidate the cached return so the next
	// read reflects post-fill state.
	var stream *alpaca.TradeUpdateStream
	if cfg.BrokerAPIKey != "" {
		stream = alpaca.NewTradeUpdateStream(cfg.BrokerStreamURL, cfg.BrokerAPIKey, cfg.BrokerAPISecret, func(symbol string) {
			calculator.InvalidateToday(accountID)
		}, log)
		stream.Start()
	} else {
		log.Warn().Msg("Broker credentials missing, trade stream disabled")
	}

	// Backups are optional: enabled when a bucket is configured
	backupService := setupBackups(cfg, databases, log)

	// Background jobs in the account timezone
	scheduler := jobs.NewScheduler(cfg.Location(), log)
	registerJobs(scheduler, cfg, broker, snapshotRepo, cacheStore, cacheDB, databases, backupService, log)
	scheduler.Start()

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Portfolio: server.NewPortfolioHandlers(broker, normalizer, analysisService, targetRepo, calculator, accountID, log),
		System:    server.NewSystemHandlers(databases, backupService, cfg.DataDir, log),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or fatal server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	if stream != nil {
		stream.Stop()
	}
	scheduler.Stop()

	for name, db := range databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			log.Warn().Err(err).Str("database", name).Msg("Final WAL checkpoint failed")
		}
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("database", name).Msg("Failed to close database")
		}
	}

	log.Info().Msg("Folio stopped")
}

// setupBackups creates the backup service when a bucket is configured
func setupBackups(cfg *config.Config, databases map[string]*database.DB, log zerolog.Logger) *reliability.BackupService {
	if cfg.BackupBucket == "" {
		log.Info().Msg("Backups disabled (no bucket configured)")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := reliability.NewObjectStore(ctx, reliability.ObjectStoreConfig{
		Bucket:    cfg.BackupBucket,
		Region:    cfg.BackupRegion,
		Endpoint:  cfg.BackupEndpoint,
		AccessKey: cfg.BackupAccessKey,
		SecretKey: cfg.BackupSecretKey,
	}, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize backup storage, backups disabled")
		return nil
	}

	return reliability.NewBackupService(store, databases, cfg.DataDir, cfg.BackupKeep, log)
}

// registerJobs wires the recurring background work
func registerJobs(
	scheduler *jobs.Scheduler,
	cfg *config.Config,
	broker *alpaca.Client,
	snapshotRepo *snapshots.Repository,
	cacheStore *cache.Cache,
	cacheDB *database.DB,
	databases map[string]*database.DB,
	backupService *reliability.BackupService,
	log zerolog.Logger,
) {
	// Snapshot shortly after market close on weekdays
	mustRegister(scheduler, "10 16 * * 1-5", jobs.NewEquitySnapshotJob(broker, snapshotRepo, cfg.Location(), log), log)

	mustRegister(scheduler, "0 2 * * *", reliability.NewDailyMaintenanceJob(databases, cfg.DataDir, log), log)
	mustRegister(scheduler, "0 3 * * 0", reliability.NewWeeklyMaintenanceJob(map[string]*database.DB{"cache": cacheDB}, log), log)
	mustRegister(scheduler, "0 * * * *", jobs.NewCachePruneJob(cacheStore, log), log)

	if backupService != nil {
		mustRegister(scheduler, "30 2 * * *", jobs.NewBackupJob(backupService, log), log)
	}
}

func mustRegister(scheduler *jobs.Scheduler, spec string, job jobs.Job, log zerolog.Logger) {
	if err := scheduler.Register(spec, job); err != nil {
		log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
	}
}
