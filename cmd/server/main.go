// Package main is the entry point for the optimizer service.
//
// Startup order matters: configuration and logging first, then the two
// SQLite databases (inputs and results), then the recommendation service
// and its HTTP surface, and finally the cron scheduler for run retention.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reachplan/optimizer/internal/config"
	"github.com/reachplan/optimizer/internal/database"
	"github.com/reachplan/optimizer/internal/events"
	"github.com/reachplan/optimizer/internal/modules/curves"
	curveshandlers "github.com/reachplan/optimizer/internal/modules/curves/handlers"
	"github.com/reachplan/optimizer/internal/modules/finance"
	financehandlers "github.com/reachplan/optimizer/internal/modules/finance/handlers"
	"github.com/reachplan/optimizer/internal/modules/recommendation"
	recommendationhandlers "github.com/reachplan/optimizer/internal/modules/recommendation/handlers"
	"github.com/reachplan/optimizer/internal/modules/results"
	"github.com/reachplan/optimizer/internal/scheduler"
	"github.com/reachplan/optimizer/internal/server"
	"github.com/reachplan/optimizer/internal/tracking"
	"github.com/reachplan/optimizer/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting optimizer")

	// Inputs database holds response curves and financials, results holds
	// scenario runs. The results database uses the archive profile because
	// finished runs must survive crashes without a WAL replay losing them.
	inputsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "inputs.db"),
		Profile: database.ProfileStandard,
		Name:    "inputs",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open inputs database")
	}
	defer inputsDB.Close()

	resultsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "results.db"),
		Profile: database.ProfileArchive,
		Name:    "results",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open results database")
	}
	defer resultsDB.Close()

	curvesRepo := curves.NewRepository(inputsDB.Conn(), log)
	financeRepo := finance.NewRepository(inputsDB.Conn(), log)
	resultsRepo := results.NewRepository(resultsDB.Conn(), log)

	if err := curvesRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize curves schema")
	}
	if err := financeRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize finance schema")
	}
	if err := resultsRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize results schema")
	}

	bus := events.NewBus()

	solver := recommendation.NewHighsSolver(log)
	svc := recommendation.NewService(
		curvesRepo,
		financeRepo,
		resultsRepo,
		solver,
		bus,
		tracking.Config{
			S3Bucket:  cfg.Tracking.S3Bucket,
			S3Prefix:  cfg.Tracking.S3Prefix,
			AWSRegion: cfg.Tracking.AWSRegion,
		},
		log,
	)
	svc.SetDefaults(recommendation.SolverOptions{
		MIPGap:           cfg.Solver.MIPGap,
		TimeLimitSeconds: cfg.Solver.TimeLimitSeconds,
		Threads:          cfg.Solver.Threads,
	}, cfg.Solver.NormalizationFactor)

	handler := recommendationhandlers.NewHandler(svc, resultsRepo, log)
	curvesHandler := curveshandlers.NewHandler(curvesRepo, log)
	financeHandler := financehandlers.NewHandler(financeRepo, log)

	// Finished runs older than the TTL are swept nightly.
	sched := scheduler.New(log)
	cleanupJob := scheduler.NewRunCleanupJob(
		resultsRepo,
		time.Duration(cfg.Retention.RunTTLDays)*24*time.Hour,
		log,
	)
	if err := sched.AddJob(cfg.Retention.CleanupCron, cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule run cleanup")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:            log,
		InputsDB:       inputsDB,
		ResultsDB:      resultsDB,
		Config:         cfg,
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		EventBus:       bus,
		Recommendation: handler,
		Curves:         curvesHandler,
		Finance:        financeHandler,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	// In-flight optimization runs are allowed to finish so their results
	// are persisted before the process exits.
	svc.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
