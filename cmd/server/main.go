package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"workout/backend/internal/catalog"
	"workout/backend/internal/clock"
	"workout/backend/internal/config"
	"workout/backend/internal/controller"
	"workout/backend/internal/db"
	"workout/backend/internal/handle"
	"workout/backend/internal/handler"
	"workout/backend/internal/logging"
	"workout/backend/internal/metrics"
	"workout/backend/internal/middleware"
	"workout/backend/internal/repository"
	"workout/backend/internal/resttimer"
	"workout/backend/internal/router"
	"workout/backend/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		return err
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, clock.System{})
	accountService := service.NewAccountService(repository.NewUserRepository(database), tokens, clock.System{})
	workoutService := service.NewWorkoutService(
		repository.NewWorkoutRepository(database),
		handle.NewFileHandle(cfg.HandlePath),
		cat,
		clock.System{},
		logger,
		controller.WithMetrics(metrics.New(registry)),
		controller.WithDefaultRestSeconds(cfg.DefaultRestSeconds),
		controller.WithRestAfterWarmup(cfg.RestAfterWarmup),
		controller.WithWriteTimeout(cfg.WriteTimeout),
		controller.WithTimerOptions(resttimer.WithMaxSeconds(cfg.MaxRestSeconds)),
	)
	defer workoutService.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := workoutService.Recover(ctx); err != nil {
		// the runtime stays in the error phase; the API still serves history and begin
		logger.Error("session recovery failed", "error", err)
	}

	workoutHandler := handler.NewWorkoutHandler(workoutService)
	engine := router.New(
		tokens,
		handler.NewAccountHandler(accountService, workoutService),
		workoutHandler,
		registry,
		middleware.DefaultCORSPolicy(cfg.CORSOrigins),
		logger,
	)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	// Shutdown waits for open event streams, which only end when told to.
	server.RegisterOnShutdown(workoutHandler.CloseStreams)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("backend listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
