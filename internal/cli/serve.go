package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/cc-transaction-logger/internal/api"
	"github.com/eshaffer321/cc-transaction-logger/internal/application/service"
	"github.com/eshaffer321/cc-transaction-logger/internal/infrastructure/logging"
)

// jobCleanupInterval is how often the run service sweeps stale and old jobs.
const jobCleanupInterval = 5 * time.Minute

// RunServe runs the API server until SIGINT or SIGTERM. A port of 0 uses
// the configured port.
func RunServe(app *App, port int) error {
	if port == 0 {
		port = app.Config.API.Port
	}
	logger := app.Logger.With(logging.SystemKey, "api")

	store, err := app.Store()
	if err != nil {
		return err
	}
	runner, err := app.Runner()
	if err != nil {
		return err
	}

	runs := service.NewRunService(runner, logger)
	runs.StartBackgroundCleanup(jobCleanupInterval)
	defer runs.StopBackgroundCleanup()

	server := api.NewServer(api.Config{
		Port:           port,
		AllowedOrigins: app.Config.API.AllowedOrigins,
	}, api.Deps{
		Repo:       store,
		Registry:   app.Registry,
		Extraction: app.Service,
		Runs:       runs,
	}, logger)

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Blocks until shutdown
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
