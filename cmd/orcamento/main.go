package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"orcamento/internal/backend"
	"orcamento/internal/cli"
	apphttp "orcamento/internal/http"
	"orcamento/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to build backend config", "error", err)
		os.Exit(1)
	}
	app, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		Build(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(app.Services, apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		Hub:                app.Hub,
		DB:                 app.Repo,
		Sheet:              app.Sheet,
	})
	// No WriteTimeout: /events streams for as long as the client stays.
	srv.ReadTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	runErr := make(chan error, 1)
	go func() { runErr <- app.Run(ctx) }()

	logger.Info("Starting orcamento server",
		"port", cfg.Port,
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", cfg.AMQPEnabled(),
		"sheets_enabled", cfg.SheetsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = app.Close()
		os.Exit(1)
	}

	<-done
	if err := <-runErr; err != nil {
		logger.Error("Background work stopped with error", "error", err)
	}
	if err := app.Close(); err != nil {
		logger.Error("Failed to release resources", "error", err)
	}
	logger.Info("Server stopped gracefully")
}
