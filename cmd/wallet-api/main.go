package main

import (
	"context"
	"os"

	"wallet/internal/api"
	"wallet/internal/backend"
	"wallet/internal/cli"
	"wallet/internal/config"
	"wallet/internal/log"
	"wallet/internal/metrics"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel, log.ComponentAPI)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}

	m := metrics.New("api")
	res, err := backend.NewFactory(logger, m).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend",
			log.NewFields().WithError(err, log.ErrorTypeDatabase).ToSlice()...)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	res.Ledger.RegisterCaches(m.RegisterCache)

	srv := api.NewServer(":"+cfg.APIPort, res.Ledger, api.Options{
		Logger:    logger,
		Metrics:   m,
		RateLimit: cfg.RateLimit,
	})

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	logger.Info("Starting wallet API",
		"port", cfg.APIPort,
		log.FieldBackend, cfg.StorageBackend,
		"events_enabled", res.EventsEnabled)
	if err := cli.Serve(ctx, logger, srv, cli.ShutdownTimeout); err != nil {
		// Deferred cleanup does not run after os.Exit.
		_ = res.Cleanup()
		os.Exit(1)
	}
}
