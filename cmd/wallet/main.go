package main

import (
	"os"

	"wallet/internal/apiclient"
	"wallet/internal/auth"
	"wallet/internal/cli"
	"wallet/internal/config"
	"wallet/internal/dashboard"
	apphttp "wallet/internal/http"
	"wallet/internal/log"
	"wallet/internal/metrics"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	client, err := apiclient.New(cfg.APIBaseURL,
		apiclient.WithTimeout(cfg.APITimeout),
		apiclient.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create API client",
			log.NewFields().WithError(err, log.ErrorTypeConfiguration).ToSlice()...)
		os.Exit(1)
	}

	m := metrics.New("web")
	dash := dashboard.New(client, dashboard.Options{
		SafeMutations: cfg.SafeMutations,
		Logger:        logger,
		Metrics:       m,
	})
	nav := auth.NewNavigator(cfg.AuthDelay, logger)

	srv := apphttp.NewServer(":"+cfg.Port, dash, nav, apphttp.Options{
		Logger:    logger,
		Metrics:   m,
		Ready:     client.Ping,
		RateLimit: cfg.RateLimit,
	})

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	logger.Info("Starting wallet server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"safe_mutations", cfg.SafeMutations)
	if err := cli.Serve(ctx, logger, srv, cli.ShutdownTimeout); err != nil {
		os.Exit(1)
	}
}
