package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"wallet/internal/amqp"
	"wallet/internal/cli"
	"wallet/internal/config"
	"wallet/internal/log"
	"wallet/internal/metrics"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(config.Load().LogLevel, log.ComponentAudit)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the audit consumer",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.NewFields().WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		os.Exit(1)
	}
	defer client.Close()

	m := metrics.New("audit")
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics listener stopped", log.FieldError, err.Error())
		}
	}()

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	logger.Info("Starting wallet audit consumer", "queue", cfg.AMQPQueue, "metrics_port", cfg.Port)
	err = client.Consume(ctx, func(ctx context.Context, ev *amqp.Event) error {
		logger.InfoContext(ctx, "Ledger mutation",
			log.FieldEntity, ev.Entity,
			log.FieldOperation, ev.Operation,
			log.FieldKey, ev.Key,
			"occurred_at", ev.Timestamp.Format(time.RFC3339))
		m.ObserveEvent("in", "success")
		return nil
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed",
			log.NewFields().WithError(err, log.ErrorTypeNetwork).WithOperation(log.OpConsume).ToSlice()...)
		os.Exit(1)
	}
	logger.Info("Audit consumer stopped")
}
