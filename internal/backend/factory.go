package backend

import (
	"context"
	"fmt"

	"wallet/internal/amqp"
	"wallet/internal/log"
	"wallet/internal/services"
	"wallet/internal/storage"
)

// Factory builds ledgers from configuration.
type Factory struct {
	logger  *log.Logger
	metrics services.Recorder
}

// NewFactory creates a backend factory. metrics may be nil.
func NewFactory(logger *log.Logger, metrics services.Recorder) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{
		logger:  logger.WithComponent(log.ComponentStorage),
		metrics: metrics,
	}
}

// Create opens the configured store and wraps it in a ledger. An
// unreachable broker is logged and the ledger runs without events.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := services.LedgerOptions{
		Logger:   f.logger,
		Metrics:  f.metrics,
		CacheTTL: cfg.CacheTTL,
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				log.NewFields().WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		} else {
			opts.Events = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	ledger := services.NewLedger(store, opts)
	f.logger.InfoContext(ctx, "Initialized storage backend",
		log.FieldBackend, cfg.Type.String(),
		"cache_ttl", cfg.CacheTTL.String(),
		"events_enabled", opts.Events != nil)

	return &Result{
		Ledger:        ledger,
		Cleanup:       ledger.Close,
		EventsEnabled: opts.Events != nil,
	}, nil
}

func (f *Factory) openStore(ctx context.Context, cfg Config) (storage.Store, error) {
	switch cfg.Type {
	case MemoryBackend:
		return storage.NewMemoryStore(), nil
	case SQLiteBackend:
		s, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		return s, nil
	case PostgresBackend:
		s, err := storage.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
