// Package services holds the REST backend's application logic.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"wallet/internal/amqp"
	"wallet/internal/cache"
	"wallet/internal/core"
	"wallet/internal/log"
	"wallet/internal/storage"
)

// EventPublisher sends domain events; amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.Event) error
}

// Recorder counts mutations and published events.
type Recorder interface {
	ObserveMutation(entity, operation, outcome string)
	ObserveEvent(direction, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string, string) {}
func (nopRecorder) ObserveEvent(string, string)            {}

// Entity names used in events, logs and metrics.
const (
	EntityTransactions = "transactions"
	EntityCategories   = "categories"
	EntityBudgets      = "budgets"
)

const listKey = "all"

type LedgerOptions struct {
	// Events is optional; without it mutations are not announced.
	Events  EventPublisher
	Logger  *log.Logger
	Metrics Recorder
	// CacheTTL bounds how long list responses are served from memory.
	// Zero disables caching.
	CacheTTL time.Duration
}

// Ledger orchestrates writes to the store, list caching and event
// publishing. Publishing failures are logged and never fail a request.
type Ledger struct {
	store   storage.Store
	events  EventPublisher
	logger  *log.Logger
	metrics Recorder

	// cacheMu orders list fills against invalidations. A fill stores its
	// result only if the entity's generation did not move during the read.
	cacheMu     sync.Mutex
	generations map[string]uint64

	cacheTTL     time.Duration
	transactions *cache.LRUCache[[]core.Transaction]
	categories   *cache.LRUCache[[]core.Category]
	budgets      *cache.LRUCache[core.Budgets]
	cacheManager *cache.Manager
}

func NewLedger(store storage.Store, opts LedgerOptions) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	l := &Ledger{
		store:    store,
		events:   opts.Events,
		logger:   logger.WithComponent(log.ComponentStorage),
		metrics:  metrics,
		cacheTTL: opts.CacheTTL,

		generations: make(map[string]uint64),
	}
	if opts.CacheTTL > 0 {
		l.transactions = cache.NewLRUCache[[]core.Transaction](1, opts.CacheTTL)
		l.categories = cache.NewLRUCache[[]core.Category](1, opts.CacheTTL)
		l.budgets = cache.NewLRUCache[core.Budgets](1, opts.CacheTTL)
		l.cacheManager = cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
		l.cacheManager.Register(l.transactions)
		l.cacheManager.Register(l.categories)
		l.cacheManager.Register(l.budgets)
		l.cacheManager.StartCleanup(opts.CacheTTL)
	}
	return l
}

// RegisterCaches hands each list cache's stats to register, e.g. to
// expose them as metrics. It does nothing when caching is disabled.
func (l *Ledger) RegisterCaches(register func(name string, stats func() cache.Stats)) {
	if l.cacheTTL <= 0 {
		return
	}
	register(EntityTransactions, l.transactions.Stats)
	register(EntityCategories, l.categories.Stats)
	register(EntityBudgets, l.budgets.Stats)
}

func (l *Ledger) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	if l.transactions != nil {
		if list, ok := l.transactions.Get(listKey); ok {
			return append([]core.Transaction{}, list...), nil
		}
	}
	gen := l.generation(EntityTransactions)
	list, err := l.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if l.transactions != nil {
		l.fill(EntityTransactions, gen, func() { l.transactions.Set(listKey, append([]core.Transaction{}, list...)) })
	}
	return list, nil
}

func (l *Ledger) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		l.fail(ctx, EntityTransactions, log.OpCreate, "", err)
		return core.Transaction{}, err
	}
	t, err := l.store.CreateTransaction(ctx, in)
	if err != nil {
		l.fail(ctx, EntityTransactions, log.OpCreate, "", err)
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	l.invalidate(EntityTransactions)
	l.done(ctx, EntityTransactions, log.OpCreate, strconv.FormatInt(t.ID, 10))
	return t, nil
}

func (l *Ledger) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	key := strconv.FormatInt(t.ID, 10)
	if err := t.Input().Validate(); err != nil {
		l.fail(ctx, EntityTransactions, log.OpUpdate, key, err)
		return core.Transaction{}, err
	}
	updated, err := l.store.UpdateTransaction(ctx, t)
	if err != nil {
		l.fail(ctx, EntityTransactions, log.OpUpdate, key, err)
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	l.invalidate(EntityTransactions)
	l.done(ctx, EntityTransactions, log.OpUpdate, key)
	return updated, nil
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	key := strconv.FormatInt(id, 10)
	if err := l.store.DeleteTransaction(ctx, id); err != nil {
		l.fail(ctx, EntityTransactions, log.OpDelete, key, err)
		return fmt.Errorf("delete transaction: %w", err)
	}
	l.invalidate(EntityTransactions)
	l.done(ctx, EntityTransactions, log.OpDelete, key)
	return nil
}

func (l *Ledger) ListCategories(ctx context.Context) ([]core.Category, error) {
	if l.categories != nil {
		if list, ok := l.categories.Get(listKey); ok {
			return append([]core.Category{}, list...), nil
		}
	}
	gen := l.generation(EntityCategories)
	list, err := l.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if l.categories != nil {
		l.fill(EntityCategories, gen, func() { l.categories.Set(listKey, append([]core.Category{}, list...)) })
	}
	return list, nil
}

func (l *Ledger) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		l.fail(ctx, EntityCategories, log.OpCreate, "", err)
		return core.Category{}, err
	}
	c, err := l.store.CreateCategory(ctx, in)
	if err != nil {
		l.fail(ctx, EntityCategories, log.OpCreate, "", err)
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	l.invalidate(EntityCategories)
	l.done(ctx, EntityCategories, log.OpCreate, strconv.FormatInt(c.ID, 10))
	return c, nil
}

func (l *Ledger) DeleteCategory(ctx context.Context, id int64) error {
	key := strconv.FormatInt(id, 10)
	if err := l.store.DeleteCategory(ctx, id); err != nil {
		l.fail(ctx, EntityCategories, log.OpDelete, key, err)
		return fmt.Errorf("delete category: %w", err)
	}
	l.invalidate(EntityCategories)
	l.done(ctx, EntityCategories, log.OpDelete, key)
	return nil
}

func (l *Ledger) ListBudgets(ctx context.Context) (core.Budgets, error) {
	if l.budgets != nil {
		if b, ok := l.budgets.Get(listKey); ok {
			return b.Clone(), nil
		}
	}
	gen := l.generation(EntityBudgets)
	b, err := l.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	if l.budgets != nil {
		l.fill(EntityBudgets, gen, func() { l.budgets.Set(listKey, b.Clone()) })
	}
	return b, nil
}

func (l *Ledger) CreateBudget(ctx context.Context, b core.Budget) error {
	return l.putBudget(ctx, b, log.OpCreate)
}

// UpdateBudget replaces the amount of b.Category, creating it if absent.
func (l *Ledger) UpdateBudget(ctx context.Context, b core.Budget) error {
	return l.putBudget(ctx, b, log.OpUpdate)
}

func (l *Ledger) putBudget(ctx context.Context, b core.Budget, op string) error {
	if err := b.Validate(); err != nil {
		l.fail(ctx, EntityBudgets, op, b.Category, err)
		return err
	}
	if err := l.store.PutBudget(ctx, b); err != nil {
		l.fail(ctx, EntityBudgets, op, b.Category, err)
		return fmt.Errorf("%s budget: %w", op, err)
	}
	l.invalidate(EntityBudgets)
	l.done(ctx, EntityBudgets, op, b.Category)
	return nil
}

func (l *Ledger) DeleteBudget(ctx context.Context, category string) error {
	if err := l.store.DeleteBudget(ctx, category); err != nil {
		l.fail(ctx, EntityBudgets, log.OpDelete, category, err)
		return fmt.Errorf("delete budget: %w", err)
	}
	l.invalidate(EntityBudgets)
	l.done(ctx, EntityBudgets, log.OpDelete, category)
	return nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

func (l *Ledger) generation(entity string) uint64 {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	return l.generations[entity]
}

// fill runs set unless a mutation of entity committed since gen was read.
func (l *Ledger) fill(entity string, gen uint64, set func()) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	if l.generations[entity] == gen {
		set()
	}
}

func (l *Ledger) invalidate(entity string) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	l.generations[entity]++
	switch entity {
	case EntityTransactions:
		if l.transactions != nil {
			l.transactions.Delete(listKey)
		}
	case EntityCategories:
		if l.categories != nil {
			l.categories.Delete(listKey)
		}
	case EntityBudgets:
		if l.budgets != nil {
			l.budgets.Delete(listKey)
		}
	}
}

func (l *Ledger) done(ctx context.Context, entity, op, key string) {
	l.metrics.ObserveMutation(entity, op, "success")
	l.logger.InfoContext(ctx, "Mutation applied", log.NewFields().WithMutation(entity, op, key).ToSlice()...)
	l.publish(ctx, entity, op, key)
}

func (l *Ledger) fail(ctx context.Context, entity, op, key string, err error) {
	outcome, errorType := "invalid", log.ErrorTypeValidation
	switch {
	case errors.Is(err, core.ErrNotFound):
		outcome, errorType = "not_found", log.ErrorTypeNotFound
	case core.IsValidation(err):
	default:
		outcome, errorType = "error", log.ErrorTypeDatabase
	}
	l.metrics.ObserveMutation(entity, op, outcome)
	l.logger.WarnContext(ctx, "Mutation failed",
		log.NewFields().WithMutation(entity, op, key).WithError(err, errorType).ToSlice()...)
}

func (l *Ledger) publish(ctx context.Context, entity, op, key string) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ctx, amqp.NewEvent(entity, op, key)); err != nil {
		l.metrics.ObserveEvent("out", "error")
		l.logger.ErrorContext(ctx, "Failed to publish event",
			log.NewFields().WithMutation(entity, op, key).WithError(err, log.ErrorTypeNetwork).ToSlice()...)
		return
	}
	l.metrics.ObserveEvent("out", "success")
}

// Close stops cache cleanup and closes the store and the publisher.
func (l *Ledger) Close() error {
	if l.cacheManager != nil {
		l.cacheManager.Stop()
	}

	var errs []error
	if l.store != nil {
		if err := l.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := l.events.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger: %w", errors.Join(errs...))
	}
	return nil
}
