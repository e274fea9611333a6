package storage

import (
	"context"
	"fmt"
	"sync"

	"wallet/internal/core"
)

// MemoryStore keeps everything in process memory. Ids are assigned from
// per-entity counters and never reused after a delete.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions []core.Transaction
	categories   []core.Category
	budgets      core.Budgets
	nextTxID     int64
	nextCatID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{budgets: core.Budgets{}}
}

func (s *MemoryStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction{}, s.transactions...), nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTxID++
	t := core.Transaction{ID: s.nextTxID, Description: in.Description, Amount: in.Amount}
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == t.ID {
			s.transactions[i] = t
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, core.ErrNotFound)
}

func (s *MemoryStore) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
}

func (s *MemoryStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Category{}, s.categories...), nil
}

func (s *MemoryStore) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCatID++
	c := core.Category{ID: s.nextCatID, Name: in.Name}
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *MemoryStore) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("category %d: %w", id, core.ErrNotFound)
}

func (s *MemoryStore) ListBudgets(ctx context.Context) (core.Budgets, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.budgets.Clone(), nil
}

func (s *MemoryStore) PutBudget(ctx context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[b.Category] = b.Amount
	return nil
}

func (s *MemoryStore) DeleteBudget(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.budgets[category]; !ok {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	delete(s.budgets, category)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
