// Package storage persists the REST backend's transactions, categories
// and budgets. Unknown ids and keys are reported as core.ErrNotFound.
package storage

import (
	"context"

	"wallet/internal/core"
)

type TransactionStore interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type BudgetStore interface {
	ListBudgets(ctx context.Context) (core.Budgets, error)
	// PutBudget creates or replaces the budget of b.Category.
	PutBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, category string) error
}

// Store is the full persistence surface of the backend.
type Store interface {
	TransactionStore
	CategoryStore
	BudgetStore
	Ping(ctx context.Context) error
	Close() error
}
