package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxDescriptionLen = 200
	maxNameLen        = 100
)

type (
	// Transaction is a single income or expense line. ID is server-assigned.
	Transaction struct {
		ID          int64  `json:"id"`
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	// TransactionInput is a Transaction without its server-assigned identity.
	TransactionInput struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	// Category is a named spending bucket. Names are not enforced unique.
	Category struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	// CategoryInput carries the fields of a category to create.
	CategoryInput struct {
		Name string `json:"name"`
	}

	// Budget assigns an amount to a category, keyed by the category name.
	Budget struct {
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
	}

	// Budgets maps category name to budgeted amount.
	Budgets map[string]Money
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty category name")
	ErrEmptyCategory    = errors.New("empty budget category")
	ErrTooLong          = errors.New("value too long")
)

// IsValidation reports whether err came from input validation.
func IsValidation(err error) bool {
	for _, target := range []error{ErrInvalidAmount, ErrEmptyDescription, ErrEmptyName, ErrEmptyCategory, ErrTooLong} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Input returns the transaction fields without the id.
func (t Transaction) Input() TransactionInput {
	return TransactionInput{Description: t.Description, Amount: t.Amount}
}

// Equal compares transactions field by field; amounts compare numerically.
func (t Transaction) Equal(o Transaction) bool {
	return t.ID == o.ID && t.Description == o.Description && t.Amount.Equal(o.Amount)
}

func (in TransactionInput) Validate() error {
	if strings.TrimSpace(in.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters: %w", maxDescriptionLen, ErrTooLong)
	}
	return nil
}

func (in CategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(in.Name) > maxNameLen {
		return fmt.Errorf("category name exceeds %d characters: %w", maxNameLen, ErrTooLong)
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Clone returns an independent copy of the mapping.
func (b Budgets) Clone() Budgets {
	out := make(Budgets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
