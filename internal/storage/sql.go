package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"wallet/internal/core"
)

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name string
	// amountExpr selects the amount column as decimal text.
	amountExpr string
	// numbered placeholders ($1, $2, ...) instead of ?.
	numbered bool
}

// sqlStore implements Store over database/sql. Amounts travel as decimal
// text so no precision is lost on either side.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, description, "+s.d.amountExpr+" FROM transactions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		var t core.Transaction
		var amount string
		if err := rows.Scan(&t.ID, &t.Description, &amount); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Amount, err = core.ParseMoney(amount); err != nil {
			return nil, fmt.Errorf("transaction %d amount %q: %w", t.ID, amount, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *sqlStore) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.q("INSERT INTO transactions (description, amount) VALUES (?, ?) RETURNING id"),
		in.Description, in.Amount.String()).Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return core.Transaction{ID: id, Description: in.Description, Amount: in.Amount}, nil
}

func (s *sqlStore) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE transactions SET description = ?, amount = ? WHERE id = ?"),
		t.Description, t.Amount.String(), t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if err := expectRow(res, fmt.Sprintf("transaction %d", t.ID)); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *sqlStore) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM transactions WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("transaction %d", id))
}

func (s *sqlStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

func (s *sqlStore) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		s.q("INSERT INTO categories (name) VALUES (?) RETURNING id"), in.Name).Scan(&id)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return core.Category{ID: id, Name: in.Name}, nil
}

func (s *sqlStore) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM categories WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("category %d", id))
}

func (s *sqlStore) ListBudgets(ctx context.Context) (core.Budgets, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT category, "+s.d.amountExpr+" FROM budgets")
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := core.Budgets{}
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			return nil, fmt.Errorf("budget %q amount %q: %w", category, amount, err)
		}
		out[category] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *sqlStore) PutBudget(ctx context.Context, b core.Budget) error {
	_, err := s.db.ExecContext(ctx, s.q(
		"INSERT INTO budgets (category, amount) VALUES (?, ?) "+
			"ON CONFLICT (category) DO UPDATE SET amount = excluded.amount"),
		b.Category, b.Amount.String())
	if err != nil {
		return fmt.Errorf("put budget %q: %w", b.Category, err)
	}
	return nil
}

func (s *sqlStore) DeleteBudget(ctx context.Context, category string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM budgets WHERE category = ?"), category)
	if err != nil {
		return fmt.Errorf("delete budget %q: %w", category, err)
	}
	return expectRow(res, fmt.Sprintf("budget %q", category))
}

func (s *sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
