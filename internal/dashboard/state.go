package dashboard

import "wallet/internal/core"

// Entity names one of the three client-side stores.
type Entity string

const (
	EntityTransactions Entity = "transactions"
	EntityCategories   Entity = "categories"
	EntityBudgets      Entity = "budgets"
)

// State is the dashboard's application state. Values are treated as
// immutable: every reducer returns a new State and never aliases the
// receiver's slices or map.
type State struct {
	Transactions []core.Transaction
	Categories   []core.Category
	Budgets      core.Budgets
	Revision     uint64
}

// NewState returns the empty state a mount starts from.
func NewState() State {
	return State{
		Transactions: []core.Transaction{},
		Categories:   []core.Category{},
		Budgets:      core.Budgets{},
	}
}

func (s State) next() State {
	s.Revision++
	return s
}

func (s State) WithTransactions(list []core.Transaction) State {
	s.Transactions = append([]core.Transaction{}, list...)
	return s.next()
}

func (s State) AppendTransaction(t core.Transaction) State {
	out := make([]core.Transaction, 0, len(s.Transactions)+1)
	out = append(out, s.Transactions...)
	s.Transactions = append(out, t)
	return s.next()
}

// ReplaceTransaction swaps the element with the given id for t.
func (s State) ReplaceTransaction(id int64, t core.Transaction) State {
	out := make([]core.Transaction, len(s.Transactions))
	for i, cur := range s.Transactions {
		if cur.ID == id {
			out[i] = t
			continue
		}
		out[i] = cur
	}
	s.Transactions = out
	return s.next()
}

// RemoveTransaction filters out every element with the given id.
func (s State) RemoveTransaction(id int64) State {
	out := make([]core.Transaction, 0, len(s.Transactions))
	for _, cur := range s.Transactions {
		if cur.ID != id {
			out = append(out, cur)
		}
	}
	s.Transactions = out
	return s.next()
}

func (s State) WithCategories(list []core.Category) State {
	s.Categories = append([]core.Category{}, list...)
	return s.next()
}

func (s State) AppendCategory(c core.Category) State {
	out := make([]core.Category, 0, len(s.Categories)+1)
	out = append(out, s.Categories...)
	s.Categories = append(out, c)
	return s.next()
}

func (s State) RemoveCategory(id int64) State {
	out := make([]core.Category, 0, len(s.Categories))
	for _, cur := range s.Categories {
		if cur.ID != id {
			out = append(out, cur)
		}
	}
	s.Categories = out
	return s.next()
}

func (s State) WithBudgets(b core.Budgets) State {
	if b == nil {
		b = core.Budgets{}
	}
	s.Budgets = b.Clone()
	return s.next()
}

// SetBudget writes mapping[b.Category] = b.Amount.
func (s State) SetBudget(b core.Budget) State {
	out := s.Budgets.Clone()
	out[b.Category] = b.Amount
	s.Budgets = out
	return s.next()
}

func (s State) RemoveBudget(category string) State {
	out := s.Budgets.Clone()
	delete(out, category)
	s.Budgets = out
	return s.next()
}

// Transaction looks up a transaction by id.
func (s State) Transaction(id int64) (core.Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}
