package dashboard

import "wallet/internal/core"

// View is a render-ready snapshot of the dashboard.
type View struct {
	Revision     uint64
	Transactions []TransactionRow
	Budgets      []BudgetRow
	Categories   []CategoryRow

	TransactionForm TransactionForm
	BudgetForm      BudgetForm
	CategoryForm    CategoryForm

	// LoadErrors lists the stores whose mount-time fetch failed.
	LoadErrors map[Entity]Notice
}

type TransactionRow struct {
	core.Transaction
	Editing bool
	Draft   TransactionDraft
	Notice  *Notice
}

// BudgetRow is rendered once per category; Amount is looked up by the
// category's name and HasBudget is false when no budget exists for it.
type BudgetRow struct {
	Category  core.Category
	Amount    core.Money
	HasBudget bool
	Editing   bool
	Draft     BudgetDraft
	Notice    *Notice
}

type CategoryRow struct {
	core.Category
	Notice *Notice
}

// HasLoadErrors reports whether any store failed to load.
func (v View) HasLoadErrors() bool {
	return len(v.LoadErrors) > 0
}

// LoadError returns the load failure of one store, or nil.
func (v View) LoadError(entity string) *Notice {
	n, ok := v.LoadErrors[Entity(entity)]
	if !ok {
		return nil
	}
	return &n
}

func (v View) Transaction(id int64) (TransactionRow, bool) {
	for _, row := range v.Transactions {
		if row.ID == id {
			return row, true
		}
	}
	return TransactionRow{}, false
}

func (v View) Budget(category string) (BudgetRow, bool) {
	for _, row := range v.Budgets {
		if row.Category.Name == category {
			return row, true
		}
	}
	return BudgetRow{}, false
}

// View snapshots the dashboard for rendering.
func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()

	v := View{
		Revision:        d.state.Revision,
		Transactions:    make([]TransactionRow, 0, len(d.state.Transactions)),
		Budgets:         make([]BudgetRow, 0, len(d.state.Categories)),
		Categories:      make([]CategoryRow, 0, len(d.state.Categories)),
		TransactionForm: d.txForm,
		BudgetForm:      d.budgetForm,
		CategoryForm:    d.categoryForm,
		LoadErrors:      make(map[Entity]Notice, len(d.loadErrors)),
	}
	for k, n := range d.loadErrors {
		v.LoadErrors[k] = n
	}

	for _, t := range d.state.Transactions {
		row := TransactionRow{Transaction: t}
		if draft, ok := d.txRows[t.ID].Draft(); ok {
			row.Editing = true
			row.Draft = draft
		}
		row.Notice = noticeRef(d.txNotices, t.ID)
		v.Transactions = append(v.Transactions, row)
	}

	for _, c := range d.state.Categories {
		amount, ok := d.state.Budgets[c.Name]
		row := BudgetRow{Category: c, Amount: amount, HasBudget: ok}
		if draft, editing := d.budgetRows[c.Name].Draft(); editing {
			row.Editing = true
			row.Draft = draft
		}
		row.Notice = noticeRef(d.budgetNotices, c.Name)
		v.Budgets = append(v.Budgets, row)

		v.Categories = append(v.Categories, CategoryRow{Category: c, Notice: noticeRef(d.categoryNotice, c.ID)})
	}
	return v
}

func noticeRef[K comparable](m map[K]Notice, key K) *Notice {
	n, ok := m[key]
	if !ok {
		return nil
	}
	return &n
}
