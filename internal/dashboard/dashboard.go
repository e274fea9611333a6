// Package dashboard owns the home screen's state: the three entity stores,
// the editable rows and the add forms. Backend calls run outside the lock;
// their outcome is applied as a single reducer transition under it, so
// whichever response arrives last is the one the store reflects.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"wallet/internal/apiclient"
	"wallet/internal/core"
	"wallet/internal/log"
)

// Backend is the REST surface the dashboard consumes.
type Backend interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]core.Category, error)
	CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListBudgets(ctx context.Context) (core.Budgets, error)
	CreateBudget(ctx context.Context, b core.Budget) error
	UpdateBudget(ctx context.Context, b core.Budget) error
	DeleteBudget(ctx context.Context, category string) error
}

// Recorder receives one observation per load or mutation.
type Recorder interface {
	ObserveMutation(entity, operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string, string) {}

// Outcome labels passed to Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
)

type Options struct {
	// SafeMutations keeps add-form input and editing rows when the backend
	// call fails. Off by default: forms reset and rows leave Editing
	// regardless of the outcome.
	SafeMutations bool
	Logger        *log.Logger
	Metrics       Recorder
}

type Dashboard struct {
	backend Backend
	safe    bool
	logger  *log.Logger
	metrics Recorder

	mu             sync.Mutex
	state          State
	loadErrors     map[Entity]Notice
	txRows         map[int64]RowState[TransactionDraft]
	txNotices      map[int64]Notice
	budgetRows     map[string]RowState[BudgetDraft]
	budgetNotices  map[string]Notice
	categoryNotice map[int64]Notice
	txForm         TransactionForm
	budgetForm     BudgetForm
	categoryForm   CategoryForm
}

func New(backend Backend, opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopRecorder{}
	}
	d := &Dashboard{
		backend: backend,
		safe:    opts.SafeMutations,
		logger:  logger.WithComponent(log.ComponentDashboard),
		metrics: metrics,
	}
	d.reset()
	return d
}

func (d *Dashboard) reset() {
	d.state = NewState()
	d.loadErrors = map[Entity]Notice{}
	d.txRows = map[int64]RowState[TransactionDraft]{}
	d.txNotices = map[int64]Notice{}
	d.budgetRows = map[string]RowState[BudgetDraft]{}
	d.budgetNotices = map[string]Notice{}
	d.categoryNotice = map[int64]Notice{}
	d.txForm = NewTransactionForm()
	d.budgetForm = NewBudgetForm()
	d.categoryForm = NewCategoryForm()
}

// State returns the current application state.
func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Mount resets every store to empty and fetches all three collections
// concurrently. A failed load leaves its store empty and is reported in
// the view; it never affects the other two.
func (d *Dashboard) Mount(ctx context.Context) {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		list, err := d.backend.ListTransactions(ctx)
		d.applyLoad(ctx, EntityTransactions, err, func(s State) State { return s.WithTransactions(list) })
		return nil
	})
	g.Go(func() error {
		list, err := d.backend.ListCategories(ctx)
		d.applyLoad(ctx, EntityCategories, err, func(s State) State { return s.WithCategories(list) })
		return nil
	})
	g.Go(func() error {
		budgets, err := d.backend.ListBudgets(ctx)
		d.applyLoad(ctx, EntityBudgets, err, func(s State) State { return s.WithBudgets(budgets) })
		return nil
	})
	_ = g.Wait()
}

func (d *Dashboard) applyLoad(ctx context.Context, entity Entity, err error, reduce func(State) State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.loadErrors[entity] = noticeFor(err)
		d.observe(ctx, entity, log.OpLoad, "", err)
		return
	}
	delete(d.loadErrors, entity)
	d.state = reduce(d.state)
	d.observe(ctx, entity, log.OpLoad, "", nil)
}

// AddTransaction submits the add-transaction form with the typed values.
func (d *Dashboard) AddTransaction(ctx context.Context, description, amount string) error {
	typed := TransactionForm{Description: description, Amount: amount}
	value, err := core.ParseMoney(amount)
	if err == nil {
		var tx core.Transaction
		tx, err = d.backend.CreateTransaction(ctx, core.TransactionInput{Description: description, Amount: value})
		if err == nil {
			d.mu.Lock()
			d.state = d.state.AppendTransaction(tx)
			d.txForm = NewTransactionForm()
			d.observe(ctx, EntityTransactions, log.OpCreate, fmt.Sprint(tx.ID), nil)
			d.mu.Unlock()
			return nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.safe {
		d.txForm = typed
	} else {
		d.txForm = NewTransactionForm()
	}
	n := noticeFor(err)
	d.txForm.Notice = &n
	d.observe(ctx, EntityTransactions, log.OpCreate, "", err)
	return err
}

// EditTransaction moves a row to Editing with a draft seeded from the
// current values.
func (d *Dashboard) EditTransaction(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.state.Transaction(id)
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	d.txRows[id] = Editing(TransactionDraft{Description: t.Description, Amount: t.Amount.String()})
	delete(d.txNotices, id)
	return nil
}

// SaveTransaction sends the draft as an update. The row returns to Viewing
// unless the call fails under SafeMutations.
func (d *Dashboard) SaveTransaction(ctx context.Context, id int64, draft TransactionDraft) error {
	value, err := core.ParseMoney(draft.Amount)
	if err == nil {
		var updated core.Transaction
		updated, err = d.backend.UpdateTransaction(ctx, core.Transaction{ID: id, Description: draft.Description, Amount: value})
		if err == nil {
			d.mu.Lock()
			d.state = d.state.ReplaceTransaction(id, updated)
			delete(d.txRows, id)
			delete(d.txNotices, id)
			d.observe(ctx, EntityTransactions, log.OpUpdate, fmt.Sprint(id), nil)
			d.mu.Unlock()
			return nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.safe {
		d.txRows[id] = Editing(draft)
	} else {
		delete(d.txRows, id)
	}
	d.txNotices[id] = noticeFor(err)
	d.observe(ctx, EntityTransactions, log.OpUpdate, fmt.Sprint(id), err)
	return err
}

func (d *Dashboard) DeleteTransaction(ctx context.Context, id int64) error {
	err := d.backend.DeleteTransaction(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	key := fmt.Sprint(id)
	if err != nil {
		d.txNotices[id] = noticeFor(err)
		d.observe(ctx, EntityTransactions, log.OpDelete, key, err)
		return err
	}
	d.state = d.state.RemoveTransaction(id)
	delete(d.txRows, id)
	delete(d.txNotices, id)
	d.observe(ctx, EntityTransactions, log.OpDelete, key, nil)
	return nil
}

// AddCategory submits the add-category form.
func (d *Dashboard) AddCategory(ctx context.Context, name string) error {
	c, err := d.backend.CreateCategory(ctx, core.CategoryInput{Name: name})

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		if d.safe {
			d.categoryForm = CategoryForm{Name: name}
		} else {
			d.categoryForm = NewCategoryForm()
		}
		n := noticeFor(err)
		d.categoryForm.Notice = &n
		d.observe(ctx, EntityCategories, log.OpCreate, "", err)
		return err
	}
	d.state = d.state.AppendCategory(c)
	d.categoryForm = NewCategoryForm()
	d.observe(ctx, EntityCategories, log.OpCreate, fmt.Sprint(c.ID), nil)
	return nil
}

func (d *Dashboard) DeleteCategory(ctx context.Context, id int64) error {
	err := d.backend.DeleteCategory(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	key := fmt.Sprint(id)
	if err != nil {
		d.categoryNotice[id] = noticeFor(err)
		d.observe(ctx, EntityCategories, log.OpDelete, key, err)
		return err
	}
	d.state = d.state.RemoveCategory(id)
	delete(d.categoryNotice, id)
	d.observe(ctx, EntityCategories, log.OpDelete, key, nil)
	return nil
}

// AddBudget submits the add-budget form. On success the store takes the
// request values: the backend answers budget writes without a body.
func (d *Dashboard) AddBudget(ctx context.Context, category, amount string) error {
	typed := BudgetForm{Category: category, Amount: amount}
	value, err := core.ParseMoney(amount)
	if err == nil {
		b := core.Budget{Category: category, Amount: value}
		if err = d.backend.CreateBudget(ctx, b); err == nil {
			d.mu.Lock()
			d.state = d.state.SetBudget(b)
			d.budgetForm = NewBudgetForm()
			d.observe(ctx, EntityBudgets, log.OpCreate, category, nil)
			d.mu.Unlock()
			return nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.safe {
		d.budgetForm = typed
	} else {
		d.budgetForm = NewBudgetForm()
	}
	n := noticeFor(err)
	d.budgetForm.Notice = &n
	d.observe(ctx, EntityBudgets, log.OpCreate, category, err)
	return err
}

// EditBudget moves the budget row of a category to Editing. A category
// without a budget starts from an empty draft.
func (d *Dashboard) EditBudget(category string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	draft := BudgetDraft{}
	if amount, ok := d.state.Budgets[category]; ok {
		draft.Amount = amount.String()
	} else if !d.hasCategoryLocked(category) {
		return fmt.Errorf("budget %q: %w", category, core.ErrNotFound)
	}
	d.budgetRows[category] = Editing(draft)
	delete(d.budgetNotices, category)
	return nil
}

// SaveBudget sends the draft as an update keyed by category name.
func (d *Dashboard) SaveBudget(ctx context.Context, category string, draft BudgetDraft) error {
	value, err := core.ParseMoney(draft.Amount)
	if err == nil {
		b := core.Budget{Category: category, Amount: value}
		if err = d.backend.UpdateBudget(ctx, b); err == nil {
			d.mu.Lock()
			d.state = d.state.SetBudget(b)
			delete(d.budgetRows, category)
			delete(d.budgetNotices, category)
			d.observe(ctx, EntityBudgets, log.OpUpdate, category, nil)
			d.mu.Unlock()
			return nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.safe {
		d.budgetRows[category] = Editing(draft)
	} else {
		delete(d.budgetRows, category)
	}
	d.budgetNotices[category] = noticeFor(err)
	d.observe(ctx, EntityBudgets, log.OpUpdate, category, err)
	return err
}

func (d *Dashboard) DeleteBudget(ctx context.Context, category string) error {
	err := d.backend.DeleteBudget(ctx, category)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.budgetNotices[category] = noticeFor(err)
		d.observe(ctx, EntityBudgets, log.OpDelete, category, err)
		return err
	}
	d.state = d.state.RemoveBudget(category)
	delete(d.budgetRows, category)
	delete(d.budgetNotices, category)
	d.observe(ctx, EntityBudgets, log.OpDelete, category, nil)
	return nil
}

func (d *Dashboard) hasCategoryLocked(name string) bool {
	for _, c := range d.state.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}

// observe logs and counts one load or mutation. Callers hold d.mu, which
// also makes the logged revision the one the transition produced.
func (d *Dashboard) observe(ctx context.Context, entity Entity, op, key string, err error) {
	if err == nil {
		d.metrics.ObserveMutation(string(entity), op, OutcomeSuccess)
		args := log.NewFields().WithMutation(string(entity), op, key).ToSlice()
		d.logger.DebugContext(ctx, "Dashboard transition applied", append(args, log.FieldRevision, d.state.Revision)...)
		return
	}

	outcome := OutcomeInvalid
	errorType := log.ErrorTypeValidation
	if kind, ok := apiclient.KindOf(err); ok {
		outcome = kind.String()
		switch kind {
		case apiclient.KindRejected:
			errorType = log.ErrorTypeRejected
		case apiclient.KindServer:
			errorType = log.ErrorTypeServer
		default:
			errorType = log.ErrorTypeNetwork
		}
	}
	d.metrics.ObserveMutation(string(entity), op, outcome)
	d.logger.WarnContext(ctx, "Dashboard operation failed",
		log.NewFields().WithMutation(string(entity), op, key).WithError(err, errorType).ToSlice()...)
}

func noticeFor(err error) Notice {
	if kind, ok := apiclient.KindOf(err); ok {
		return Notice{Message: apiclient.UserMessage(err), Retryable: kind.Retryable()}
	}
	if errors.Is(err, core.ErrInvalidAmount) {
		return Notice{Message: "Amount must be a number"}
	}
	return Notice{Message: err.Error()}
}
