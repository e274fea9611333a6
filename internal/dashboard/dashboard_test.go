package dashboard

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"wallet/internal/apiclient"
	"wallet/internal/core"
)

// fakeBackend mimics the reference REST service in memory. Hooks override
// individual calls.
type fakeBackend struct {
	mu           sync.Mutex
	transactions []core.Transaction
	categories   []core.Category
	budgets      core.Budgets
	nextID       int64

	created []core.TransactionInput
	calls   int

	listTransactionsErr error
	createErr           error
	updateHook          func(ctx context.Context, t core.Transaction) (core.Transaction, error)
	updateBudgetErr     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{budgets: core.Budgets{}}
}

func rejected(msg string) error {
	return &apiclient.Error{Kind: apiclient.KindRejected, Op: "test", Status: http.StatusNotFound, Message: msg}
}

func (f *fakeBackend) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listTransactionsErr != nil {
		return nil, f.listTransactionsErr
	}
	return append([]core.Transaction{}, f.transactions...), nil
}

func (f *fakeBackend) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.created = append(f.created, in)
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	f.nextID++
	t := core.Transaction{ID: f.nextID, Description: in.Description, Amount: in.Amount}
	f.transactions = append(f.transactions, t)
	return t, nil
}

func (f *fakeBackend) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if f.updateHook != nil {
		return f.updateHook(ctx, t)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.transactions {
		if f.transactions[i].ID == t.ID {
			f.transactions[i] = t
			return t, nil
		}
	}
	return core.Transaction{}, rejected("Transaction not found")
}

func (f *fakeBackend) DeleteTransaction(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for i := range f.transactions {
		if f.transactions[i].ID == id {
			f.transactions = append(f.transactions[:i], f.transactions[i+1:]...)
			return nil
		}
	}
	return rejected("Transaction not found")
}

func (f *fakeBackend) ListCategories(ctx context.Context) ([]core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Category{}, f.categories...), nil
}

func (f *fakeBackend) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := core.Category{ID: f.nextID, Name: in.Name}
	f.categories = append(f.categories, c)
	return c, nil
}

func (f *fakeBackend) DeleteCategory(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.categories {
		if f.categories[i].ID == id {
			f.categories = append(f.categories[:i], f.categories[i+1:]...)
			return nil
		}
	}
	return rejected("Category not found")
}

func (f *fakeBackend) ListBudgets(ctx context.Context) (core.Budgets, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budgets.Clone(), nil
}

func (f *fakeBackend) CreateBudget(ctx context.Context, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgets[b.Category] = b.Amount
	return nil
}

// UpdateBudget succeeds without echoing anything, like the real backend's
// empty 204 body.
func (f *fakeBackend) UpdateBudget(ctx context.Context, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateBudgetErr != nil {
		return f.updateBudgetErr
	}
	f.budgets[b.Category] = b.Amount
	return nil
}

func (f *fakeBackend) DeleteBudget(ctx context.Context, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.budgets[category]; !ok {
		return rejected("Budget not found")
	}
	delete(f.budgets, category)
	return nil
}

type recordedObservation struct{ entity, op, outcome string }

type fakeRecorder struct {
	mu  sync.Mutex
	obs []recordedObservation
}

func (r *fakeRecorder) ObserveMutation(entity, op, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, recordedObservation{entity, op, outcome})
}

func money(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseMoney(s)
	if err != nil {
		t.Fatalf("ParseMoney(%q): %v", s, err)
	}
	return m
}

func TestMountEmptyBackend(t *testing.T) {
	d := New(newFakeBackend(), Options{})
	d.Mount(context.Background())

	s := d.State()
	if len(s.Transactions) != 0 || len(s.Categories) != 0 || len(s.Budgets) != 0 {
		t.Fatalf("expected empty stores, got %+v", s)
	}
	if v := d.View(); v.HasLoadErrors() {
		t.Fatalf("unexpected load errors: %v", v.LoadErrors)
	}
}

func TestMountIsolatesLoadFailures(t *testing.T) {
	fb := newFakeBackend()
	fb.categories = []core.Category{{ID: 1, Name: "Food"}}
	fb.budgets["Food"] = money(t, "300")
	fb.listTransactionsErr = &apiclient.Error{Kind: apiclient.KindNetwork, Op: "GET /api/transactions", Err: errors.New("refused")}

	d := New(fb, Options{})
	d.Mount(context.Background())

	v := d.View()
	if len(v.Transactions) != 0 {
		t.Fatalf("transactions should stay empty, got %v", v.Transactions)
	}
	if len(v.Categories) != 1 || len(v.Budgets) != 1 || !v.Budgets[0].HasBudget {
		t.Fatalf("other stores should load, got %+v", v)
	}
	n := v.LoadError(string(EntityTransactions))
	if n == nil || !n.Retryable {
		t.Fatalf("expected retryable load notice, got %+v", n)
	}
	if v.LoadError(string(EntityCategories)) != nil {
		t.Fatal("categories should have no load error")
	}

	// A later mount that succeeds clears the notice.
	fb.listTransactionsErr = nil
	d.Mount(context.Background())
	if d.View().HasLoadErrors() {
		t.Fatal("load error should clear on successful remount")
	}
}

func TestAddTransactionCoffee(t *testing.T) {
	fb := newFakeBackend()
	d := New(fb, Options{})
	d.Mount(context.Background())

	if err := d.AddTransaction(context.Background(), "Coffee", "4.5"); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	if len(fb.created) != 1 || fb.created[0].Description != "Coffee" || !fb.created[0].Amount.Equal(money(t, "4.5")) {
		t.Fatalf("backend received %+v", fb.created)
	}
	s := d.State()
	want := core.Transaction{ID: 1, Description: "Coffee", Amount: money(t, "4.5")}
	if len(s.Transactions) != 1 || !s.Transactions[0].Equal(want) {
		t.Fatalf("store=%+v, want [%+v]", s.Transactions, want)
	}
	form := d.View().TransactionForm
	if form.Description != "" || form.Amount != "0" || form.Notice != nil {
		t.Fatalf("form not reset: %+v", form)
	}
}

func TestAddTransactionFailureResetsByDefault(t *testing.T) {
	fb := newFakeBackend()
	fb.createErr = &apiclient.Error{Kind: apiclient.KindServer, Op: "POST /api/transactions", Status: 500}
	d := New(fb, Options{})

	err := d.AddTransaction(context.Background(), "Rent", "800")
	if !errors.Is(err, apiclient.ErrServer) {
		t.Fatalf("expected server error, got %v", err)
	}
	if len(d.State().Transactions) != 0 {
		t.Fatal("store must be unchanged on failure")
	}
	form := d.View().TransactionForm
	if form.Description != "" || form.Amount != "0" {
		t.Fatalf("form should reset regardless of outcome, got %+v", form)
	}
	if form.Notice == nil || !form.Notice.Retryable {
		t.Fatalf("expected retryable notice, got %+v", form.Notice)
	}
}

func TestAddTransactionFailureKeepsInputWhenSafe(t *testing.T) {
	fb := newFakeBackend()
	fb.createErr = rejected("description is required")
	d := New(fb, Options{SafeMutations: true})

	_ = d.AddTransaction(context.Background(), "", "12")
	form := d.View().TransactionForm
	if form.Amount != "12" {
		t.Fatalf("safe mode should keep input, got %+v", form)
	}
	if form.Notice == nil || form.Notice.Retryable || form.Notice.Message != "description is required" {
		t.Fatalf("expected inline rejected notice, got %+v", form.Notice)
	}
}

func TestAddTransactionInvalidAmountSkipsBackend(t *testing.T) {
	fb := newFakeBackend()
	rec := &fakeRecorder{}
	d := New(fb, Options{Metrics: rec})

	err := d.AddTransaction(context.Background(), "Coffee", "abc")
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if fb.calls != 0 {
		t.Fatalf("backend should not be called, calls=%d", fb.calls)
	}
	if len(rec.obs) != 1 || rec.obs[0].outcome != OutcomeInvalid {
		t.Fatalf("observations=%+v", rec.obs)
	}
}

func TestUpdateTransactionChangesExactlyOne(t *testing.T) {
	fb := newFakeBackend()
	fb.transactions = []core.Transaction{
		{ID: 1, Description: "Coffee", Amount: money(t, "4.5")},
		{ID: 2, Description: "Rent", Amount: money(t, "800")},
		{ID: 3, Description: "Books", Amount: money(t, "20")},
	}
	d := New(fb, Options{})
	d.Mount(context.Background())
	before := d.State().Transactions

	if err := d.EditTransaction(2); err != nil {
		t.Fatalf("EditTransaction: %v", err)
	}
	row, _ := d.View().Transaction(2)
	if !row.Editing || row.Draft.Description != "Rent" || row.Draft.Amount != "800" {
		t.Fatalf("draft not seeded: %+v", row)
	}

	if err := d.SaveTransaction(context.Background(), 2, TransactionDraft{Description: "Rent", Amount: "850"}); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}
	after := d.State().Transactions
	changed := 0
	for i := range after {
		if !after[i].Equal(before[i]) {
			changed++
			if after[i].ID != 2 || !after[i].Amount.Equal(money(t, "850")) {
				t.Fatalf("wrong element changed: %+v", after[i])
			}
		}
	}
	if changed != 1 {
		t.Fatalf("changed=%d, want 1", changed)
	}
	if row, _ := d.View().Transaction(2); row.Editing {
		t.Fatal("row should return to viewing after save")
	}
}

func TestEditUnknownTransaction(t *testing.T) {
	d := New(newFakeBackend(), Options{})
	if err := d.EditTransaction(99); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveFailureRowState(t *testing.T) {
	for _, tc := range []struct {
		name        string
		safe        bool
		wantEditing bool
	}{
		{"default leaves editing", false, false},
		{"safe stays editing", true, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fb := newFakeBackend()
			fb.transactions = []core.Transaction{{ID: 1, Description: "Coffee", Amount: money(t, "4.5")}}
			fb.updateHook = func(context.Context, core.Transaction) (core.Transaction, error) {
				return core.Transaction{}, &apiclient.Error{Kind: apiclient.KindNetwork, Op: "PUT", Err: context.DeadlineExceeded}
			}
			d := New(fb, Options{SafeMutations: tc.safe})
			d.Mount(context.Background())
			_ = d.EditTransaction(1)

			draft := TransactionDraft{Description: "Tea", Amount: "3"}
			if err := d.SaveTransaction(context.Background(), 1, draft); err == nil {
				t.Fatal("expected error")
			}
			row, _ := d.View().Transaction(1)
			if row.Editing != tc.wantEditing {
				t.Fatalf("editing=%v, want %v", row.Editing, tc.wantEditing)
			}
			if tc.wantEditing && row.Draft != draft {
				t.Fatalf("draft=%+v, want %+v", row.Draft, draft)
			}
			if row.Description != "Coffee" {
				t.Fatalf("store changed on failure: %+v", row.Transaction)
			}
			if row.Notice == nil {
				t.Fatal("expected row notice")
			}
		})
	}
}

func TestDeleteTransactionTwice(t *testing.T) {
	fb := newFakeBackend()
	fb.transactions = []core.Transaction{
		{ID: 1, Description: "Coffee", Amount: money(t, "4.5")},
		{ID: 2, Description: "Rent", Amount: money(t, "800")},
	}
	d := New(fb, Options{})
	d.Mount(context.Background())

	if err := d.DeleteTransaction(context.Background(), 1); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	first := d.State()
	if len(first.Transactions) != 1 {
		t.Fatalf("len=%d, want 1", len(first.Transactions))
	}
	if _, ok := first.Transaction(1); ok {
		t.Fatal("id 1 still present")
	}

	if err := d.DeleteTransaction(context.Background(), 1); !errors.Is(err, apiclient.ErrRejected) {
		t.Fatalf("second delete: expected rejected, got %v", err)
	}
	second := d.State()
	if len(second.Transactions) != 1 || !second.Transactions[0].Equal(first.Transactions[0]) {
		t.Fatalf("store changed by second delete: %+v", second.Transactions)
	}
}

func TestBudgetEditSaveUsesRequestValues(t *testing.T) {
	fb := newFakeBackend()
	fb.categories = []core.Category{{ID: 1, Name: "Food"}, {ID: 2, Name: "Travel"}}
	fb.budgets["Food"] = money(t, "300")
	d := New(fb, Options{})
	d.Mount(context.Background())

	if err := d.EditBudget("Food"); err != nil {
		t.Fatalf("EditBudget: %v", err)
	}
	row, _ := d.View().Budget("Food")
	if !row.Editing || row.Draft.Amount != "300" {
		t.Fatalf("draft not seeded: %+v", row)
	}
	if err := d.SaveBudget(context.Background(), "Food", BudgetDraft{Amount: "275.50"}); err != nil {
		t.Fatalf("SaveBudget: %v", err)
	}
	if got := d.State().Budgets["Food"]; !got.Equal(money(t, "275.5")) {
		t.Fatalf("budget=%s, want 275.5", got)
	}

	// A category without a budget can still be edited from an empty draft.
	if err := d.EditBudget("Travel"); err != nil {
		t.Fatalf("EditBudget(Travel): %v", err)
	}
	if err := d.EditBudget("Nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBudgetAddAndDelete(t *testing.T) {
	fb := newFakeBackend()
	fb.categories = []core.Category{{ID: 1, Name: "Food"}}
	d := New(fb, Options{})
	d.Mount(context.Background())

	if err := d.AddBudget(context.Background(), "Food", "120"); err != nil {
		t.Fatalf("AddBudget: %v", err)
	}
	form := d.View().BudgetForm
	if form.Category != "" || form.Amount != "0" {
		t.Fatalf("budget form not reset: %+v", form)
	}
	if !d.State().Budgets["Food"].Equal(money(t, "120")) {
		t.Fatalf("budgets=%v", d.State().Budgets)
	}

	if err := d.DeleteBudget(context.Background(), "Food"); err != nil {
		t.Fatalf("DeleteBudget: %v", err)
	}
	if _, ok := d.State().Budgets["Food"]; ok {
		t.Fatal("budget still present")
	}
	row, _ := d.View().Budget("Food")
	if row.HasBudget {
		t.Fatal("row should render without a budget")
	}
}

func TestBudgetSaveFailureKeepsStore(t *testing.T) {
	fb := newFakeBackend()
	fb.categories = []core.Category{{ID: 1, Name: "Food"}}
	fb.budgets["Food"] = money(t, "300")
	fb.updateBudgetErr = rejected("Budget not found")
	d := New(fb, Options{SafeMutations: true})
	d.Mount(context.Background())
	_ = d.EditBudget("Food")

	if err := d.SaveBudget(context.Background(), "Food", BudgetDraft{Amount: "1"}); err == nil {
		t.Fatal("expected error")
	}
	row, _ := d.View().Budget("Food")
	if !row.Amount.Equal(money(t, "300")) || !row.Editing || row.Draft.Amount != "1" {
		t.Fatalf("row=%+v", row)
	}
}

func TestCategoryAddAndDelete(t *testing.T) {
	d := New(newFakeBackend(), Options{})
	d.Mount(context.Background())

	if err := d.AddCategory(context.Background(), "Food"); err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	cats := d.State().Categories
	if len(cats) != 1 || cats[0].Name != "Food" {
		t.Fatalf("categories=%+v", cats)
	}
	if err := d.DeleteCategory(context.Background(), cats[0].ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if len(d.State().Categories) != 0 {
		t.Fatal("category still present")
	}
	if err := d.DeleteCategory(context.Background(), cats[0].ID); err == nil {
		t.Fatal("expected rejected error for unknown id")
	}
	if v := d.View(); len(v.Categories) != 0 {
		t.Fatalf("view categories=%+v", v.Categories)
	}
}

// Two updates of the same row in flight: the response that arrives last
// determines the store, even though its request was sent first.
func TestConcurrentUpdatesLastResponseWins(t *testing.T) {
	fb := newFakeBackend()
	fb.transactions = []core.Transaction{{ID: 1, Description: "Coffee", Amount: money(t, "4.5")}}

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	fb.updateHook = func(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
		if tx.Description == "first" {
			close(firstStarted)
			<-releaseFirst
		}
		return tx, nil
	}

	d := New(fb, Options{})
	d.Mount(context.Background())
	startRev := d.State().Revision

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = d.SaveTransaction(context.Background(), 1, TransactionDraft{Description: "first", Amount: "1"})
	}()
	<-firstStarted

	if err := d.SaveTransaction(context.Background(), 1, TransactionDraft{Description: "second", Amount: "2"}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got := d.State().Transactions[0].Description; got != "second" {
		t.Fatalf("after second response: %q", got)
	}

	close(releaseFirst)
	wg.Wait()

	s := d.State()
	if s.Transactions[0].Description != "first" {
		t.Fatalf("last response should win, got %q", s.Transactions[0].Description)
	}
	if s.Revision != startRev+2 {
		t.Fatalf("revision=%d, want %d", s.Revision, startRev+2)
	}
}

func TestRecorderOutcomes(t *testing.T) {
	fb := newFakeBackend()
	rec := &fakeRecorder{}
	d := New(fb, Options{Metrics: rec})
	d.Mount(context.Background())
	_ = d.AddCategory(context.Background(), "Food")
	_ = d.DeleteCategory(context.Background(), 42)

	want := map[recordedObservation]bool{
		{"transactions", "load", "success"}: true,
		{"categories", "load", "success"}:   true,
		{"budgets", "load", "success"}:      true,
		{"categories", "create", "success"}: true,
		{"categories", "delete", "rejected"}: true,
	}
	if len(rec.obs) != len(want) {
		t.Fatalf("observations=%+v", rec.obs)
	}
	for _, o := range rec.obs {
		if !want[o] {
			t.Fatalf("unexpected observation %+v", o)
		}
	}
}
