package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wallet/internal/api"
	"wallet/internal/apiclient"
	"wallet/internal/auth"
	"wallet/internal/core"
	"wallet/internal/dashboard"
	"wallet/internal/services"
	"wallet/internal/storage"
)

// newBackend starts the REST backend over an in-memory store.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	ledger := services.NewLedger(storage.NewMemoryStore(), services.LedgerOptions{})
	apiSrv := api.NewServer(":0", ledger, api.Options{RateLimit: 1000})
	ts := httptest.NewServer(apiSrv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = apiSrv.Shutdown(context.Background())
	})
	return ts
}

func newClientServer(t *testing.T, backendURL string, opts Options) (*Server, *dashboard.Dashboard) {
	t.Helper()
	client, err := apiclient.New(backendURL)
	if err != nil {
		t.Fatalf("apiclient.New: %v", err)
	}
	dash := dashboard.New(client, dashboard.Options{})
	if opts.RateLimit == 0 {
		opts.RateLimit = 1000
	}
	srv := NewServer(":0", dash, auth.NewNavigator(0, nil), opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	if srv.templates == nil {
		t.Fatal("templates failed to parse")
	}
	return srv, dash
}

func send(t *testing.T, h http.Handler, method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestScreensAndUnknownPaths(t *testing.T) {
	srv, _ := newClientServer(t, newBackend(t).URL, Options{})

	for path, want := range map[string]string{
		"/login":    `name="username"`,
		"/register": `name="confirmPassword"`,
		"/home":     "No transactions yet.",
	} {
		rr := send(t, srv.Handler, http.MethodGet, path, nil, false)
		if rr.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), want) {
			t.Fatalf("GET %s body missing %q", path, want)
		}
	}

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/settings"},
		{http.MethodGet, "/home/transactions"},
		{http.MethodDelete, "/home/transactions/abc"},
	} {
		rr := send(t, srv.Handler, tc.method, tc.path, nil, false)
		if rr.Code != http.StatusNotFound || rr.Body.Len() != 0 {
			t.Fatalf("%s %s = %d %q, want empty 404", tc.method, tc.path, rr.Code, rr.Body.String())
		}
	}
}

func TestAuthValidation(t *testing.T) {
	srv, _ := newClientServer(t, newBackend(t).URL, Options{})

	tests := []struct {
		name     string
		path     string
		form     url.Values
		htmx     bool
		wantCode int
		wantMsg  string
	}{
		{
			name:     "login empty username",
			path:     "/login",
			form:     url.Values{"username": {""}, "password": {"secret"}},
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  auth.MsgMissingFields,
		},
		{
			name:     "login empty password htmx",
			path:     "/login",
			form:     url.Values{"username": {"ada"}},
			htmx:     true,
			wantCode: http.StatusOK,
			wantMsg:  auth.MsgMissingFields,
		},
		{
			name:     "register missing email",
			path:     "/register",
			form:     url.Values{"username": {"ada"}, "password": {"a"}, "confirmPassword": {"a"}},
			htmx:     true,
			wantCode: http.StatusOK,
			wantMsg:  auth.MsgMissingFields,
		},
		{
			name:     "register mismatch",
			path:     "/register",
			form:     url.Values{"username": {"ada"}, "email": {"a@b.c"}, "password": {"a"}, "confirmPassword": {"b"}},
			wantCode: http.StatusUnprocessableEntity,
			wantMsg:  auth.MsgPasswordMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := send(t, srv.Handler, http.MethodPost, tt.path, tt.form, tt.htmx)
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if !strings.Contains(rr.Body.String(), tt.wantMsg) {
				t.Fatalf("body missing %q", tt.wantMsg)
			}
			if rr.Header().Get("HX-Redirect") != "" || rr.Header().Get("Location") != "" {
				t.Fatal("invalid form must not navigate")
			}
			if tt.htmx && strings.Contains(rr.Body.String(), "<html") {
				t.Fatal("htmx requests get the form partial, not the page")
			}
		})
	}
}

func TestAuthSuccessNavigatesHome(t *testing.T) {
	srv, _ := newClientServer(t, newBackend(t).URL, Options{})
	form := url.Values{"username": {"ada"}, "password": {"secret"}}

	rr := send(t, srv.Handler, http.MethodPost, "/login", form, true)
	if got := rr.Header().Get("HX-Redirect"); got != auth.HomePath {
		t.Fatalf("HX-Redirect = %q, want %q", got, auth.HomePath)
	}

	rr = send(t, srv.Handler, http.MethodPost, "/register", url.Values{
		"username": {"ada"}, "email": {"a@b.c"}, "password": {"x"}, "confirmPassword": {"x"},
	}, false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != auth.HomePath {
		t.Fatalf("plain register = %d Location %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestAuthAbandonedWaitWritesNothing(t *testing.T) {
	client, _ := apiclient.New("http://127.0.0.1:1")
	srv := NewServer(":0", dashboard.New(client, dashboard.Options{}), auth.NewNavigator(time.Hour, nil), Options{})
	defer srv.Shutdown(context.Background())

	form := url.Values{"username": {"ada"}, "password": {"secret"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req.WithContext(ctx))
	if rr.Header().Get("HX-Redirect") != "" || rr.Body.Len() != 0 {
		t.Fatalf("abandoned login produced output: %q", rr.Body.String())
	}
}

func TestTransactionFlow(t *testing.T) {
	srv, dash := newClientServer(t, newBackend(t).URL, Options{})
	h := srv.Handler

	send(t, h, http.MethodGet, "/home", nil, false)

	rr := send(t, h, http.MethodPost, "/home/transactions", url.Values{"description": {"Coffee"}, "amount": {"4.5"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("add status = %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Coffee") || !strings.Contains(body, `id="transaction-1"`) {
		t.Fatalf("add response missing the new row:\n%s", body)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "wallet:changed") {
		t.Fatal("add must announce the change")
	}
	state := dash.State()
	want := core.Transaction{ID: 1, Description: "Coffee", Amount: core.MoneyFromFloat(4.5)}
	if len(state.Transactions) != 1 || !state.Transactions[0].Equal(want) {
		t.Fatalf("store = %+v", state.Transactions)
	}
	if v := dash.View(); v.TransactionForm.Description != "" || v.TransactionForm.Amount != "0" {
		t.Fatalf("form not reset: %+v", v.TransactionForm)
	}

	rr = send(t, h, http.MethodPost, "/home/transactions/1/edit", nil, true)
	if !strings.Contains(rr.Body.String(), `hx-put="/home/transactions/1"`) {
		t.Fatalf("edit must render the row form:\n%s", rr.Body.String())
	}

	rr = send(t, h, http.MethodPut, "/home/transactions/1", url.Values{"description": {"Tea"}, "amount": {"3"}}, true)
	if !strings.Contains(rr.Body.String(), "Tea") || strings.Contains(rr.Body.String(), `hx-put="/home/transactions/1"`) {
		t.Fatalf("save must return the row to viewing:\n%s", rr.Body.String())
	}

	rr = send(t, h, http.MethodDelete, "/home/transactions/1", nil, true)
	if !strings.Contains(rr.Body.String(), "No transactions yet.") {
		t.Fatalf("delete must empty the list:\n%s", rr.Body.String())
	}
	if len(dash.State().Transactions) != 0 {
		t.Fatal("store not emptied")
	}
}

func TestRejectedAndInvalidInputShownInline(t *testing.T) {
	srv, dash := newClientServer(t, newBackend(t).URL, Options{})
	h := srv.Handler
	send(t, h, http.MethodGet, "/home", nil, false)

	rr := send(t, h, http.MethodPost, "/home/transactions", url.Values{"description": {""}, "amount": {"1"}}, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `class="notice"`) {
		t.Fatalf("rejected create must render an inline notice:\n%s", rr.Body.String())
	}
	if strings.Contains(rr.Header().Get("HX-Trigger"), "wallet:changed") {
		t.Fatal("failed create must not announce a change")
	}

	rr = send(t, h, http.MethodPost, "/home/transactions", url.Values{"description": {"x"}, "amount": {"abc"}}, true)
	if !strings.Contains(rr.Body.String(), "Amount must be a number") {
		t.Fatalf("invalid amount notice missing:\n%s", rr.Body.String())
	}
	if len(dash.State().Transactions) != 0 {
		t.Fatal("failed creates must not touch the store")
	}

	rr = send(t, h, http.MethodPost, "/home/transactions/99/edit", nil, true)
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "no longer exists") {
		t.Fatal("editing an unknown row must notify")
	}
}

func TestCategoryAndBudgetFlow(t *testing.T) {
	srv, dash := newClientServer(t, newBackend(t).URL, Options{})
	h := srv.Handler
	send(t, h, http.MethodGet, "/home", nil, false)

	rr := send(t, h, http.MethodPost, "/home/categories", url.Values{"name": {"Food & Drink"}}, true)
	body := rr.Body.String()
	if !strings.Contains(body, `id="categories"`) || !strings.Contains(body, `hx-swap-oob="true"`) {
		t.Fatalf("category response must carry both sections:\n%s", body)
	}
	if !strings.Contains(body, "Food &amp; Drink") {
		t.Fatalf("category name missing or unescaped:\n%s", body)
	}

	rr = send(t, h, http.MethodPost, "/home/budgets/Food%20&%20Drink/edit", nil, true)
	if !strings.Contains(rr.Body.String(), `hx-put="/home/budgets/Food%20&amp;%20Drink"`) {
		t.Fatalf("budget row must switch to editing:\n%s", rr.Body.String())
	}

	rr = send(t, h, http.MethodPut, "/home/budgets/Food%20&%20Drink", url.Values{"amount": {"250"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("save budget status = %d", rr.Code)
	}
	if got := dash.State().Budgets["Food & Drink"]; !got.Equal(core.MoneyFromFloat(250)) {
		t.Fatalf("budget = %v, want 250 (the typed value)", got)
	}

	send(t, h, http.MethodPost, "/home/budgets", url.Values{"category": {"Food & Drink"}, "amount": {"300"}}, true)
	if got := dash.State().Budgets["Food & Drink"]; !got.Equal(core.MoneyFromFloat(300)) {
		t.Fatalf("budget after add = %v, want 300", got)
	}

	rr = send(t, h, http.MethodDelete, "/home/budgets/Food%20&%20Drink", nil, true)
	if _, ok := dash.State().Budgets["Food & Drink"]; ok {
		t.Fatal("budget not removed")
	}
	if !strings.Contains(rr.Body.String(), "not set") {
		t.Fatalf("category row must remain without a budget:\n%s", rr.Body.String())
	}

	send(t, h, http.MethodDelete, "/home/categories/1", nil, true)
	if len(dash.State().Categories) != 0 {
		t.Fatal("category not removed")
	}
}

func TestLoadFailureOffersRetry(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	srv, _ := newClientServer(t, broken.URL, Options{})
	rr := send(t, srv.Handler, http.MethodGet, "/home", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("home status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Count(body, `class="retry"`) != 3 {
		t.Fatalf("each failed store needs a retry link:\n%s", body)
	}
	if !strings.Contains(body, "The server failed to process the request") {
		t.Fatal("server failure message missing")
	}
}

func TestHealthAndReadiness(t *testing.T) {
	backend := newBackend(t)

	ok, _ := newClientServer(t, backend.URL, Options{Ready: func(context.Context) error { return nil }})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := send(t, ok.Handler, http.MethodGet, path, nil, false); rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	down, _ := newClientServer(t, backend.URL, Options{Ready: func(context.Context) error { return errors.New("unreachable") }})
	rr := send(t, down.Handler, http.MethodGet, "/readyz", nil, false)
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "unreachable") {
		t.Fatalf("readyz = %d %s", rr.Code, rr.Body.String())
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	srv, _ := newClientServer(t, newBackend(t).URL, Options{RateLimit: 1})
	h := srv.Handler

	send(t, h, http.MethodPost, "/home/categories", url.Values{"name": {"a"}}, true)
	rr := send(t, h, http.MethodPost, "/home/categories", url.Values{"name": {"b"}}, true)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr := send(t, h, http.MethodGet, "/home", nil, false); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", rr.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	srv, _ := newClientServer(t, newBackend(t).URL, Options{})
	rr := send(t, srv.Handler, http.MethodGet, "/static/app.css", nil, false)
	if rr.Code != http.StatusOK || rr.Header().Get("Cache-Control") == "" {
		t.Fatalf("static = %d cache %q", rr.Code, rr.Header().Get("Cache-Control"))
	}
}
