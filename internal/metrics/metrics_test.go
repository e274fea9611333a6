package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"wallet/internal/cache"
)

func TestObserveMutation(t *testing.T) {
	m := New("web")
	m.ObserveMutation("transactions", "create", "success")
	m.ObserveMutation("transactions", "create", "success")
	m.ObserveMutation("budgets", "update", "rejected")

	if got := testutil.ToFloat64(m.operations.WithLabelValues("transactions", "create", "success")); got != 2 {
		t.Fatalf("transactions create=%v, want 2", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("budgets", "update", "rejected")); got != 1 {
		t.Fatalf("budgets update=%v, want 1", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New("web")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "418")); got != 1 {
		t.Fatalf("requests=%v, want 1", got)
	}

	c := cache.NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	m.RegisterCache("transactions", c.Stats)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{
		`wallet_web_http_requests_total{code="418",method="GET"} 1`,
		`wallet_cache_hits_total{cache="transactions"} 1`,
		`wallet_cache_misses_total{cache="transactions"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestSecurityCounters(t *testing.T) {
	m := New("api")
	m.ObserveSuspicious("pattern")
	m.ObserveRateLimited()
	m.ObserveRateLimited()

	if got := testutil.ToFloat64(m.suspicious.WithLabelValues("pattern")); got != 1 {
		t.Fatalf("suspicious=%v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 2 {
		t.Fatalf("rate limited=%v, want 2", got)
	}
}
