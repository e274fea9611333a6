package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.9:1234", "", "", "203.0.113.9"},
		{"untrusted peer ignores xff", "203.0.113.9:1234", "198.51.100.1", "", "203.0.113.9"},
		{"trusted proxy xff", "10.0.0.2:80", "198.51.100.1, 10.0.0.2", "", "198.51.100.1"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.2", "198.51.100.2"},
		{"trusted proxy bad xff", "192.168.1.1:80", "garbage", "", "192.168.1.1"},
		{"no port", "198.51.100.3", "", "", "198.51.100.3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect(t *testing.T) {
	d := NewDetector(nil)

	tests := []struct {
		name   string
		method string
		target string
		agent  string
		want   string
	}{
		{"plain", http.MethodGet, "/home", "Mozilla/5.0", ""},
		{"traversal", http.MethodGet, "/static/../.env", "", "pattern"},
		{"query", http.MethodGet, "/home?q=union+select", "", ""},
		{"query script", http.MethodGet, "/home?q=%3Cscript", "", ""},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "user_agent"},
		{"trace", "TRACE", "/", "", "method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.agent)
			if got := d.Detect(r); got != tt.want {
				t.Fatalf("Detect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectorMiddlewareReports(t *testing.T) {
	var reasons []string
	d := NewDetector(func(reason string) { reasons = append(reasons, reason) })

	called := false
	h := d.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	r := httptest.NewRequest(http.MethodGet, "/wp-admin", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Fatal("flagged request must still reach the handler")
	}
	if len(reasons) != 1 || reasons[0] != "pattern" {
		t.Fatalf("reasons = %v, want [pattern]", reasons)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	for _, name := range []string{"Content-Security-Policy", "X-Frame-Options", "X-Content-Type-Options", "Referrer-Policy"} {
		if rr.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	h.ServeHTTP(rr, r)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("HSTS = %q", got)
	}
}

func TestAPIHeadersConfig(t *testing.T) {
	if got := APIHeadersConfig().CSP; got != "default-src 'none'; frame-ancestors 'none'" {
		t.Fatalf("API CSP = %q", got)
	}
}

func TestIsTrustedCaller(t *testing.T) {
	d := NewDetector(nil)
	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    bool
	}{
		{name: "loopback", remote: "127.0.0.1:5000", want: true},
		{name: "private network", remote: "192.168.1.20:5000", want: true},
		{name: "public peer", remote: "203.0.113.7:5000", want: false},
		{name: "proxy forwarding a client", remote: "10.0.0.1:5000", headers: map[string]string{"X-Forwarded-For": "203.0.113.7"}, want: false},
		{name: "proxy with real ip", remote: "10.0.0.1:5000", headers: map[string]string{"X-Real-IP": "203.0.113.7"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := d.IsTrustedCaller(r); got != tt.want {
				t.Errorf("IsTrustedCaller() = %v, want %v", got, tt.want)
			}
		})
	}
}
