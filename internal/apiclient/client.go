// Package apiclient is the typed HTTP client for the wallet REST backend.
//
// Every failure is an *Error classified as network, rejected (4xx) or
// server (5xx).
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"wallet/internal/core"
	"wallet/internal/log"
)

const (
	maxBodyBytes = 1 << 20
	// maxMessageRunes caps plain-text error bodies shown to the user.
	maxMessageRunes = 200
)

// Client calls /api/transactions, /api/categories and /api/budgets.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *log.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every call; zero disables the per-call bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPIClient) }
}

// New returns a client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: 10 * time.Second,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	var out []core.Transaction
	if err := c.do(ctx, http.MethodGet, "/api/transactions", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Transaction{}
	}
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPost, "/api/transactions", in, &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.do(ctx, http.MethodPut, "/api/transactions/"+strconv.FormatInt(t.ID, 10), t, &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/transactions/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Category{}
	}
	return out, nil
}

func (c *Client) CreateCategory(ctx context.Context, in core.CategoryInput) (core.Category, error) {
	var out core.Category
	err := c.do(ctx, http.MethodPost, "/api/categories", in, &out)
	return out, err
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ListBudgets(ctx context.Context) (core.Budgets, error) {
	var out core.Budgets
	if err := c.do(ctx, http.MethodGet, "/api/budgets", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = core.Budgets{}
	}
	return out, nil
}

// CreateBudget posts the budget; any response body is ignored.
func (c *Client) CreateBudget(ctx context.Context, b core.Budget) error {
	return c.do(ctx, http.MethodPost, "/api/budgets", b, nil)
}

// UpdateBudget puts the budget under its category name; any response body is ignored.
func (c *Client) UpdateBudget(ctx context.Context, b core.Budget) error {
	return c.do(ctx, http.MethodPut, "/api/budgets/"+url.PathEscape(b.Category), b, nil)
}

func (c *Client) DeleteBudget(ctx context.Context, category string) error {
	return c.do(ctx, http.MethodDelete, "/api/budgets/"+url.PathEscape(category), nil, nil)
}

// Ping checks that the backend answers a cheap list call.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/categories", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	// path may carry escaped segments, so it is parsed rather than joined.
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("%s: parse path: %w", op, err)
	}
	target := *c.base
	target.Path = c.base.Path + ref.Path
	target.RawPath = c.base.EscapedPath() + ref.EscapedPath()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "Backend call failed", log.FieldOperation, op, log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Status: 0, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.DebugContext(ctx, "Backend call completed", log.FieldOperation, op,
		log.FieldStatusCode, resp.StatusCode, log.FieldDuration, time.Since(start).Milliseconds())

	switch {
	case resp.StatusCode >= 500:
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	case resp.StatusCode >= 400:
		return &Error{Kind: KindRejected, Op: op, Status: resp.StatusCode, Message: errorMessage(data)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Kind: KindNetwork, Op: op, Status: resp.StatusCode, Err: errors.New("empty response body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage pulls a human message out of {"error": "..."} or plain text.
func errorMessage(data []byte) string {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ""
	}
	if data[0] == '{' {
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &body) == nil {
			if body.Error != "" {
				return body.Error
			}
			return body.Message
		}
	}
	msg := strings.ToValidUTF8(string(data), "")
	if utf8.RuneCountInString(msg) > maxMessageRunes {
		msg = string([]rune(msg)[:maxMessageRunes])
	}
	return msg
}
