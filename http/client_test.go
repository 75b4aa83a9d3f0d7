package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ytmonitor/retry"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Retry = retry.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
	cfg.RateLimiter.EnableDynamicBackoff = false
	return cfg
}

func TestNewClientNilConfig(t *testing.T) {
	client := New(nil)
	if client == nil {
		t.Fatal("expected client to be created with default config")
	}
	client.Close()
}

func TestClientGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "ytmonitor/1.0" {
			t.Errorf("User-Agent = %q, want ytmonitor/1.0", ua)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg bytes"))
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if string(resp.Body) != "jpeg bytes" {
		t.Errorf("expected 'jpeg bytes', got %q", string(resp.Body))
	}
	if resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestClientDoWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "image/*" {
			t.Errorf("Accept = %q, want image/*", got)
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	if _, err := client.Do(context.Background(), http.MethodGet, server.URL, map[string]string{"Accept": "image/*"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientRateLimitRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := testConfig()
	client := New(cfg)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q, want ok", resp.Body)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestClientServerErrorRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("error = %v, want *HTTPError 500", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientNotFoundNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	_, err := client.Get(context.Background(), server.URL)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("error = %v, want *HTTPError 404", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestClientBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxBodyBytes = 16
	cfg.Retry.MaxRetries = 0
	client := New(cfg)
	defer client.Close()

	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestClientCircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.Retry.MaxRetries = 0
	cfg.CircuitBreaker.FailureThreshold = 2
	client := New(cfg)
	defer client.Close()

	ctx := context.Background()
	client.Get(ctx, server.URL)
	client.Get(ctx, server.URL)

	if _, err := client.Get(ctx, server.URL); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("third Get() error = %v, want ErrCircuitOpen", err)
	}
}

func TestClientRedirectPolicy(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.Write([]byte("ok"))
			return
		}
		atomic.AddInt32(&attempts, 1)
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.CircuitBreaker.FailureThreshold = 1
	client := New(cfg)
	defer client.Close()

	refused := errors.New("refused")
	var seen []string
	ctx := WithRedirectPolicy(context.Background(), func(req *http.Request, via []*http.Request) error {
		seen = append(seen, req.URL.Path)
		if len(via) != 1 {
			t.Errorf("len(via) = %d, want 1", len(via))
		}
		return refused
	})

	_, err := client.Get(ctx, server.URL+"/start")
	var redirectErr *RedirectError
	if !errors.As(err, &redirectErr) || !errors.Is(err, refused) {
		t.Fatalf("error = %v, want *RedirectError wrapping the policy error", err)
	}
	if len(seen) != 1 || seen[0] != "/final" {
		t.Errorf("policy saw %v, want [/final]", seen)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (refused redirects are not retried)", got)
	}
	if open := client.CircuitBreaker().OpenHosts(); len(open) != 0 {
		t.Errorf("open hosts = %v, want none", open)
	}

	resp, err := client.Get(context.Background(), server.URL+"/start")
	if err != nil || string(resp.Body) != "ok" {
		t.Fatalf("without a policy: resp = %v, err = %v", resp, err)
	}
}

func TestClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	client := New(testConfig())
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Get(ctx, server.URL); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{"absent", "", 0},
		{"seconds", "5", 5 * time.Second},
		{"garbage", "soon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			if got := parseRetryAfter(h); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestErrorStrings(t *testing.T) {
	rl := &RateLimitError{StatusCode: 429, RetryAfter: 2 * time.Second}
	if rl.Error() != "rate limited (status 429): retry after 2s" {
		t.Errorf("RateLimitError.Error() = %q", rl.Error())
	}
	he := &HTTPError{StatusCode: 404}
	if he.Error() != "http error: status 404" {
		t.Errorf("HTTPError.Error() = %q", he.Error())
	}
	if !he.Permanent() {
		t.Error("404 should be permanent")
	}
	if (&HTTPError{StatusCode: 502}).Permanent() {
		t.Error("502 should not be permanent")
	}
}
