package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/heartbeat", "/heartbeat"},
		{"/openapi.yaml", "/openapi.yaml"},
		{"/tables", "/tables"},
		{"/tables/projects", "/tables/{table}"},
		{"/tables/projects/3f1c2a4e-9b7d-4c1e-8f2a-6d5b4c3a2e10", "/tables/{table}/{id}"},
		{"/project/3f1c2a4e-9b7d-4c1e-8f2a-6d5b4c3a2e10", "/project/{id}"},
		{"/project/batch", "/project/batch"},
		{"/project/search/left-pad", "/project/search/{name}"},
		{"/leaderboard", "/leaderboard"},
		{"/", "other"},
		{"/wp-admin/install.php", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	h := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/project/{id}", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/project/3f1c2a4e-9b7d-4c1e-8f2a-6d5b4c3a2e10", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("прирост счётчика = %v, ожидалось 1", got)
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables", nil))

	if rec.Code != http.StatusCreated || rec.Body.String() != "ok" {
		t.Errorf("ответ изменён: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.5, 2, slog.New(slog.DiscardHandler))
	defer rl.Stop()

	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/tables", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	// burst = 2: два запроса проходят, третий — 429
	for i := range 2 {
		if rec := call("10.0.0.1:5000"); rec.Code != http.StatusOK {
			t.Fatalf("запрос %d: статус %d", i+1, rec.Code)
		}
	}
	rec := call("10.0.0.1:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("ожидался 429, получен %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, ожидалось 2", got)
	}

	// Другой клиент — собственный бюджет
	if rec := call("10.0.0.2:5000"); rec.Code != http.StatusOK {
		t.Errorf("второй клиент: статус %d", rec.Code)
	}
	if n := rl.ClientCount(); n != 2 {
		t.Errorf("ClientCount = %d, ожидалось 2", n)
	}
}

// Заголовки прокси не меняют ключ клиента: лимит считается по RemoteAddr.
func TestRateLimiter_IgnoresForwardedHeaders(t *testing.T) {
	rl := NewRateLimiter(1, 1, slog.New(slog.DiscardHandler))
	defer rl.Stop()

	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i+1))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		want := http.StatusTooManyRequests
		if i == 0 {
			want = http.StatusOK
		}
		if rec.Code != want {
			t.Fatalf("запрос %d: статус %d, ожидался %d", i+1, rec.Code, want)
		}
	}
	if n := rl.ClientCount(); n != 1 {
		t.Errorf("ClientCount = %d, ожидалось 1", n)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, slog.New(slog.DiscardHandler))
	rl.Stop()
	rl.Stop()

	rl.limiter("ip:10.0.0.1")
	rl.limiter("ip:10.0.0.2")

	rl.cleanup(time.Now())
	if n := rl.ClientCount(); n != 2 {
		t.Fatalf("активные клиенты удалены: %d", n)
	}
	rl.cleanup(time.Now().Add(clientIdleTTL + time.Second))
	if n := rl.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d после очистки", n)
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:41000"
	if got := clientKey(req); got != "ip:192.0.2.7" {
		t.Errorf("clientKey = %q", got)
	}

	req = req.WithContext(context.WithValue(req.Context(), ContextKeyClaims, &AuthClaims{Subject: "analyst"}))
	if got := clientKey(req); got != "sub:analyst" {
		t.Errorf("clientKey с claims = %q", got)
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("ожидался 500, получен %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRecoverer_AbortHandler(t *testing.T) {
	h := Recoverer(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler { //nolint:errorlint // сравнение значения паники
			t.Errorf("ожидалась паника ErrAbortHandler, получено %v", rec)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestRequestLogLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/leaderboard", http.StatusOK, slog.LevelInfo},
		{"/health/live", http.StatusOK, slog.LevelDebug},
		{"/metrics", http.StatusOK, slog.LevelDebug},
		{"/health/ready", http.StatusServiceUnavailable, slog.LevelError},
		{"/project/batch", http.StatusBadRequest, slog.LevelWarn},
		{"/tables", http.StatusInternalServerError, slog.LevelError},
	}
	for _, tt := range tests {
		if got := requestLogLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("requestLogLevel(%q, %d) = %v, ожидалось %v", tt.path, tt.status, got, tt.want)
		}
	}
}
