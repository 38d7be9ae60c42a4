package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/logging"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestCORSMiddleware(t *testing.T) {
	m := NewCORSMiddleware([]string{"https://app.example.com", ".letsbefriends.ph", " "})
	h := m.Handler(http.HandlerFunc(ok))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"https://www.letsbefriends.ph", true},
		{"https://evil.example.com", false},
		{"https://app.example.com.evil.io", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", tt.origin)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.allowed {
			t.Errorf("origin %s allowed = %v, want %v", tt.origin, got, tt.allowed)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", rec.Code)
	}

	all := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(ok))
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.io")
	rec = httptest.NewRecorder()
	all.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://anything.io" {
		t.Error("wildcard should allow any origin")
	}
}

func TestTracingMiddleware(t *testing.T) {
	var traceID string
	h := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = logging.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TraceHeader, "trace-abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if traceID != "trace-abc" || rec.Header().Get(TraceHeader) != "trace-abc" {
		t.Fatalf("trace = %q header = %q", traceID, rec.Header().Get(TraceHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if traceID == "" || traceID != rec.Header().Get(TraceHeader) {
		t.Fatalf("generated trace = %q header = %q", traceID, rec.Header().Get(TraceHeader))
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	h := rl.Handler(http.HandlerFunc(ok))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	// Users are limited independently of their IP.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req = req.WithContext(logging.WithUserID(req.Context(), "42"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("user request status = %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 10, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.getLimiter("a")
	now = now.Add(time.Hour)
	rl.getLimiter("b")

	if removed := rl.Cleanup(time.Minute); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := rl.limiters["b"]; !ok {
		t.Fatal("recent limiter was removed")
	}
}

func TestRoutePathUsesTemplate(t *testing.T) {
	var path string
	r := mux.NewRouter()
	r.HandleFunc("/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		path = routePath(r)
	})
	r.Use(MetricsMiddleware)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/123", nil))
	if path != "/posts/{id}" {
		t.Fatalf("path = %q", path)
	}
}
