package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json", Output: &bytes.Buffer{}})
}

func TestRequestID(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Context().Value(logger.RequestIDKey)
		if reqID == nil || reqID == "" {
			t.Error("expected request ID in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generates new request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		reqID := rec.Header().Get(RequestIDHeader)
		if reqID == "" {
			t.Error("expected X-Request-ID header to be set")
		}
		if len(reqID) != 32 { // hex encoded 16 bytes
			t.Errorf("expected request ID length 32, got %d", len(reqID))
		}
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "existing-id-123")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		reqID := rec.Header().Get(RequestIDHeader)
		if reqID != "existing-id-123" {
			t.Errorf("expected preserved request ID 'existing-id-123', got %s", reqID)
		}
	})
}

func TestLogging(t *testing.T) {
	var logBuf bytes.Buffer
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "json",
		Output: &logBuf,
	})

	handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	logOutput := logBuf.String()

	if !strings.Contains(logOutput, "request completed") {
		t.Errorf("expected 'request completed' in log, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "GET") {
		t.Errorf("expected method in log, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "/test") {
		t.Errorf("expected path in log, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "200") {
		t.Errorf("expected status in log, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "duration_ms") {
		t.Errorf("expected duration_ms in log, got: %s", logOutput)
	}
}

func TestLoggingLevels(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		expectedLevel string
	}{
		{"2xx logs info", 200, "INFO"},
		{"3xx logs info", 302, "INFO"},
		{"4xx logs warn", 404, "WARN"},
		{"5xx logs error", 500, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logBuf bytes.Buffer
			log := logger.New(logger.Config{
				Level:  "debug",
				Format: "json",
				Output: &logBuf,
			})

			handler := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			logOutput := logBuf.String()
			if !strings.Contains(logOutput, tt.expectedLevel) {
				t.Errorf("expected log level %s, got: %s", tt.expectedLevel, logOutput)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var logBuf bytes.Buffer
	log := logger.New(logger.Config{
		Level:  "info",
		Format: "json",
		Output: &logBuf,
	})

	handler := Recovery(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic.
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "INTERNAL_ERROR") {
		t.Errorf("expected INTERNAL_ERROR in body, got: %s", body)
	}

	logOutput := logBuf.String()
	if !strings.Contains(logOutput, "panic recovered") {
		t.Errorf("expected 'panic recovered' in log, got: %s", logOutput)
	}
	if !strings.Contains(logOutput, "test panic") {
		t.Errorf("expected panic message in log, got: %s", logOutput)
	}
}

func TestTimeout(t *testing.T) {
	handler := Timeout(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok := r.Context().Deadline()
		if !ok {
			t.Error("expected deadline on request context")
		}
		if until := time.Until(deadline); until > 10*time.Millisecond {
			t.Errorf("deadline too far out: %v", until)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

type fakeLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.keys = append(f.keys, key)
	return f.allow, f.err
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	t.Run("allows under the limit", func(t *testing.T) {
		lim := &fakeLimiter{allow: true}
		handler := RateLimit(lim, 5, time.Minute, quietLogger())(next)

		req := httptest.NewRequest("POST", "/campaigns/c1/generate", nil)
		req.RemoteAddr = "192.0.2.7:4444"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected status 202, got %d", rec.Code)
		}
		if len(lim.keys) != 1 || !strings.Contains(lim.keys[0], "192.0.2.7") {
			t.Errorf("expected key scoped by client IP, got %v", lim.keys)
		}
	})

	t.Run("rejects over the limit", func(t *testing.T) {
		lim := &fakeLimiter{allow: false}
		handler := RateLimit(lim, 5, time.Minute, quietLogger())(next)

		req := httptest.NewRequest("POST", "/campaigns/c1/generate", nil)
		req.RemoteAddr = "192.0.2.7:4444"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Errorf("expected status 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "60" {
			t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
		}
		if !strings.Contains(rec.Body.String(), "RESOURCE_EXHAUSTED") {
			t.Errorf("expected RESOURCE_EXHAUSTED in body, got: %s", rec.Body.String())
		}
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		lim := &fakeLimiter{err: fmt.Errorf("redis down")}
		handler := RateLimit(lim, 5, time.Minute, quietLogger())(next)

		req := httptest.NewRequest("POST", "/campaigns/c1/generate", nil)
		req.RemoteAddr = "192.0.2.7:4444"
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("expected fail-open 202, got %d", rec.Code)
		}
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"peer address", "192.0.2.1:5000", "", "192.0.2.1"},
		{"forwarded single", "10.0.0.1:80", "203.0.113.9", "203.0.113.9"},
		{"forwarded chain uses first hop", "10.0.0.1:80", "203.0.113.9, 10.0.0.2", "203.0.113.9"},
		{"unparseable peer passes through", "unix", "", "unix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := wrapResponseWriter(rec)

		rw.WriteHeader(http.StatusCreated)

		if rw.status != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rw.status)
		}
	})

	t.Run("captures size", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := wrapResponseWriter(rec)

		rw.Write([]byte("hello world"))

		if rw.size != 11 {
			t.Errorf("expected size 11, got %d", rw.size)
		}
	})

	t.Run("defaults to 200", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := wrapResponseWriter(rec)

		rw.Write([]byte("hello"))

		if rw.status != http.StatusOK {
			t.Errorf("expected default status 200, got %d", rw.status)
		}
	})

	t.Run("only writes header once", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := wrapResponseWriter(rec)

		rw.WriteHeader(http.StatusCreated)
		rw.WriteHeader(http.StatusOK) // ignored

		if rw.status != http.StatusCreated {
			t.Errorf("expected status 201, got %d", rw.status)
		}
	})
}

func TestWrapHandler(t *testing.T) {
	log := quietLogger()

	t.Run("successful handler", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("success"))
			return nil
		})

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("handler with error", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			return errors.NotFound("campaign", "camp_123")
		})

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}

		body := rec.Body.String()
		if !strings.Contains(body, "NOT_FOUND") {
			t.Errorf("expected NOT_FOUND in body, got: %s", body)
		}
	})

	t.Run("lock held maps to conflict", func(t *testing.T) {
		handler := WrapHandler(log, func(w http.ResponseWriter, r *http.Request) error {
			return errors.LockHeld("camp_123")
		})

		req := httptest.NewRequest("POST", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		code     errors.Code
		message  string
		details  map[string]any
		expected int
	}{
		{
			name:     "validation error",
			code:     errors.CodeValidation,
			message:  "missing template id",
			details:  map[string]any{"field": "templateId"},
			expected: 400,
		},
		{
			name:     "not found",
			code:     errors.CodeNotFound,
			message:  "campaign not found",
			details:  nil,
			expected: 404,
		},
		{
			name:     "internal error",
			code:     errors.CodeInternal,
			message:  "unexpected error",
			details:  nil,
			expected: 500,
		},
		{
			name:     "rate limited",
			code:     errors.CodeResourceExhaust,
			message:  "rate limit exceeded",
			details:  nil,
			expected: 429,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()

			WriteErrorResponse(rec, tt.code, tt.message, tt.details)

			if rec.Code != tt.expected {
				t.Errorf("expected status %d, got %d", tt.expected, rec.Code)
			}

			body := rec.Body.String()
			if !strings.Contains(body, string(tt.code)) {
				t.Errorf("expected code in body, got: %s", body)
			}
			if !strings.Contains(body, tt.message) {
				t.Errorf("expected message in body, got: %s", body)
			}
		})
	}
}

func TestGenerateRequestID(t *testing.T) {
	id1 := generateRequestID()
	id2 := generateRequestID()

	if id1 == id2 {
		t.Error("expected unique request IDs")
	}
	if len(id1) != 32 {
		t.Errorf("expected length 32, got %d", len(id1))
	}
}
