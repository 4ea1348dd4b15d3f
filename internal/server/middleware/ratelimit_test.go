package middleware

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}
}

func doRequest(handler http.Handler, method, target, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10, time.Minute, discardLogger())
	defer limiter.Stop()

	assert.Equal(t, 10, limiter.rate)
	assert.Equal(t, time.Minute, limiter.window)
	assert.NotNil(t, limiter.buckets)

	limiter.Stop()
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("First requests within limit are allowed", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute, discardLogger())
		defer limiter.Stop()

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("192.168.1.1"), fmt.Sprintf("request %d should be allowed", i+1))
		}
	})

	t.Run("Requests over limit are denied", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, discardLogger())
		defer limiter.Stop()

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("192.168.1.2"))
		}
		assert.False(t, limiter.Allow("192.168.1.2"), "request over limit should be denied")
	})

	t.Run("Different keys are tracked separately", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute, discardLogger())
		defer limiter.Stop()

		assert.True(t, limiter.Allow("a"))
		assert.True(t, limiter.Allow("a"))
		assert.False(t, limiter.Allow("a"))

		assert.True(t, limiter.Allow("b"))
		assert.True(t, limiter.Allow("b"))
		assert.False(t, limiter.Allow("b"))
	})

	t.Run("Tokens refill after window expires", func(t *testing.T) {
		limiter := NewRateLimiter(2, 50*time.Millisecond, discardLogger())
		defer limiter.Stop()

		assert.True(t, limiter.Allow("k"))
		assert.True(t, limiter.Allow("k"))
		assert.False(t, limiter.Allow("k"), "should be rate limited")

		time.Sleep(60 * time.Millisecond)

		assert.True(t, limiter.Allow("k"), "tokens should be refilled")
		assert.True(t, limiter.Allow("k"), "tokens should be refilled")
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("Requests within limit pass through", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute, discardLogger())
		defer limiter.Stop()
		handler := RateLimitMiddleware(limiter)(okHandler())

		for i := 0; i < 5; i++ {
			w := doRequest(handler, http.MethodGet, "/api/documents", "192.168.1.1:12345")
			assert.Equal(t, http.StatusOK, w.Code, fmt.Sprintf("request %d should pass", i+1))
			assert.Equal(t, "success", w.Body.String())
		}
	})

	t.Run("Requests over limit are blocked with 429", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute, discardLogger())
		defer limiter.Stop()
		handler := RateLimitMiddleware(limiter)(okHandler())

		for i := 0; i < 3; i++ {
			w := doRequest(handler, http.MethodPost, "/api/documents", "192.168.1.2:12345")
			assert.Equal(t, http.StatusOK, w.Code)
		}

		w := doRequest(handler, http.MethodPost, "/api/documents", "192.168.1.2:12345")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "rate limit exceeded")
	})

	t.Run("Ports of one host share a bucket", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute, discardLogger())
		defer limiter.Stop()
		handler := RateLimitMiddleware(limiter)(okHandler())

		assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/", "192.168.1.1:1000").Code)
		assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/", "192.168.1.1:2000").Code)
		assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, http.MethodGet, "/", "192.168.1.1:3000").Code)

		assert.Equal(t, http.StatusOK, doRequest(handler, http.MethodGet, "/", "192.168.1.9:1000").Code)
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For with single IP",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Forwarded-For with multiple IPs",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1, 10.0.0.2, 10.0.0.3",
			expectedIP: "192.168.1.1",
		},
		{
			name:       "X-Real-IP when X-Forwarded-For is empty",
			remoteAddr: "10.0.0.1:12345",
			xRealIP:    "192.168.2.1",
			expectedIP: "192.168.2.1",
		},
		{
			name:       "RemoteAddr without port when headers are empty",
			remoteAddr: "192.168.3.1:54321",
			expectedIP: "192.168.3.1",
		},
		{
			name:       "RemoteAddr that is not host:port",
			remoteAddr: "pipe",
			expectedIP: "pipe",
		},
		{
			name:       "X-Forwarded-For takes precedence over X-Real-IP",
			remoteAddr: "10.0.0.1:12345",
			xff:        "192.168.1.1",
			xRealIP:    "192.168.2.1",
			expectedIP: "192.168.1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.expectedIP, getClientIP(req))
		})
	}
}

func TestRateLimiter_CleanupOldBuckets(t *testing.T) {
	limiter := NewRateLimiter(10, 100*time.Millisecond, discardLogger())
	defer limiter.Stop()

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")
	limiter.Allow("192.168.1.3")

	limiter.mu.RLock()
	assert.Len(t, limiter.buckets, 3)
	limiter.mu.RUnlock()

	assert.Eventually(t, func() bool {
		limiter.mu.RLock()
		defer limiter.mu.RUnlock()
		return len(limiter.buckets) == 0
	}, 2*time.Second, 20*time.Millisecond, "old buckets should be cleaned up")
}

func TestRateLimitMiddleware_LogsExceededRequests(t *testing.T) {
	var logBuf strings.Builder
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	limiter := NewRateLimiter(1, time.Minute, logger)
	defer limiter.Stop()
	handler := RateLimitMiddleware(limiter)(okHandler())

	doRequest(handler, http.MethodPost, "/api/documents", "192.168.1.1:12345")
	w := doRequest(handler, http.MethodPost, "/api/documents", "192.168.1.1:12345")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "Rate limit exceeded")
	assert.Contains(t, logOutput, "192.168.1.1")
	assert.Contains(t, logOutput, "/api/documents")
	assert.Contains(t, logOutput, "POST")
}
