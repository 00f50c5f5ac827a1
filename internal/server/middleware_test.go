package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		expectedStatus int
		shouldCallNext bool
	}{
		{"GET with wildcard", "*", http.MethodGet, http.StatusOK, true},
		{"DELETE with specific origin", "https://viewer.example.com", http.MethodDelete, http.StatusOK, true},
		{"OPTIONS preflight", "*", http.MethodOptions, http.StatusOK, false},
		{"empty origin", "", http.MethodGet, http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}

			nextCalled := false
			next := func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(http.StatusOK)
			}

			req := httptest.NewRequest(tt.method, "/contours", nil)
			w := httptest.NewRecorder()
			server.corsMiddleware(next)(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, tt.shouldCallNext, nextCalled)
		})
	}
}

func TestServer_CORSMiddleware_ErrorInNext(t *testing.T) {
	server := &Server{corsOrigin: "*"}

	next := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	w := httptest.NewRecorder()
	server.corsMiddleware(next)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestResponseWriter_Hijack(t *testing.T) {
	// the recorder cannot be hijacked
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
	_, _, err := rw.Hijack()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hijacking")

	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, rw.statusCode)
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		server := &Server{}
		calls := 0
		handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { calls++ })
		for range 5 {
			handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ws", nil))
		}
		assert.Equal(t, 5, calls)
	})

	t.Run("sessions per minute", func(t *testing.T) {
		server := &Server{rateLimiter: NewRateLimiter(2, 0, 0, 0)}
		calls := 0
		handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { calls++ })

		var last *httptest.ResponseRecorder
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("X-Real-IP", "10.0.0.7")
			last = httptest.NewRecorder()
			handler(last, req)
		}

		assert.Equal(t, 2, calls)
		assert.Equal(t, http.StatusTooManyRequests, last.Code)
		assert.Equal(t, "minute", last.Header().Get("X-RateLimit-Type"))
		assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body["error"])

		// another client is unaffected
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.Header.Set("X-Real-IP", "10.0.0.8")
		handler(httptest.NewRecorder(), req)
		assert.Equal(t, 3, calls)
	})
}

func TestServer_HandleRateLimitError_Quota(t *testing.T) {
	server := &Server{}
	rl := NewRateLimiter(0, 0, 1, 0)
	require.NoError(t, rl.CheckSlice("c", 10))
	err := rl.CheckSlice("c", 10)
	require.Error(t, err)

	w := httptest.NewRecorder()
	server.handleRateLimitError(w, err)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "slices", w.Header().Get("X-Quota-Type"))
	assert.Equal(t, "1", w.Header().Get("X-Quota-Used"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "192.0.2.1:5555", nil, "192.0.2.1"},
		{"remote addr without port", "192.0.2.1", nil, "192.0.2.1"},
		{"forwarded chain", "192.0.2.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"forwarded single", "192.0.2.1:5555", map[string]string{"X-Forwarded-For": " 203.0.113.9 "}, "203.0.113.9"},
		{"real ip", "192.0.2.1:5555", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func BenchmarkServer_CORSMiddleware(b *testing.B) {
	server := &Server{corsOrigin: "*"}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for range b.N {
		handler(httptest.NewRecorder(), req)
	}
}
