package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/lumentrace/internal/contour"
	"github.com/MeKo-Tech/lumentrace/internal/slice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestNewServer_Validation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		errMsg string
	}{
		{"zero slice size", Config{TimeoutSec: 5}, "max slice size"},
		{"zero timeout", Config{MaxSliceMB: 1}, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, err := NewServer(tt.config)
			require.Error(t, err)
			assert.Nil(t, srv)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewServer_Defaults(t *testing.T) {
	srv, err := NewServer(Config{MaxSliceMB: 4, TimeoutSec: 10})
	require.NoError(t, err)

	assert.NotNil(t, srv.Group())
	assert.Equal(t, slice.DefaultPathPoint(), srv.pathPoint)
	assert.Nil(t, srv.rateLimiter)
	assert.Equal(t, 0, srv.ActiveSessions())
	assert.NoError(t, srv.Close())
}

func TestNewServer_SharedGroupAndLimits(t *testing.T) {
	group := contour.NewGroup()
	pp := slice.PathPoint{Position: r3.Vec{Z: 12}, Tangent: r3.Vec{Z: 1}, Rotation: r3.Vec{X: 1}}

	srv, err := NewServer(Config{
		MaxSliceMB:       4,
		TimeoutSec:       10,
		Group:            group,
		PathPoint:        pp,
		SessionsPerHour:  5,
		MaxSliceMBPerDay: 2,
	})
	require.NoError(t, err)

	assert.Same(t, group, srv.Group())
	assert.Equal(t, pp, srv.pathPoint)
	require.NotNil(t, srv.rateLimiter)
	assert.Equal(t, 5, srv.rateLimiter.sessionsPerHour)
	assert.Equal(t, int64(2<<20), srv.rateLimiter.maxDataPerDay)
}

func TestServer_CheckOrigin(t *testing.T) {
	tests := []struct {
		name       string
		corsOrigin string
		origin     string
		want       bool
	}{
		{"wildcard", "*", "https://a.example", true},
		{"unset", "", "https://a.example", true},
		{"match", "https://a.example", "https://a.example", true},
		{"mismatch", "https://a.example", "https://b.example", false},
		{"no origin header", "https://a.example", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := &Server{corsOrigin: tt.corsOrigin}
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, srv.checkOrigin(req))
		})
	}
}

func TestServer_SetupRoutes(t *testing.T) {
	srv := newTestServer(t)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	_ = resp.Body.Close()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/contours")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// after one instrumented request the HTTP counters are exported
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "lumentrace_http_requests_total")
}

func TestErrorResponse_FieldNames(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"x"}`, string(data))
}
