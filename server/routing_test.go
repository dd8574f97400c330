package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/jobs"
)

func TestSetupHTTPRoutes_RegistersAllEndpoints(t *testing.T) {
	srv := &JobServer{
		mux:    http.NewServeMux(),
		logger: zaptest.NewLogger(t).Sugar(),
	}
	srv.setupHTTPRoutes()

	paths := map[string]string{
		"/ws":                       "/ws",
		"/health":                   "/health",
		"/api/stats":                "/api/stats",
		"/api/jobs":                 "/api/jobs",
		"/api/jobs/upload":          "/api/jobs/upload",
		"/api/jobs/3f2c9a10":        "/api/jobs/{id}",
		"/api/jobs/3f2c9a10/status": "/api/jobs/{id}/status",
		"/api/jobs/3f2c9a10/notes":  "/api/jobs/{id}/notes",
	}
	for path, pattern := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, got := srv.mux.Handler(req)
		assert.Equal(t, pattern, got, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	_, got := srv.mux.Handler(req)
	assert.Empty(t, got)
}

func TestCorsMiddleware_Preflight(t *testing.T) {
	srv := &JobServer{
		logger:         zaptest.NewLogger(t).Sugar(),
		allowedOrigins: []string{"chrome-extension://abcdef"},
	}
	called := false
	h := srv.corsMiddleware(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called, "preflight never reaches the handler")
	assert.Equal(t, "chrome-extension://abcdef", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginMatches(t *testing.T) {
	tests := []struct {
		origin  string
		allowed string
		want    bool
	}{
		{"http://localhost", "http://localhost", true},
		{"http://localhost:3000", "http://localhost", true},
		{"http://LOCALHOST:3000", "http://localhost", true},
		{"http://localhost:3000", "http://localhost:3000", true},
		{"http://localhost:4000", "http://localhost:3000", false},
		{"http://localhost.evil.com", "http://localhost", false},
		{"http://localhost.evil.com:8080", "http://localhost", false},
		{"https://localhost", "http://localhost", false},
		{"http://127.0.0.1:5001", "http://127.0.0.1", true},
		{"http://127.0.0.10", "http://127.0.0.1", false},
		{"chrome-extension://abcdef", "chrome-extension://abcdef", true},
		{"chrome-extension://other", "chrome-extension://abcdef", false},
		{"chrome-extension://abcdef", "chrome-extension://", false},
		{"null", "http://localhost", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, originMatches(tt.origin, tt.allowed), "%s vs %s", tt.origin, tt.allowed)
	}
}

func TestNewJobServer_BindsLoopbackByDefault(t *testing.T) {
	store, err := jobs.Open(filepath.Join(t.TempDir(), "jobs.json"), jobs.Options{})
	require.NoError(t, err)

	srv, err := NewJobServer(store, &fakeCapturer{store: store}, am.ServerConfig{})
	require.NoError(t, err)
	defer srv.Stop()

	assert.Equal(t, "127.0.0.1", srv.bindAddress)
	assert.Equal(t, "127.0.0.1:5001", listenAddr(srv.bindAddress, 5001))
	assert.Equal(t, "[::1]:5001", listenAddr("::1", 5001))
}
