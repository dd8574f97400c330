package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/teranos/jobtrail/logger"
)

// setupHTTPRoutes configures all HTTP handlers
func (s *JobServer) setupHTTPRoutes() {
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))                   // Store change feed
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))                  // Liveness (GET)
	s.mux.HandleFunc("/api/stats", s.corsMiddleware(s.HandleStats))                // Funnel statistics (GET)
	s.mux.HandleFunc("/api/jobs", s.corsMiddleware(s.HandleJobs))                  // List (GET) and capture (POST)
	s.mux.HandleFunc("/api/jobs/upload", s.corsMiddleware(s.HandleUpload))         // PDF capture (POST, multipart)
	s.mux.HandleFunc("/api/jobs/{id}", s.corsMiddleware(s.HandleJob))              // Single job (GET/DELETE)
	s.mux.HandleFunc("/api/jobs/{id}/status", s.corsMiddleware(s.HandleJobStatus)) // Status change (POST)
	s.mux.HandleFunc("/api/jobs/{id}/notes", s.corsMiddleware(s.HandleJobNotes))   // Append note (POST)
}

// corsMiddleware adds CORS headers for allowed origins, tags the request
// with an id for log correlation, and logs its completion
func (s *JobServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		requestID := fmt.Sprintf("req-%d", s.requestSeq.Add(1))
		r = r.WithContext(logger.WithRequestID(r.Context(), requestID))

		start := time.Now()
		next(w, r)

		s.logger.Debugw("request served",
			logger.FieldRequestID, requestID,
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
}
