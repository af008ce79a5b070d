package api

import (
	"net/http"
	"time"
)

// handleHealth reports service liveness and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAPIIndex returns a short index of the API surface.
func (s *Server) handleAPIIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "LunaSphere API",
		"version":   s.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"login":     "POST /api/login",
			"signup":    "POST /api/users",
			"refresh":   "POST /api/refresh",
			"logout":    "POST /api/logout",
			"me":        "GET /api/me",
			"users":     "GET /api/users",
			"roles":     "GET /api/roles",
			"analytics": "GET /api/analytics",
			"visitors":  "GET /api/visitors",
			"services":  "GET /api/services",
			"contact":   "POST /api/contact",
			"health":    "GET /health",
		},
	})
}
