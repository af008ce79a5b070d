package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lunasphere/lunasphere-core/internal/analytics"
)

// maxVisitorResults bounds the visitor listing to the most recent sightings.
const maxVisitorResults = 50

// handleGetAnalytics returns the site counters with onlineNow computed from
// recent visitor activity.
func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	counters, err := s.tracker.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("loading analytics failed", "error", err)
		writeInternalError(w, "Failed to load analytics")
		return
	}

	writeJSON(w, http.StatusOK, counters)
}

// handleUpdateAnalytics merges an admin-supplied counter update.
func (s *Server) handleUpdateAnalytics(w http.ResponseWriter, r *http.Request) {
	var update analytics.CounterUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeBadRequest(w, "Invalid request body")
		return
	}

	if err := s.tracker.ApplyUpdate(r.Context(), update); err != nil {
		s.logger.Error("updating analytics failed", "error", err)
		writeInternalError(w, "Failed to update analytics")
		return
	}

	counters, err := s.tracker.Snapshot(r.Context())
	if err != nil {
		s.logger.Error("loading analytics failed", "error", err)
		writeInternalError(w, "Failed to load analytics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"analytics": counters,
	})
}

// visitorSummary is the sanitized visitor shape exposed to admins. Raw IPs
// and user agents stay server-side.
type visitorSummary struct {
	ID           string    `json:"id"`
	Location     string    `json:"location"`
	FirstSeen    time.Time `json:"firstSeen"`
	LastActivity time.Time `json:"lastActivity"`
	Pages        int       `json:"pages"`
	Online       bool      `json:"online"`
}

// handleListVisitors returns recent visitor sightings, sanitized and capped.
func (s *Server) handleListVisitors(w http.ResponseWriter, r *http.Request) {
	visitors, err := s.tracker.Visitors(r.Context())
	if err != nil {
		s.logger.Error("listing visitors failed", "error", err)
		writeInternalError(w, "Failed to load visitors")
		return
	}

	onlineCutoff := time.Now().Add(-s.config.OnlineWindow())

	summaries := make([]visitorSummary, 0, len(visitors))
	for _, v := range visitors {
		summaries = append(summaries, visitorSummary{
			ID:           shortVisitorID(v.ID),
			Location:     v.Location,
			FirstSeen:    v.FirstSeen,
			LastActivity: v.LastActivity,
			Pages:        v.PageCount,
			Online:       v.LastActivity.After(onlineCutoff),
		})
		if len(summaries) == maxVisitorResults {
			break
		}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// shortVisitorID truncates the visitor hash so the full key never leaves the
// server.
func shortVisitorID(id string) string {
	const visible = 12
	if len(id) <= visible {
		return id
	}
	return id[:visible]
}
