package api

import (
	"net/http"
)

// handleStatus returns the polling status of both coordinators.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices":  s.devices.Status(),
		"global":   s.global.Status(),
		"entities": s.registry.Count(),
	})
}

// handleRefresh forces an immediate tick on both coordinators and returns
// their post-tick status. A failed tick is reported in the status body,
// not as an HTTP error: the daemon itself is healthy either way.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceErr := s.devices.ForceRefresh(ctx)
	globalErr := s.global.ForceRefresh(ctx)

	body := map[string]any{
		"devices": s.devices.Status(),
		"global":  s.global.Status(),
	}
	if deviceErr != nil || globalErr != nil {
		body["refreshed"] = false
	} else {
		body["refreshed"] = true
	}
	writeJSON(w, http.StatusOK, body)
}
