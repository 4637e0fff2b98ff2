package api

import (
	"net/http"
	"sort"

	"github.com/n1ckjansens/HA-Mikrotik/internal/backend"
)

// handleListDevices returns the current device snapshot, sorted by ID.
// Returns 503 until the device coordinator has completed a first tick.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.devices.Snapshot()
	if !ok {
		writeNotReady(w, "no device snapshot yet")
		return
	}

	devices := make([]backend.Device, 0, len(snapshot))
	for _, d := range snapshot {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(devices),
		"devices": devices,
	})
}

// handleListGlobalCapabilities returns the current global capability
// snapshot in backend order.
func (s *Server) handleListGlobalCapabilities(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.global.Snapshot()
	if !ok {
		writeNotReady(w, "no global capability snapshot yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(snapshot),
		"capabilities": snapshot,
	})
}
