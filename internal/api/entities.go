package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/n1ckjansens/HA-Mikrotik/internal/entity"
)

// entityView is the JSON rendering of one materialised entity.
type entityView struct {
	UniqueID  string   `json:"unique_id"`
	Name      string   `json:"name"`
	Scope     string   `json:"scope"`
	Type      string   `json:"type"`
	Available bool     `json:"available"`
	State     string   `json:"state,omitempty"`
	Options   []string `json:"options,omitempty"`
}

func renderEntity(e entity.Entity) entityView {
	view := entityView{
		UniqueID:  e.UniqueID(),
		Name:      e.Name(),
		Scope:     e.Scope(),
		Available: e.Available(),
	}
	if state, ok := e.State(); ok {
		view.State = state
	}

	switch v := e.(type) {
	case *entity.Switch:
		view.Type = "switch"
	case *entity.Select:
		view.Type = "select"
		view.Options = v.Options()
	}
	return view
}

// handleListEntities returns all materialised entities sorted by unique ID.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	entities := s.registry.Entities()

	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		views = append(views, renderEntity(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(views),
		"entities": views,
	})
}

// handleGetEntity returns one entity by unique ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, ok := s.registry.Get(id)
	if !ok {
		writeNotFound(w, "entity not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, renderEntity(e))
}
