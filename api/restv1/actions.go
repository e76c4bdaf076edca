package restv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
)

func (s *server) listActions(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "target", "status", "action", "limit", "marker") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	filter := storage.ActionFilter{
		Target: r.URL.Query().Get("target"),
		Action: r.URL.Query().Get("action"),
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = types.ActionStatus(status)
	}
	all, err := s.e.Store().ListActions(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	all = paginate(all, queryInt(r, "limit", 0), r.URL.Query().Get("marker"),
		func(a *types.Action) string { return a.ID })
	writeJSON(w, http.StatusOK, map[string]any{"actions": all})
}

func (s *server) getAction(w http.ResponseWriter, r *http.Request) {
	a, err := s.e.Actions().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.NotFound("action not found"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
