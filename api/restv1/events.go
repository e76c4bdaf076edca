package restv1

import (
	"net/http"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
)

// listEvents implements GET /events, the audit trail spec.md §6 names for
// the object-level history attached to clusters, nodes and actions.
func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "obj_type", "obj_id", "level", "limit", "marker") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	filter := storage.EventFilter{
		ObjType: r.URL.Query().Get("obj_type"),
		ObjID:   r.URL.Query().Get("obj_id"),
		Limit:   queryInt(r, "limit", 0),
	}
	if level := r.URL.Query().Get("level"); level != "" {
		filter.Level = types.EventLevel(level)
	}
	events, err := s.e.Store().ListEvents(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	events = paginate(events, 0, r.URL.Query().Get("marker"),
		func(e *types.Event) string { return e.ID })
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
