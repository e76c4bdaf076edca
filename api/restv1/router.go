// Package restv1 is the REST v1 service-entry-point surface of spec.md §6:
// request parsing, filter whitelists and pagination are explicitly named
// as out-of-core collaborators, but a believable complete repository
// still needs the HTTP shape they attach to. Grounded on the teacher's
// plain net/http health server (pkg/api/health.go) for the overall
// handler-registration idiom, scaled up to chi.Router because spec.md's
// route table (path params, nested /clusters/{id}/actions) needs real
// routing the bare http.ServeMux the teacher uses for /health doesn't
// comfortably express — chi is the pack's own answer to that gap
// (r3e-network-service_layer's go.mod requires go-chi/chi/v5 for exactly
// this REST-surface role).
package restv1

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	"github.com/cuemby/fleetd/pkg/log"
)

// Engine is the subset of internal/engine.Engine this API needs; declared
// here (rather than importing the concrete type) so tests can supply a
// fake without spinning up Raft.
type Engine interface {
	Store() storage.Store
	Actions() *action.Store
	IsLeader() bool
}

// Router builds the chi.Router serving every path of spec.md §6's REST
// table.
func Router(e Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	s := &server{e: e}

	r.Route("/clusters", func(r chi.Router) {
		r.Get("/", s.listClusters)
		r.Post("/", s.createCluster)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getCluster)
			r.Patch("/", s.updateCluster)
			r.Delete("/", s.deleteCluster)
			r.Post("/actions", s.clusterAction)
		})
	})
	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.listNodes)
		r.Post("/", s.createNode)
		r.Get("/{id}", s.getNode)
		r.Delete("/{id}", s.deleteNode)
	})
	r.Route("/profiles", func(r chi.Router) {
		r.Get("/", s.listProfiles)
		r.Post("/", s.createProfile)
		r.Get("/{id}", s.getProfile)
		r.Patch("/{id}", s.updateProfile)
		r.Delete("/{id}", s.deleteProfile)
	})
	r.Route("/policies", func(r chi.Router) {
		r.Get("/", s.listPolicies)
		r.Post("/", s.createPolicy)
		r.Get("/{id}", s.getPolicy)
		r.Patch("/{id}", s.updatePolicy)
		r.Delete("/{id}", s.deletePolicy)
	})
	r.Route("/actions", func(r chi.Router) {
		r.Get("/", s.listActions)
		r.Get("/{id}", s.getAction)
	})
	r.Get("/events", s.listEvents)
	r.Get("/cluster-policies", s.listClusterPolicies)

	return r
}

type server struct{ e Engine }

func requestLogger(next http.Handler) http.Handler {
	logger := log.WithComponent("restv1")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).Msg("request")
	})
}

// --- helpers --------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apierror.Error); ok {
		writeJSON(w, apiErr.HTTPStatus(), map[string]string{"error": apiErr.Reason})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// allowedQueryKeys rejects any query parameter not in the whitelist with
// 400, per spec.md §6 "All list endpoints reject unknown query keys".
func allowedQueryKeys(r *http.Request, allowed ...string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for k := range r.URL.Query() {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

func paginate[T any](items []T, limit int, marker string, idOf func(T) string) []T {
	sort.SliceStable(items, func(i, j int) bool { return idOf(items[i]) < idOf(items[j]) })
	start := 0
	if marker != "" {
		for i, it := range items {
			if idOf(it) == marker {
				start = i + 1
				break
			}
		}
	}
	if start > len(items) {
		start = len(items)
	}
	items = items[start:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func newAction(name, target, verb string, inputs map[string]any) *types.Action {
	return &types.Action{
		Name:   name,
		Target: target,
		Action: verb,
		Cause:  types.CauseRPCRequest,
		Inputs: inputs,
	}
}

// locationAccepted writes 202 with the created action's location (spec.md
// §6 "All mutations that produce an action return HTTP 202 with
// location: /actions/<id>").
func locationAccepted(w http.ResponseWriter, a *types.Action) {
	w.Header().Set("Location", "/actions/"+a.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"location": "/actions/" + a.ID})
}
