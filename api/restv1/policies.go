package restv1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
)

func (s *server) listPolicies(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "type", "limit", "marker") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	all, err := s.e.Store().ListPolicies()
	if err != nil {
		writeError(w, err)
		return
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		filtered := all[:0:0]
		for _, p := range all {
			if p.Type == typ {
				filtered = append(filtered, p)
			}
		}
		all = filtered
	}
	all = paginate(all, queryInt(r, "limit", 0), r.URL.Query().Get("marker"),
		func(p *types.Policy) string { return p.ID })
	writeJSON(w, http.StatusOK, map[string]any{"policies": all})
}

func (s *server) createPolicy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Policy struct {
			Name      string         `json:"name"`
			Type      string         `json:"type"`
			Spec      map[string]any `json:"spec"`
			CooldownS int            `json:"cooldown"`
			Level     string         `json:"level"`
		} `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Policy.Name == "" || body.Policy.Type == "" {
		writeError(w, apierror.Validation("policy.name and policy.type are required"))
		return
	}
	now := time.Now().UTC()
	p := &types.Policy{
		ID:        uuid.New().String(),
		Name:      body.Policy.Name,
		Type:      body.Policy.Type,
		Spec:      body.Policy.Spec,
		Version:   "1.0",
		CooldownS: body.Policy.CooldownS,
		Level:     body.Policy.Level,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.e.Store().CreatePolicy(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"policy": p})
}

func (s *server) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.e.Store().GetPolicy(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.NotFound("policy not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.e.Store().GetPolicy(id)
	if err != nil {
		writeError(w, apierror.NotFound("policy not found"))
		return
	}
	var body struct {
		Policy struct {
			Name      string `json:"name"`
			CooldownS *int   `json:"cooldown"`
		} `json:"policy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Policy.Name != "" {
		p.Name = body.Policy.Name
	}
	if body.Policy.CooldownS != nil {
		p.CooldownS = *body.Policy.CooldownS
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.e.Store().UpdatePolicy(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	clusters, err := s.e.Store().ListClusters()
	if err != nil {
		writeError(w, err)
		return
	}
	for _, c := range clusters {
		bindings, err := s.e.Store().ListClusterPolicies(c.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		for _, b := range bindings {
			if b.PolicyID == id {
				writeError(w, apierror.Conflict("policy attached to cluster "+c.ID))
				return
			}
		}
	}
	if err := s.e.Store().DeletePolicy(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
