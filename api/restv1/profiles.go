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

func (s *server) listProfiles(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "type", "limit", "marker") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	all, err := s.e.Store().ListProfiles()
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
		func(p *types.Profile) string { return p.ID })
	writeJSON(w, http.StatusOK, map[string]any{"profiles": all})
}

func (s *server) createProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Profile struct {
			Name     string            `json:"name"`
			Type     string            `json:"type"`
			Spec     map[string]any    `json:"spec"`
			Metadata map[string]string `json:"metadata"`
		} `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Profile.Name == "" || body.Profile.Type == "" {
		writeError(w, apierror.Validation("profile.name and profile.type are required"))
		return
	}
	now := time.Now().UTC()
	p := &types.Profile{
		ID:        uuid.New().String(),
		Name:      body.Profile.Name,
		Type:      body.Profile.Type,
		Spec:      body.Profile.Spec,
		Metadata:  body.Profile.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.e.Store().CreateProfile(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"profile": p})
}

func (s *server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.e.Store().GetProfile(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.NotFound("profile not found"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// updateProfile only allows name/metadata changes (§3 "Spec is immutable
// after creation; only name/metadata are updatable").
func (s *server) updateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.e.Store().GetProfile(id)
	if err != nil {
		writeError(w, apierror.NotFound("profile not found"))
		return
	}
	var body struct {
		Profile struct {
			Name     string            `json:"name"`
			Metadata map[string]string `json:"metadata"`
		} `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Profile.Name != "" {
		p.Name = body.Profile.Name
	}
	if body.Profile.Metadata != nil {
		p.Metadata = body.Profile.Metadata
	}
	p.UpdatedAt = time.Now().UTC()
	if err := s.e.Store().UpdateProfile(p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	clusters, err := s.e.Store().ListClusters()
	if err != nil {
		writeError(w, err)
		return
	}
	for _, c := range clusters {
		if c.ProfileID == id {
			writeError(w, apierror.Conflict("profile in use by cluster "+c.ID))
			return
		}
	}
	if err := s.e.Store().DeleteProfile(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
