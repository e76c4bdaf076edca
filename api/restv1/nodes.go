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

func (s *server) listNodes(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "cluster_id", "status", "limit", "marker") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	var (
		nodes []*types.Node
		err   error
	)
	if clusterID := r.URL.Query().Get("cluster_id"); clusterID != "" {
		nodes, err = s.e.Store().ListNodesByCluster(clusterID)
	} else {
		nodes, err = s.e.Store().ListNodes()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := nodes[:0:0]
		for _, n := range nodes {
			if string(n.Status) == status {
				filtered = append(filtered, n)
			}
		}
		nodes = filtered
	}
	nodes = paginate(nodes, queryInt(r, "limit", 0), r.URL.Query().Get("marker"),
		func(n *types.Node) string { return n.ID })
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
}

func (s *server) createNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Node struct {
			Name      string            `json:"name"`
			ProfileID string            `json:"profile_id"`
			Role      string            `json:"role"`
			Metadata  map[string]string `json:"metadata"`
		} `json:"node"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Node.Name == "" || body.Node.ProfileID == "" {
		writeError(w, apierror.Validation("node.name and node.profile_id are required"))
		return
	}
	if _, err := s.e.Store().GetProfile(body.Node.ProfileID); err != nil {
		writeError(w, apierror.NotFound("profile "+body.Node.ProfileID+" not found"))
		return
	}
	now := time.Now().UTC()
	node := &types.Node{
		ID:        uuid.New().String(),
		Name:      body.Node.Name,
		ProfileID: body.Node.ProfileID,
		Role:      types.NodeRole(body.Node.Role),
		Index:     types.OrphanIndex,
		InitAt:    now,
		CreatedAt: now,
		UpdatedAt: now,
		Status:    types.NodeInit,
		Metadata:  body.Node.Metadata,
	}
	if err := s.e.Store().CreateNode(node); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"node": node})
}

func (s *server) getNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.e.Store().GetNode(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.NotFound("node not found"))
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *server) deleteNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.e.Store().GetNode(id)
	if err != nil {
		writeError(w, apierror.NotFound("node not found"))
		return
	}
	if n.ClusterID != "" {
		writeError(w, apierror.Conflict("node still belongs to cluster "+n.ClusterID))
		return
	}
	if err := s.e.Store().DeleteNode(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
