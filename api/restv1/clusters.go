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

type clusterBody struct {
	Name            string            `json:"name"`
	ProfileID       string            `json:"profile_id"`
	DesiredCapacity int               `json:"desired_capacity"`
	MinSize         int               `json:"min_size"`
	MaxSize         int               `json:"max_size"`
	Metadata        map[string]string `json:"metadata"`
	Timeout         int               `json:"timeout"`
}

func (s *server) listClusters(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "status", "name", "limit", "marker", "sort", "global_project") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	all, err := s.e.Store().ListClusters()
	if err != nil {
		writeError(w, err)
		return
	}
	status := r.URL.Query().Get("status")
	name := r.URL.Query().Get("name")
	filtered := all[:0:0]
	for _, c := range all {
		if status != "" && string(c.Status) != status {
			continue
		}
		if name != "" && c.Name != name {
			continue
		}
		filtered = append(filtered, c)
	}
	filtered = paginate(filtered, queryInt(r, "limit", 0), r.URL.Query().Get("marker"),
		func(c *types.Cluster) string { return c.ID })
	writeJSON(w, http.StatusOK, map[string]any{"clusters": filtered})
}

func (s *server) createCluster(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cluster clusterBody `json:"cluster"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if body.Cluster.Name == "" || body.Cluster.ProfileID == "" {
		writeError(w, apierror.Validation("cluster.name and cluster.profile_id are required"))
		return
	}
	if _, err := s.e.Store().GetProfile(body.Cluster.ProfileID); err != nil {
		writeError(w, apierror.NotFound("profile "+body.Cluster.ProfileID+" not found"))
		return
	}
	if body.Cluster.MaxSize != types.Unbounded && body.Cluster.DesiredCapacity > body.Cluster.MaxSize {
		writeError(w, apierror.Validation("desired_capacity exceeds max_size"))
		return
	}
	if body.Cluster.DesiredCapacity < body.Cluster.MinSize {
		writeError(w, apierror.Validation("desired_capacity below min_size"))
		return
	}
	now := time.Now().UTC()
	cluster := &types.Cluster{
		ID:              uuid.New().String(),
		Name:            body.Cluster.Name,
		ProfileID:       body.Cluster.ProfileID,
		InitAt:          now,
		CreatedAt:       now,
		UpdatedAt:       now,
		MinSize:         body.Cluster.MinSize,
		MaxSize:         body.Cluster.MaxSize,
		DesiredCapacity: body.Cluster.DesiredCapacity,
		NextIndex:       1,
		TimeoutS:        body.Cluster.Timeout,
		Status:          types.ClusterInit,
		Metadata:        body.Cluster.Metadata,
	}
	if err := s.e.Store().CreateCluster(cluster); err != nil {
		writeError(w, err)
		return
	}
	a, err := s.e.Actions().Create(newAction("cluster_create_"+cluster.Name, cluster.ID, "CLUSTER_CREATE", nil))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/actions/"+a.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{"cluster": cluster, "location": "/actions/" + a.ID})
}

func (s *server) getCluster(w http.ResponseWriter, r *http.Request) {
	c, err := s.e.Store().GetCluster(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, apierror.NotFound("cluster not found"))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) updateCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.e.Store().GetCluster(id); err != nil {
		writeError(w, apierror.NotFound("cluster not found"))
		return
	}
	var body struct {
		Cluster struct {
			Name      string            `json:"name"`
			ProfileID string            `json:"profile_id"`
			Metadata  map[string]string `json:"metadata"`
		} `json:"cluster"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	inputs := map[string]any{}
	if body.Cluster.Name != "" {
		inputs["name"] = body.Cluster.Name
	}
	if body.Cluster.ProfileID != "" {
		inputs["profile_id"] = body.Cluster.ProfileID
	}
	if body.Cluster.Metadata != nil {
		inputs["metadata"] = body.Cluster.Metadata
	}
	a, err := s.e.Actions().Create(newAction("cluster_update_"+id, id, "CLUSTER_UPDATE", inputs))
	if err != nil {
		writeError(w, err)
		return
	}
	locationAccepted(w, a)
}

func (s *server) deleteCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.e.Store().GetCluster(id); err != nil {
		writeError(w, apierror.NotFound("cluster not found"))
		return
	}
	a, err := s.e.Actions().Create(newAction("cluster_delete_"+id, id, "CLUSTER_DELETE", nil))
	if err != nil {
		writeError(w, err)
		return
	}
	locationAccepted(w, a)
}

// clusterAction implements POST /clusters/{id}/actions, dispatching on the
// single present key of spec.md §6's action-selector body:
// {resize|scale_in|scale_out|add_nodes|del_nodes|check|recover|
//  policy_attach|policy_detach|policy_update}.
func (s *server) clusterAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.e.Store().GetCluster(id); err != nil {
		writeError(w, apierror.NotFound("cluster not found"))
		return
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierror.Validation("invalid request body: "+err.Error()))
		return
	}
	if len(body) != 1 {
		writeError(w, apierror.Validation("exactly one action key required"))
		return
	}
	for key, raw := range body {
		verb, inputs, err := decodeClusterActionBody(key, raw)
		if err != nil {
			writeError(w, err)
			return
		}
		a, err := s.e.Actions().Create(newAction(key+"_"+id, id, verb, inputs))
		if err != nil {
			writeError(w, err)
			return
		}
		locationAccepted(w, a)
		return
	}
}

func decodeClusterActionBody(key string, raw json.RawMessage) (string, map[string]any, error) {
	var inputs map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &inputs); err != nil {
			return "", nil, apierror.Validation("invalid " + key + " body: " + err.Error())
		}
	}
	switch key {
	case "resize":
		return "CLUSTER_RESIZE", inputs, nil
	case "scale_in":
		return "CLUSTER_SCALE_IN", inputs, nil
	case "scale_out":
		return "CLUSTER_SCALE_OUT", inputs, nil
	case "add_nodes":
		return "CLUSTER_ADD_NODES", inputs, nil
	case "del_nodes":
		return "CLUSTER_DEL_NODES", inputs, nil
	case "check":
		return "CLUSTER_CHECK", inputs, nil
	case "recover":
		return "CLUSTER_RECOVER", inputs, nil
	case "policy_attach":
		return "CLUSTER_ATTACH_POLICY", inputs, nil
	case "policy_detach":
		return "CLUSTER_DETACH_POLICY", inputs, nil
	case "policy_update":
		return "CLUSTER_UPDATE_POLICY", inputs, nil
	default:
		return "", nil, apierror.Validation("unknown cluster action " + key)
	}
}
