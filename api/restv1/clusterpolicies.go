package restv1

import (
	"net/http"

	"github.com/cuemby/fleetd/pkg/apierror"
)

// listClusterPolicies implements GET /cluster-policies?cluster_id=..., the
// binding listing spec.md §6 names alongside the policy_attach/detach/update
// cluster-action verbs.
func (s *server) listClusterPolicies(w http.ResponseWriter, r *http.Request) {
	if !allowedQueryKeys(r, "cluster_id") {
		writeError(w, apierror.Validation("unknown query parameter"))
		return
	}
	clusterID := r.URL.Query().Get("cluster_id")
	if clusterID == "" {
		writeError(w, apierror.Validation("cluster_id is required"))
		return
	}
	if _, err := s.e.Store().GetCluster(clusterID); err != nil {
		writeError(w, apierror.NotFound("cluster not found"))
		return
	}
	bindings, err := s.e.Store().ListClusterPolicies(clusterID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cluster_policies": bindings})
}
