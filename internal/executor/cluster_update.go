package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
)

// clusterUpdate is CLUSTER_UPDATE (§4.4): a profile_id change
// spawns NODE_UPDATE children serialised in batches of max_update_parallel
// via explicit depends_on edges across batches — the one fan-out shape in
// this engine that genuinely uses the dependency graph for sequencing
// (see spawnChild's doc comment for why ordinary fan-out doesn't).
// A name/metadata-only update applies in place with no node children.
type clusterUpdate struct{}

func (clusterUpdate) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}

	if v, ok := a.Inputs["name"].(string); ok && v != "" {
		cluster.Name = v
	}
	if v, ok := toStringMapFromAny(a.Inputs["metadata"]); ok {
		cluster.Metadata = v
	}

	newProfileID, profileChanged := a.Inputs["profile_id"].(string)
	profileChanged = profileChanged && newProfileID != "" && newProfileID != cluster.ProfileID
	if !profileChanged {
		endCluster(rt, a, cluster)
		return action.ResultOK, ""
	}

	oldProfile, err := rt.Store.GetProfile(cluster.ProfileID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	newProfile, err := rt.Store.GetProfile(newProfileID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	if newProfile.Type != oldProfile.Type {
		endCluster(rt, a, cluster)
		return action.ResultError, fmt.Sprintf("new profile type %q does not match current type %q", newProfile.Type, oldProfile.Type)
	}

	cluster.Status = types.ClusterUpdating
	_ = rt.Store.UpdateCluster(cluster)

	nodes, err := rt.Store.ListNodesByCluster(cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	batchSize := rt.MaxUpdateParallel
	if batchSize <= 0 {
		batchSize = len(nodes)
		if batchSize == 0 {
			batchSize = 1
		}
	}

	var allIDs []string
	var prevBatch []string
	for start := 0; start < len(nodes); start += batchSize {
		end := start + batchSize
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[start:end]
		var batchIDs []string
		for _, n := range batch {
			child := &types.Action{
				Name:     "NODE_UPDATE " + n.ID,
				Target:   n.ID,
				Action:   "NODE_UPDATE",
				Cause:    types.CauseDerivedAction,
				TimeoutS: a.TimeoutS,
				Inputs:   map[string]any{"profile_id": newProfileID},
				Data:     map[string]any{"parent_action_id": a.ID},
			}
			created, err := rt.Actions.Create(child, prevBatch...)
			if err != nil {
				endCluster(rt, a, cluster)
				return action.ResultError, err.Error()
			}
			batchIDs = append(batchIDs, created.ID)
		}
		allIDs = append(allIDs, batchIDs...)
		prevBatch = batchIDs
	}

	if len(allIDs) == 0 {
		cluster.ProfileID = newProfileID
		endCluster(rt, a, cluster)
		return action.ResultOK, ""
	}

	if res, stop := yield(rt, a); stop {
		cascadeCancel(rt, allIDs)
		endCluster(rt, a, cluster)
		return res, string(res)
	}
	children, res, reason := waitForChildren(rt, a, allIDs)
	if res != action.ResultOK {
		cascadeCancel(rt, allIDs)
		endCluster(rt, a, cluster)
		return res, reason
	}

	cluster.ProfileID = newProfileID
	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCheckStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	failed := countByStatus(children, types.ActionFailed)
	if failed > 0 {
		return action.ResultError, fmt.Sprintf("%d of %d node updates failed", failed, len(children))
	}
	return action.ResultOK, ""
}
