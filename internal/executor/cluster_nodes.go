package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
)

// clusterAddNodes is CLUSTER_ADD_NODES (§4.4): adopts existing orphan
// nodes into the cluster via NODE_JOIN children, after validating each is
// an orphan of a matching profile type.
type clusterAddNodes struct{}

func (clusterAddNodes) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	cluster.Status = types.ClusterUpdating
	_ = rt.Store.UpdateCluster(cluster)

	profile, err := rt.Store.GetProfile(cluster.ProfileID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	nodeIDs := stringSlice(a.Inputs["node_ids"])
	childIDs := make([]string, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		node, err := rt.Store.GetNode(nodeID)
		if err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, fmt.Sprintf("node %s: %v", nodeID, err)
		}
		if node.ClusterID != "" {
			endCluster(rt, a, cluster)
			return action.ResultError, fmt.Sprintf("node %s already belongs to cluster %s", nodeID, node.ClusterID)
		}
		nodeProfile, err := rt.Store.GetProfile(node.ProfileID)
		if err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, err.Error()
		}
		if nodeProfile.Type != profile.Type {
			endCluster(rt, a, cluster)
			return action.ResultError, fmt.Sprintf("node %s profile type %q does not match cluster profile type %q", nodeID, nodeProfile.Type, profile.Type)
		}
		child, err := spawnChild(rt, a, "NODE_JOIN", nodeID, map[string]any{"cluster_id": cluster.ID})
		if err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, err.Error()
		}
		childIDs = append(childIDs, child.ID)
	}

	if res, stop := yield(rt, a); stop {
		cascadeCancel(rt, childIDs)
		endCluster(rt, a, cluster)
		return res, string(res)
	}
	children, res, reason := waitForChildren(rt, a, childIDs)
	if res != action.ResultOK {
		cascadeCancel(rt, childIDs)
		endCluster(rt, a, cluster)
		return res, reason
	}

	joined := countByStatus(children, types.ActionSucceeded)
	cluster.DesiredCapacity += joined
	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCheckStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	if joined < len(children) {
		return action.ResultError, fmt.Sprintf("%d of %d node joins failed", len(children)-joined, len(children))
	}
	return action.ResultOK, ""
}

// clusterDelNodes is CLUSTER_DEL_NODES: symmetric to ADD_NODES, honoring
// action.data['deletion']['destroy_after_deletion'] to choose NODE_LEAVE
// (default) vs NODE_DELETE (§4.4).
type clusterDelNodes struct{}

func (clusterDelNodes) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	cluster.Status = types.ClusterUpdating
	_ = rt.Store.UpdateCluster(cluster)

	destroy := false
	if deletion, ok := a.Data["deletion"].(map[string]any); ok {
		if v, ok := deletion["destroy_after_deletion"].(bool); ok {
			destroy = v
		}
	}
	verb := "NODE_LEAVE"
	if destroy {
		verb = "NODE_DELETE"
	}

	nodeIDs := stringSlice(a.Inputs["node_ids"])
	childIDs := make([]string, 0, len(nodeIDs))
	for _, nodeID := range nodeIDs {
		child, err := spawnChild(rt, a, verb, nodeID, nil)
		if err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, err.Error()
		}
		childIDs = append(childIDs, child.ID)
	}

	if res, stop := yield(rt, a); stop {
		cascadeCancel(rt, childIDs)
		endCluster(rt, a, cluster)
		return res, string(res)
	}
	children, res, reason := waitForChildren(rt, a, childIDs)
	if res != action.ResultOK {
		cascadeCancel(rt, childIDs)
		endCluster(rt, a, cluster)
		return res, reason
	}

	removed := countByStatus(children, types.ActionSucceeded)
	cluster.DesiredCapacity -= removed
	if cluster.DesiredCapacity < 0 {
		cluster.DesiredCapacity = 0
	}
	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCheckStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	if removed < len(children) {
		return action.ResultError, fmt.Sprintf("%d of %d node removals failed", len(children)-removed, len(children))
	}
	return action.ResultOK, ""
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
