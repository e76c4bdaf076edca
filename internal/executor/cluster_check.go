package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
)

// clusterCheck implements CLUSTER_CHECK and CLUSTER_RECOVER (§4.4):
// fan out NODE_CHECK/NODE_RECOVER children to every member, then
// aggregate node statuses into a cluster status.
type clusterCheck struct{}

func (clusterCheck) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	if a.Action == "CLUSTER_RECOVER" {
		cluster.Status = types.ClusterRecovering
	} else {
		cluster.Status = types.ClusterChecking
	}
	_ = rt.Store.UpdateCluster(cluster)

	nodes, err := rt.Store.ListNodesByCluster(cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	verb := "NODE_CHECK"
	if a.Action == "CLUSTER_RECOVER" {
		verb = "NODE_RECOVER"
	}
	childIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		child, err := spawnChild(rt, a, verb, n.ID, a.Inputs)
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
	_, res, reason = waitForChildren(rt, a, childIDs)
	if res != action.ResultOK {
		cascadeCancel(rt, childIDs)
		endCluster(rt, a, cluster)
		return res, reason
	}

	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCheckStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	if cluster.Status == types.ClusterCritical {
		return action.ResultError, fmt.Sprintf("cluster below min_size: %d/%d nodes active", active, total)
	}
	return action.ResultOK, ""
}
