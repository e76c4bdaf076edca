package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/policy"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/google/uuid"
)

// clusterExecutorFor maps a CLUSTER_* verb to its state machine (§4.4).
func clusterExecutorFor(verb string) (Executor, error) {
	switch verb {
	case "CLUSTER_CREATE":
		return clusterCreate{}, nil
	case "CLUSTER_DELETE":
		return clusterDelete{}, nil
	case "CLUSTER_RESIZE", "CLUSTER_SCALE_OUT", "CLUSTER_SCALE_IN":
		return clusterResize{}, nil
	case "CLUSTER_ADD_NODES":
		return clusterAddNodes{}, nil
	case "CLUSTER_DEL_NODES":
		return clusterDelNodes{}, nil
	case "CLUSTER_CHECK", "CLUSTER_RECOVER":
		return clusterCheck{}, nil
	case "CLUSTER_UPDATE":
		return clusterUpdate{}, nil
	case "CLUSTER_ATTACH_POLICY", "CLUSTER_DETACH_POLICY", "CLUSTER_UPDATE_POLICY":
		return clusterPolicyBinding{}, nil
	default:
		return nil, fmt.Errorf("executor: unknown cluster verb %q", verb)
	}
}

// lockScope is EXCLUSIVE for every destructive verb and SHARED for the
// read-only ones named in §4.2 (CLUSTER_CHECK and CLUSTER_ADD_NODES when
// the binding disables quorum — the latter nuance isn't modeled, so
// ADD_NODES takes EXCLUSIVE like every other mutating verb).
func lockScope(verb string) types.LockSemantics {
	if verb == "CLUSTER_CHECK" {
		return types.Shared
	}
	return types.Exclusive
}

// beginCluster runs steps (1)-(3) of the common structure: acquire the
// cluster lock, run policy_check BEFORE, and fail unless the check passed
// or the action's best_effort input is true. It returns the loaded
// cluster, ready for the body to mutate and persist.
func beginCluster(rt *Runtime, a *types.Action) (*types.Cluster, action.Result, string) {
	if err := rt.Locks.AcquireCluster(a.Target, a.ID, lockScope(a.Action)); err != nil {
		return nil, action.ResultRetry, "lock contention"
	}

	cluster, err := rt.Store.GetCluster(a.Target)
	if err != nil {
		rt.Locks.ReleaseCluster(a.Target, a.ID)
		return nil, action.ResultError, err.Error()
	}

	if err := rt.Policies.Check(a.Target, types.Before, a); err != nil {
		rt.Locks.ReleaseCluster(a.Target, a.ID)
		return nil, action.ResultError, err.Error()
	}
	if status, reason := policy.CheckResult(a); status == policy.CheckError {
		if bestEffort, _ := a.Inputs["best_effort"].(bool); !bestEffort {
			rt.Locks.ReleaseCluster(a.Target, a.ID)
			return nil, action.ResultError, reason
		}
	}
	return cluster, action.ResultOK, ""
}

// endCluster runs steps (5)-(6): policy_check AFTER, persist the cluster,
// and release the lock. Called regardless of the body's outcome so the
// lock is never leaked.
func endCluster(rt *Runtime, a *types.Action, cluster *types.Cluster) {
	_ = rt.Policies.Check(a.Target, types.After, a)
	_ = rt.Store.UpdateCluster(cluster)
	rt.Locks.ReleaseCluster(a.Target, a.ID)
}

// spawnChild creates an independent, immediately-READY child action for
// the given node id and verb. Children are siblings of each other, not
// gated on the spawning cluster-action's own completion (depends_on
// there would deadlock the promotion rule, since the cluster-action only
// succeeds once its children do) — see DESIGN.md's fan-out decision.
func spawnChild(rt *Runtime, parent *types.Action, verb, targetNodeID string, inputs map[string]any) (*types.Action, error) {
	child := &types.Action{
		Name:     verb + " " + targetNodeID,
		Target:   targetNodeID,
		Action:   verb,
		Cause:    types.CauseDerivedAction,
		TimeoutS: parent.TimeoutS,
		Inputs:   inputs,
		Data:     map[string]any{"parent_action_id": parent.ID},
	}
	return rt.Actions.Create(child)
}

// cascadeCancel implements the parent-cancellation propagation of
// scenario 4 (§8): running children are signalled CANCEL so their own
// worker unwinds cooperatively; children not yet picked up are failed
// directly with reason "parent cancelled", matching the WAITING->FAILED
// transition's visible effect without relying on the depends_on cascade
// (which fan-out children deliberately don't use, see spawnChild).
func cascadeCancel(rt *Runtime, childIDs []string) {
	for _, id := range childIDs {
		child, err := rt.Actions.Get(id)
		if err != nil || child.Status.Terminal() {
			continue
		}
		if child.Status == types.ActionRunning || child.Status == types.ActionSuspended {
			_ = rt.Actions.Signal(id, action.SignalCancel)
			continue
		}
		_ = rt.Actions.Fail(id, "parent cancelled")
	}
}

// aggregateCreateStatus derives a cluster's status after CLUSTER_CREATE's
// node fan-out, per §7's creation-failure rule: a cluster with zero ACTIVE
// members out of a nonzero desired capacity is ERROR, full stop, regardless
// of min_size.
func aggregateCreateStatus(activeCount, total, minSize int) (types.ClusterStatus, string) {
	switch {
	case total == 0:
		return types.ClusterActive, ""
	case activeCount == total:
		return types.ClusterActive, ""
	case activeCount == 0:
		return types.ClusterError, "all member nodes failed"
	case activeCount >= minSize:
		return types.ClusterWarning, "some member nodes are not ACTIVE"
	default:
		return types.ClusterCritical, "fewer than min_size member nodes are ACTIVE"
	}
}

// aggregateCheckStatus derives a cluster's status after CLUSTER_CHECK /
// CLUSTER_RECOVER, and after membership changes (RESIZE, ADD_NODES,
// DEL_NODES, UPDATE) that re-derive status from the resulting membership,
// per §4.4's CLUSTER_CHECK rule: falling below min_size active members is
// CRITICAL even at zero active, never the ERROR this engine reserves for a
// failed creation.
func aggregateCheckStatus(activeCount, total, minSize int) (types.ClusterStatus, string) {
	switch {
	case total == 0:
		return types.ClusterActive, ""
	case activeCount == total:
		return types.ClusterActive, ""
	case activeCount >= minSize:
		return types.ClusterWarning, "some member nodes are not ACTIVE"
	default:
		return types.ClusterCritical, "fewer than min_size member nodes are ACTIVE"
	}
}

func countActiveNodes(rt *Runtime, clusterID string) (active, total int, err error) {
	nodes, err := rt.Store.ListNodesByCluster(clusterID)
	if err != nil {
		return 0, 0, err
	}
	total = len(nodes)
	for _, n := range nodes {
		if n.Status == types.NodeActive {
			active++
		}
	}
	return active, total, nil
}

// clusterCreate is CLUSTER_CREATE (§4.4): cluster must be INIT, spawns
// desired_capacity parallel NODE_CREATE children.
type clusterCreate struct{}

func (clusterCreate) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	if cluster.Status != types.ClusterInit {
		rt.Locks.ReleaseCluster(a.Target, a.ID)
		return action.ResultError, fmt.Sprintf("cluster %s is %s, not INIT", cluster.ID, cluster.Status)
	}

	cluster.Status = types.ClusterCreating
	_ = rt.Store.UpdateCluster(cluster)

	childIDs := make([]string, 0, cluster.DesiredCapacity)
	for i := 0; i < cluster.DesiredCapacity; i++ {
		idx := cluster.NextIndex
		cluster.NextIndex++
		node := &types.Node{
			ID:        uuid.New().String(),
			ClusterID: cluster.ID,
			ProfileID: cluster.ProfileID,
			Index:     idx,
			Status:    types.NodeInit,
		}
		if err := rt.Store.CreateNode(node); err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, err.Error()
		}
		child, err := spawnChild(rt, a, "NODE_CREATE", node.ID, nil)
		if err != nil {
			endCluster(rt, a, cluster)
			return action.ResultError, err.Error()
		}
		childIDs = append(childIDs, child.ID)
	}
	_ = rt.Store.UpdateCluster(cluster)

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

	succeeded := countByStatus(children, types.ActionSucceeded)
	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCreateStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	if succeeded < len(children) {
		return action.ResultError, fmt.Sprintf("%d of %d node creations failed", len(children)-succeeded, len(children))
	}
	return action.ResultOK, ""
}

// clusterDelete is CLUSTER_DELETE: spawns a NODE_DELETE child for every
// member, waits, then removes the cluster row.
type clusterDelete struct{}

func (clusterDelete) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	cluster.Status = types.ClusterDeleting
	_ = rt.Store.UpdateCluster(cluster)

	nodes, err := rt.Store.ListNodesByCluster(cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	childIDs := make([]string, 0, len(nodes))
	for _, n := range nodes {
		child, err := spawnChild(rt, a, "NODE_DELETE", n.ID, nil)
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

	_ = rt.Policies.Check(cluster.ID, types.After, a)
	rt.Locks.ReleaseCluster(cluster.ID, a.ID)
	if err := rt.Store.DeleteCluster(cluster.ID); err != nil {
		return action.ResultError, err.Error()
	}

	failed := countByStatus(children, types.ActionFailed)
	if failed > 0 {
		return action.ResultError, fmt.Sprintf("%d node deletions failed", failed)
	}
	return action.ResultOK, ""
}

// clusterPolicyBinding implements CLUSTER_ATTACH_POLICY / DETACH_POLICY /
// UPDATE_POLICY: no node children, just the ClusterPolicy binding row and
// the type's attach/detach callback (§4.4).
type clusterPolicyBinding struct{}

func (clusterPolicyBinding) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	if err := rt.Locks.AcquireCluster(a.Target, a.ID, types.Exclusive); err != nil {
		return action.ResultRetry, "lock contention"
	}
	defer rt.Locks.ReleaseCluster(a.Target, a.ID)

	policyID, _ := a.Inputs["policy_id"].(string)
	pol, err := rt.Store.GetPolicy(policyID)
	if err != nil {
		return action.ResultError, err.Error()
	}
	hook, ok := rt.Policies.Registry().Build(pol.Type)
	if !ok {
		return action.ResultError, fmt.Sprintf("unknown policy type %q", pol.Type)
	}

	switch a.Action {
	case "CLUSTER_ATTACH_POLICY":
		if hook.Singleton() {
			existing, _ := rt.Store.ListClusterPolicies(a.Target)
			for _, b := range existing {
				if other, err := rt.Store.GetPolicy(b.PolicyID); err == nil && other.Type == pol.Type {
					return action.ResultError, fmt.Sprintf("policy type %q already attached (singleton)", pol.Type)
				}
			}
		}
		ok, data, reason := hook.Attach(a.Target, pol.Spec)
		if !ok {
			return action.ResultError, reason
		}
		priority, _ := toIntFromAny(a.Inputs["priority"])
		binding := &types.ClusterPolicy{ClusterID: a.Target, PolicyID: policyID, Priority: priority, Enabled: true, Data: data}
		if err := rt.Store.CreateClusterPolicy(binding); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""

	case "CLUSTER_DETACH_POLICY":
		ok, reason := hook.Detach(a.Target, pol.Spec)
		if !ok {
			return action.ResultError, reason
		}
		if err := rt.Store.DeleteClusterPolicy(a.Target, policyID); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""

	case "CLUSTER_UPDATE_POLICY":
		binding, err := rt.Store.GetClusterPolicy(a.Target, policyID)
		if err != nil {
			return action.ResultError, err.Error()
		}
		if v, ok := toIntFromAny(a.Inputs["priority"]); ok {
			binding.Priority = v
		}
		if v, ok := a.Inputs["enabled"].(bool); ok {
			binding.Enabled = v
		}
		if err := rt.Store.UpdateClusterPolicy(binding); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	}
	return action.ResultError, "unreachable"
}
