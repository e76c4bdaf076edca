package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/google/uuid"
)

// clusterResize implements CLUSTER_RESIZE and its thin CLUSTER_SCALE_OUT /
// CLUSTER_SCALE_IN wrappers (§4.4): compute a signed node-count delta,
// clamp it to [min_size, max_size], and spawn the matching NODE_CREATE or
// NODE_DELETE children.
type clusterResize struct{}

func (clusterResize) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	cluster, res, reason := beginCluster(rt, a)
	if res != action.ResultOK {
		return res, reason
	}
	cluster.Status = types.ClusterResizing
	_ = rt.Store.UpdateCluster(cluster)

	nodes, err := rt.Store.ListNodesByCluster(cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	current := len(nodes)

	delta, strict, minSize, maxSize, err := resolveAdjustment(a, cluster, current)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	target := current + delta
	clamped := target
	if clamped < minSize {
		clamped = minSize
	}
	if maxSize != types.Unbounded && clamped > maxSize {
		clamped = maxSize
	}
	if clamped != target && strict {
		endCluster(rt, a, cluster)
		return action.ResultError, "resize requires clamping desired_capacity under strict mode"
	}
	delta = clamped - current

	var childIDs []string
	switch {
	case delta > 0:
		childIDs, err = growCluster(rt, a, cluster, delta)
	case delta < 0:
		childIDs, err = shrinkCluster(rt, a, cluster, nodes, -delta)
	}
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}

	cluster.DesiredCapacity = clamped
	if v, ok := toIntFromAny(a.Inputs["min_size"]); ok {
		cluster.MinSize = v
	}
	if v, ok := toIntFromAny(a.Inputs["max_size"]); ok {
		cluster.MaxSize = v
	}
	_ = rt.Store.UpdateCluster(cluster)

	if len(childIDs) == 0 {
		endCluster(rt, a, cluster)
		return action.ResultOK, ""
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

	active, total, err := countActiveNodes(rt, cluster.ID)
	if err != nil {
		endCluster(rt, a, cluster)
		return action.ResultError, err.Error()
	}
	cluster.Status, cluster.StatusReason = aggregateCheckStatus(active, total, cluster.MinSize)
	endCluster(rt, a, cluster)

	failed := countByStatus(children, types.ActionFailed)
	if failed > 0 {
		return action.ResultError, fmt.Sprintf("%d of %d node operations failed", failed, len(children))
	}
	return action.ResultOK, ""
}

// resolveAdjustment computes the signed delta and the min/max bounds a
// resize must respect, per §4.4's RESIZE body and its SCALE_OUT/SCALE_IN
// wrapper note (a Scaling policy may already have written
// action.data['creation'|'deletion']['count']).
func resolveAdjustment(a *types.Action, cluster *types.Cluster, current int) (delta int, strict bool, minSize, maxSize int, err error) {
	minSize, maxSize = cluster.MinSize, cluster.MaxSize

	switch a.Action {
	case "CLUSTER_SCALE_OUT":
		if creation, ok := a.Data["creation"].(map[string]any); ok {
			if n, ok := toIntFromAny(creation["count"]); ok {
				return n, false, minSize, maxSize, nil
			}
		}
		n, _ := toIntFromAny(a.Inputs["count"])
		if n == 0 {
			n = 1
		}
		return n, false, minSize, maxSize, nil

	case "CLUSTER_SCALE_IN":
		if deletion, ok := a.Data["deletion"].(map[string]any); ok {
			if n, ok := toIntFromAny(deletion["count"]); ok {
				return -n, false, minSize, maxSize, nil
			}
		}
		n, _ := toIntFromAny(a.Inputs["count"])
		if n == 0 {
			n = 1
		}
		return -n, false, minSize, maxSize, nil

	default: // CLUSTER_RESIZE
		adjType, _ := a.Inputs["adjustment_type"].(string)
		number, _ := toFloatFromAny(a.Inputs["number"])
		minStep, ok := toIntFromAny(a.Inputs["min_step"])
		if !ok {
			minStep = 1
		}
		strict, _ = a.Inputs["strict"].(bool)
		if v, ok := toIntFromAny(a.Inputs["min_size"]); ok {
			minSize = v
		}
		if v, ok := toIntFromAny(a.Inputs["max_size"]); ok {
			maxSize = v
		}

		switch adjType {
		case "EXACT_CAPACITY":
			n, ok := toIntFromAny(number)
			if !ok {
				return 0, strict, minSize, maxSize, fmt.Errorf("invalid number for EXACT_CAPACITY")
			}
			return n - current, strict, minSize, maxSize, nil
		case "CHANGE_IN_PERCENTAGE":
			d := int(number * float64(current) / 100.0)
			if d == 0 {
				d = minStep
			}
			if d < 0 && -d < minStep {
				d = -minStep
			}
			if d > 0 && d < minStep {
				d = minStep
			}
			return d, strict, minSize, maxSize, nil
		case "CHANGE_IN_CAPACITY", "":
			n, _ := toIntFromAny(number)
			return n, strict, minSize, maxSize, nil
		default:
			return 0, strict, minSize, maxSize, fmt.Errorf("unknown adjustment_type %q", adjType)
		}
	}
}

func growCluster(rt *Runtime, a *types.Action, cluster *types.Cluster, count int) ([]string, error) {
	childIDs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		idx := cluster.NextIndex
		cluster.NextIndex++
		node := &types.Node{ID: uuid.New().String(), ClusterID: cluster.ID, ProfileID: cluster.ProfileID, Index: idx, Status: types.NodeInit}
		if err := rt.Store.CreateNode(node); err != nil {
			return childIDs, err
		}
		child, err := spawnChild(rt, a, "NODE_CREATE", node.ID, nil)
		if err != nil {
			return childIDs, err
		}
		childIDs = append(childIDs, child.ID)
	}
	return childIDs, nil
}

// shrinkCluster selects count victim nodes (policy-supplied candidates
// from action.data['deletion']['candidates'] if present, else oldest-first
// by created_at per §4.4's victim-selection rule) and spawns their
// NODE_DELETE children.
func shrinkCluster(rt *Runtime, a *types.Action, cluster *types.Cluster, nodes []*types.Node, count int) ([]string, error) {
	victims := victimCandidates(a, nodes)
	if count > len(victims) {
		count = len(victims)
	}
	childIDs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		child, err := spawnChild(rt, a, "NODE_DELETE", victims[i].ID, nil)
		if err != nil {
			return childIDs, err
		}
		childIDs = append(childIDs, child.ID)
	}
	return childIDs, nil
}

func victimCandidates(a *types.Action, nodes []*types.Node) []*types.Node {
	if deletion, ok := a.Data["deletion"].(map[string]any); ok {
		if rawIDs, ok := deletion["candidates"].([]any); ok && len(rawIDs) > 0 {
			byID := make(map[string]*types.Node, len(nodes))
			for _, n := range nodes {
				byID[n.ID] = n
			}
			out := make([]*types.Node, 0, len(rawIDs))
			for _, raw := range rawIDs {
				if id, ok := raw.(string); ok {
					if n, ok := byID[id]; ok {
						out = append(out, n)
					}
				}
			}
			return out
		}
	}
	ordered := append([]*types.Node(nil), nodes...)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

func toIntFromAny(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// toStringMapFromAny coerces a map[string]string input to its JSON
// round-tripped shape: Actions persisted via the bbolt store and reloaded
// come back as map[string]any with string values, not map[string]string.
func toStringMapFromAny(v any) (map[string]string, bool) {
	switch m := v.(type) {
	case map[string]string:
		return m, true
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, raw := range m {
			s, ok := raw.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

func toFloatFromAny(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
