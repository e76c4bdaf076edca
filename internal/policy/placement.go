package policy

import (
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
)

// nodeProducingVerbs are the verbs that create new nodes and therefore
// need placement hints computed before the NODE_CREATE children spawn
// (§4.5 "Affinity / Zone / Region policies. BEFORE node-producing verbs").
var nodeProducingVerbs = []string{"CLUSTER_CREATE", "CLUSTER_RESIZE", "CLUSTER_SCALE_OUT", "CLUSTER_ADD_NODES"}

// PlacementKind distinguishes the three placement policy flavors, which
// share identical mechanics and differ only in which field of
// action.Data['placement']['placements'][i] they populate.
type PlacementKind string

const (
	PlacementAffinity PlacementKind = "affinity"
	PlacementZone     PlacementKind = "zone"
	PlacementRegion   PlacementKind = "region"
)

// PlacementPolicy computes per-node placement hints for node-producing
// verbs, writing action.Data['placement'] = {count, placements: [...]}
// for the node driver to read (§4.5). Grounded on the distribution
// helpers in senlin/engine/cluster.py (get_region_distribution,
// get_zone_distribution, nodes_by_region/zone), generalized into a single
// policy shape rather than three near-duplicate types.
type PlacementPolicy struct {
	store storage.Store
	kind  PlacementKind
}

func NewPlacementPolicy(store storage.Store, kind PlacementKind) *PlacementPolicy {
	return &PlacementPolicy{store: store, kind: kind}
}

func (p *PlacementPolicy) Targets() []Target {
	targets := make([]Target, 0, len(nodeProducingVerbs))
	for _, v := range nodeProducingVerbs {
		targets = append(targets, Target{When: types.Before, Action: v})
	}
	return targets
}

func (p *PlacementPolicy) Singleton() bool                    { return false }
func (p *PlacementPolicy) CooldownS(spec map[string]any) int  { return 0 }
func (p *PlacementPolicy) Validate(spec map[string]any) error { return nil }

func (p *PlacementPolicy) Attach(clusterID string, spec map[string]any) (bool, map[string]any, string) {
	return true, nil, "attached"
}
func (p *PlacementPolicy) Detach(clusterID string, spec map[string]any) (bool, string) {
	return true, "detached"
}

func (p *PlacementPolicy) PreOp(clusterID string, a *types.Action, spec map[string]any) error {
	count := p.countFromAction(a)
	if count <= 0 {
		SetCheckResult(a, CheckOK, "no placement needed")
		return nil
	}

	candidates := stringsSpec(spec, string(p.kind)+"s")
	dist, err := p.currentDistribution(clusterID, candidates)
	if err != nil {
		return err
	}

	placements := make([]map[string]any, count)
	for i := 0; i < count; i++ {
		target := leastLoaded(candidates, dist)
		dist[target]++
		placements[i] = map[string]any{string(p.kind): target}
	}

	if a.Data == nil {
		a.Data = map[string]any{}
	}
	a.Data["placement"] = map[string]any{"count": count, "placements": placements}
	SetCheckResult(a, CheckOK, "placement computed")
	return nil
}

func (p *PlacementPolicy) PostOp(clusterID string, a *types.Action, spec map[string]any) error {
	return nil
}

// countFromAction reads the node count a scaling/creation policy already
// decided on (action.Data['creation']['count'], or the cluster's
// desired_capacity on a fresh CLUSTER_CREATE).
func (p *PlacementPolicy) countFromAction(a *types.Action) int {
	if creation, ok := a.Data["creation"].(map[string]any); ok {
		if n, ok := toIntAny(creation["count"]); ok {
			return n
		}
	}
	if n, ok := toIntAny(a.Inputs["desired_capacity"]); ok {
		return n
	}
	if a.Action == "CLUSTER_CREATE" {
		if c, err := p.store.GetCluster(a.Target); err == nil {
			return c.DesiredCapacity
		}
	}
	return 0
}

func (p *PlacementPolicy) currentDistribution(clusterID string, candidates []string) (map[string]int, error) {
	dist := make(map[string]int, len(candidates))
	for _, c := range candidates {
		dist[c] = 0
	}
	nodes, err := p.store.ListNodesByCluster(clusterID)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		placement, _ := n.Data["placement"].(map[string]any)
		if placement == nil {
			continue
		}
		if v, ok := placement[string(p.kind)].(string); ok {
			dist[v]++
		}
	}
	return dist, nil
}

// leastLoaded returns the candidate with the fewest nodes, breaking ties
// by order in the candidates list (stable, deterministic).
func leastLoaded(candidates []string, dist map[string]int) string {
	if len(candidates) == 0 {
		return ""
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if dist[c] < dist[best] {
			best = c
		}
	}
	return best
}

func stringsSpec(spec map[string]any, key string) []string {
	raw, ok := spec[key]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
