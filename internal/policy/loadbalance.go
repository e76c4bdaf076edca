package policy

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
)

// LBDriver is the narrow external collaborator the Load-balance policy
// speaks to: the DNS-server-group/load-balancer back-end named out of
// scope in spec.md §1 ("load balancers"). The core only needs these four
// verbs.
type LBDriver interface {
	CreateLoadBalancer(ctx context.Context, clusterID string, spec map[string]any) (lbID string, err error)
	AddMember(ctx context.Context, lbID, nodeID, address string) (memberID string, err error)
	RemoveMember(ctx context.Context, lbID, memberID string) error
	DeleteLoadBalancer(ctx context.Context, lbID string) error
}

// memberAddingVerbs produce new cluster members that need to join the LB
// pool (§4.5 "AFTER node-adding verbs: add new members").
var memberAddingVerbs = []string{"CLUSTER_CREATE", "CLUSTER_RESIZE", "CLUSTER_SCALE_OUT", "CLUSTER_ADD_NODES"}

// memberRemovingLBVerbs lists the same verbs as memberRemovingVerbs,
// including NODE_DELETE, per §4.5 ("BEFORE DEL_NODES / NODE_DELETE: remove
// corresponding members").
var memberRemovingLBVerbs = []string{"CLUSTER_DEL_NODES", "CLUSTER_SCALE_IN", "CLUSTER_RESIZE", "NODE_DELETE"}

// LoadBalancePolicy provisions external LB resources on attach and keeps
// cluster membership synced to them. Failure here is non-fatal
// (CHECK_ERROR with reason), not a driver panic (§4.5). Grounded on the
// DNS server-group/ingress back-ends named in spec.md §1's out-of-scope
// list; the Driver interface plays their role.
type LoadBalancePolicy struct {
	store storage.Store
	lb    LBDriver
}

func NewLoadBalancePolicy(store storage.Store, lb LBDriver) *LoadBalancePolicy {
	return &LoadBalancePolicy{store: store, lb: lb}
}

func (p *LoadBalancePolicy) Targets() []Target {
	var targets []Target
	for _, v := range memberAddingVerbs {
		targets = append(targets, Target{When: types.After, Action: v})
	}
	for _, v := range memberRemovingLBVerbs {
		targets = append(targets, Target{When: types.Before, Action: v})
	}
	return targets
}

func (p *LoadBalancePolicy) Singleton() bool                    { return true }
func (p *LoadBalancePolicy) CooldownS(spec map[string]any) int  { return 0 }
func (p *LoadBalancePolicy) Validate(spec map[string]any) error { return nil }

func (p *LoadBalancePolicy) Attach(clusterID string, spec map[string]any) (bool, map[string]any, string) {
	ctx := context.Background()
	lbID, err := p.lb.CreateLoadBalancer(ctx, clusterID, spec)
	if err != nil {
		return false, nil, fmt.Sprintf("failed to create load balancer: %v", err)
	}
	members := map[string]string{}
	nodes, err := p.store.ListNodesByCluster(clusterID)
	if err == nil {
		for _, n := range nodes {
			addr, _ := n.Data["address"].(string)
			memberID, err := p.lb.AddMember(ctx, lbID, n.ID, addr)
			if err == nil {
				members[n.ID] = memberID
			}
		}
	}
	data := map[string]any{"lb_id": lbID, "members": members}
	return true, data, "load balancer provisioned"
}

func (p *LoadBalancePolicy) Detach(clusterID string, spec map[string]any) (bool, string) {
	return true, "detached; external LB resources reclaimed by caller"
}

func (p *LoadBalancePolicy) PreOp(clusterID string, a *types.Action, spec map[string]any) error {
	binding, err := p.bindingData(clusterID)
	if err != nil {
		SetCheckResult(a, CheckError, err.Error())
		return nil
	}
	lbID, _ := binding["lb_id"].(string)
	members, _ := binding["members"].(map[string]any)

	victims := victimNodeIDs(a)
	ctx := context.Background()
	for _, nodeID := range victims {
		memberID, ok := members[nodeID].(string)
		if !ok {
			continue
		}
		if err := p.lb.RemoveMember(ctx, lbID, memberID); err != nil {
			SetCheckResult(a, CheckError, fmt.Sprintf("failed to remove LB member for node %s: %v", nodeID, err))
			return nil
		}
		delete(members, nodeID)
	}
	SetCheckResult(a, CheckOK, "load balancer members removed")
	return nil
}

func (p *LoadBalancePolicy) PostOp(clusterID string, a *types.Action, spec map[string]any) error {
	binding, err := p.bindingData(clusterID)
	if err != nil {
		SetCheckResult(a, CheckError, err.Error())
		return nil
	}
	lbID, _ := binding["lb_id"].(string)

	nodes, err := p.store.ListNodesByCluster(clusterID)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, n := range nodes {
		addr, _ := n.Data["address"].(string)
		memberID, err := p.lb.AddMember(ctx, lbID, n.ID, addr)
		if err != nil {
			continue
		}
		if binding["members"] == nil {
			binding["members"] = map[string]any{}
		}
		binding["members"].(map[string]any)[n.ID] = memberID
	}
	SetCheckResult(a, CheckOK, "load balancer members added")
	return nil
}

func (p *LoadBalancePolicy) bindingData(clusterID string) (map[string]any, error) {
	bindings, err := p.store.ListClusterPolicies(clusterID)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		if _, ok := b.Data["lb_id"]; ok {
			return b.Data, nil
		}
	}
	return nil, fmt.Errorf("no load-balance binding found for cluster %s", clusterID)
}

// victimNodeIDs reads the node ids named for removal: action.data
// ['deletion']['node_ids'] when set, else CLUSTER_DEL_NODES's node_ids
// input, or NODE_DELETE's own target as the single victim. SCALE_IN and
// RESIZE choose their victims in the executor body, after this BEFORE
// hook, so for them it returns nil unless deletion.node_ids was supplied.
func victimNodeIDs(a *types.Action) []string {
	if a.Action == "NODE_DELETE" {
		return []string{a.Target}
	}
	raw := a.Inputs["node_ids"]
	if deletion, ok := a.Data["deletion"].(map[string]any); ok && deletion["node_ids"] != nil {
		raw = deletion["node_ids"]
	}
	if ids, ok := raw.([]string); ok {
		return ids
	}
	if ids, ok := raw.([]any); ok {
		out := make([]string, 0, len(ids))
		for _, v := range ids {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
