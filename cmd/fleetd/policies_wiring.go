package main

import (
	"context"

	"github.com/cuemby/fleetd/internal/engine"
	"github.com/cuemby/fleetd/internal/policy"
)

// registerPolicyTypes wires the representative policy types of §4.5 into
// the engine's policy registry under the type names the REST v1 create
// handler accepts in policy.type.
func registerPolicyTypes(e *engine.Engine) {
	store := e.Store()
	e.Policies.Register("scaling_out", func() policy.Hook { return policy.NewScaleOutPolicy(store) })
	e.Policies.Register("scaling_in", func() policy.Hook { return policy.NewScaleInPolicy(store) })
	e.Policies.Register("placement_affinity", func() policy.Hook { return policy.NewPlacementPolicy(store, policy.PlacementAffinity) })
	e.Policies.Register("placement_zone", func() policy.Hook { return policy.NewPlacementPolicy(store, policy.PlacementZone) })
	e.Policies.Register("placement_region", func() policy.Hook { return policy.NewPlacementPolicy(store, policy.PlacementRegion) })
	e.Policies.Register("load_balance", func() policy.Hook { return policy.NewLoadBalancePolicy(store, noopLB{}) })
	e.Policies.Register("health", func() policy.Hook { return policy.NewHealthPolicy(e.Health()) })
}

// noopLB is the load-balance policy's external collaborator when no real
// load-balancer back-end is configured (spec.md §1 places load balancers
// out of core scope); it logs nothing and simply hands back synthetic
// ids so the policy's attach/detach bookkeeping still exercises its
// member-tracking logic end to end.
type noopLB struct{}

func (noopLB) CreateLoadBalancer(ctx context.Context, clusterID string, spec map[string]any) (string, error) {
	return "lb-" + clusterID, nil
}

func (noopLB) AddMember(ctx context.Context, lbID, nodeID, address string) (string, error) {
	return "member-" + nodeID, nil
}

func (noopLB) RemoveMember(ctx context.Context, lbID, memberID string) error { return nil }

func (noopLB) DeleteLoadBalancer(ctx context.Context, lbID string) error { return nil }
