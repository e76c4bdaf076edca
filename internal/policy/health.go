package policy

import (
	"github.com/cuemby/fleetd/internal/types"
)

// HealthManager is the subset of the health manager (§4.6) the Health
// policy calls into; kept as a narrow interface here so internal/policy
// doesn't import internal/health directly.
type HealthManager interface {
	Disable(clusterID string)
	Enable(clusterID string)
	Register(clusterID string, checkType types.HealthCheckType, intervalS int, params map[string]any) error
}

// memberRemovingVerbs is the set of verbs that remove cluster members,
// per §4.5 "BEFORE any verb that removes members (SCALE_IN, DEL_NODES,
// RESIZE-shrink, NODE_DELETE)".
var memberRemovingVerbs = map[string]bool{
	"CLUSTER_SCALE_IN":  true,
	"CLUSTER_DEL_NODES": true,
	"CLUSTER_RESIZE":    true,
	"NODE_DELETE":       true,
}

// HealthPolicy disables health checking before a shrink operation and
// re-enables it after, so the health manager doesn't race a voluntary
// node removal with a recover request (§4.5, §4.6). Grounded on
// senlin/policies/health_policy.py and engine/health_manager.py's
// enable_cluster/disable_cluster RPCs.
type HealthPolicy struct {
	hm HealthManager
}

func NewHealthPolicy(hm HealthManager) *HealthPolicy { return &HealthPolicy{hm: hm} }

func (p *HealthPolicy) Targets() []Target {
	targets := make([]Target, 0, len(memberRemovingVerbs)*2)
	for verb := range memberRemovingVerbs {
		targets = append(targets, Target{When: types.Before, Action: verb})
		targets = append(targets, Target{When: types.After, Action: verb})
	}
	return targets
}

func (p *HealthPolicy) Singleton() bool                    { return true }
func (p *HealthPolicy) CooldownS(spec map[string]any) int  { return 0 }
func (p *HealthPolicy) Validate(spec map[string]any) error { return nil }

func (p *HealthPolicy) Attach(clusterID string, spec map[string]any) (bool, map[string]any, string) {
	checkType := types.HealthCheckType(stringSpec(spec, "detection.type", string(types.NodeStatusPolling)))
	interval := intSpec(spec, "detection.interval", 60)
	if p.hm != nil {
		if err := p.hm.Register(clusterID, checkType, interval, nil); err != nil {
			return false, nil, err.Error()
		}
	}
	return true, nil, "attached"
}

func (p *HealthPolicy) Detach(clusterID string, spec map[string]any) (bool, string) {
	return true, "detached"
}

func (p *HealthPolicy) PreOp(clusterID string, a *types.Action, spec map[string]any) error {
	if p.hm != nil {
		p.hm.Disable(clusterID)
	}
	SetCheckResult(a, CheckOK, "health checking disabled during shrink")
	return nil
}

func (p *HealthPolicy) PostOp(clusterID string, a *types.Action, spec map[string]any) error {
	if p.hm != nil {
		p.hm.Enable(clusterID)
	}
	SetCheckResult(a, CheckOK, "health checking re-enabled")
	return nil
}
