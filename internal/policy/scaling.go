package policy

import (
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
)

// AdjustmentType mirrors the consts.ADJUSTMENT_TYPES of scaling_out_policy.py
// and spec.md §4.4's CLUSTER_RESIZE adjustment_type.
type AdjustmentType string

const (
	ExactCapacity        AdjustmentType = "EXACT_CAPACITY"
	ChangeInCapacity     AdjustmentType = "CHANGE_IN_CAPACITY"
	ChangeInPercentage   AdjustmentType = "CHANGE_IN_PERCENTAGE"
)

// ScalingPolicy is the Scaling-out/Scaling-in policy of §4.5: BEFORE
// CLUSTER_SCALE_OUT/IN, it resolves the adjustment into a positive count
// and vetoes if the result would violate max_size/min_size without
// best_effort. Grounded on senlin/policies/scaling_out_policy.py,
// generalized to cover scale-in symmetrically (the original has a
// matching scaling_in_policy.py not included in the retrieval pack, but
// its shape is the mirror image of scaling-out).
type ScalingPolicy struct {
	store     storage.Store
	direction types.PolicyWhen // unused; kept for symmetry with other hooks
	scaleIn   bool
}

func NewScaleOutPolicy(store storage.Store) *ScalingPolicy { return &ScalingPolicy{store: store} }
func NewScaleInPolicy(store storage.Store) *ScalingPolicy {
	return &ScalingPolicy{store: store, scaleIn: true}
}

func (p *ScalingPolicy) Targets() []Target {
	if p.scaleIn {
		return []Target{{When: types.Before, Action: "CLUSTER_SCALE_IN"}}
	}
	return []Target{{When: types.Before, Action: "CLUSTER_SCALE_OUT"}}
}

func (p *ScalingPolicy) Singleton() bool        { return true }
func (p *ScalingPolicy) CooldownS(spec map[string]any) int { return intSpec(spec, "cooldown", 0) }

func (p *ScalingPolicy) Validate(spec map[string]any) error { return nil }

func (p *ScalingPolicy) Attach(clusterID string, spec map[string]any) (bool, map[string]any, string) {
	return true, nil, "attached"
}
func (p *ScalingPolicy) Detach(clusterID string, spec map[string]any) (bool, string) {
	return true, "detached"
}

func (p *ScalingPolicy) PreOp(clusterID string, a *types.Action, spec map[string]any) error {
	cluster, err := p.store.GetCluster(clusterID)
	if err != nil {
		return err
	}
	nodes, err := p.store.ListNodesByCluster(clusterID)
	if err != nil {
		return err
	}
	current := len(nodes)

	adjType := AdjustmentType(stringSpec(spec, "adjustment.type", string(ChangeInCapacity)))
	number := floatSpec(spec, "adjustment.number", 1)
	minStep := intSpec(spec, "adjustment.min_step", 1)
	bestEffort := boolSpec(spec, "adjustment.best_effort", false)

	var count int
	switch adjType {
	case ExactCapacity:
		count = int(number) - current
	case ChangeInCapacity:
		count = int(number)
	case ChangeInPercentage:
		count = int(number * float64(current) / 100.0)
		if count < minStep {
			count = minStep
		}
	default:
		count = int(number)
	}
	if p.scaleIn {
		count = -count
	}
	if raw, ok := a.Inputs["count"]; ok {
		if n, ok := toIntAny(raw); ok {
			count = n
			if p.scaleIn {
				count = -n
			}
		}
	}

	key := "creation"
	if p.scaleIn {
		key = "deletion"
	}

	switch {
	case count < 0 && !p.scaleIn:
		SetCheckResult(a, CheckError, "ScalingOutPolicy generates a negative count for scaling out operation")
		return nil
	case !p.scaleIn && current+count > cluster.MaxSize && cluster.MaxSize != types.Unbounded:
		if !bestEffort {
			SetCheckResult(a, CheckError, "Attempted scaling exceeds maximum size")
			return nil
		}
		count = cluster.MaxSize - current
		SetCheckResult(a, CheckOK, "Do best effort scaling")
	case p.scaleIn && current+count < cluster.MinSize:
		if !bestEffort {
			SetCheckResult(a, CheckError, "Attempted scaling exceeds minimum size")
			return nil
		}
		count = cluster.MinSize - current
		SetCheckResult(a, CheckOK, "Do best effort scaling")
	default:
		SetCheckResult(a, CheckOK, "Scaling request validated")
	}

	if a.Data == nil {
		a.Data = map[string]any{}
	}
	a.Data[key] = map[string]any{"count": abs(count)}
	return nil
}

func (p *ScalingPolicy) PostOp(clusterID string, a *types.Action, spec map[string]any) error {
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func toIntAny(v any) (int, bool) {
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

func stringSpec(spec map[string]any, dotted string, fallback string) string {
	v, ok := lookupDotted(spec, dotted)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

func floatSpec(spec map[string]any, dotted string, fallback float64) float64 {
	v, ok := lookupDotted(spec, dotted)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return fallback
}

func intSpec(spec map[string]any, dotted string, fallback int) int {
	return int(floatSpec(spec, dotted, float64(fallback)))
}

func boolSpec(spec map[string]any, dotted string, fallback bool) bool {
	v, ok := lookupDotted(spec, dotted)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// lookupDotted resolves "a.b" against nested map[string]any specs, the
// shape a YAML-decoded Policy.Spec naturally takes.
func lookupDotted(spec map[string]any, dotted string) (any, bool) {
	cur := any(spec)
	for _, part := range splitDot(dotted) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitDot(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
