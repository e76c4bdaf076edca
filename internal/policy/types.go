// Package policy is the priority-ordered BEFORE/AFTER hook pipeline of
// §4.5, grounded on Senlin's policies/base.py Policy class and the
// `policy_check` method of engine/actions/base.py. It decorates action
// data with placement hints, scaling counts and load-balance membership
// changes, and may veto an action by setting CHECK_ERROR.
package policy

import (
	"github.com/cuemby/fleetd/internal/types"
)

// CheckStatus is the outcome a Hook writes to action.Data["status"].
type CheckStatus string

const (
	CheckOK    CheckStatus = "CHECK_OK"
	CheckError CheckStatus = "CHECK_ERROR"
)

// Target is one (WHEN, action-name) pair in a policy type's TARGET set.
type Target struct {
	When   types.PolicyWhen
	Action string
}

// Hook is the flat capability interface every policy type implements
// (§9): no inheritance hierarchy, just {validate, attach, detach, pre_op,
// post_op, need_check}.
type Hook interface {
	// Targets returns the type's declared TARGET set.
	Targets() []Target
	// Singleton reports whether at most one binding of this type may be
	// attached to a cluster at once (§3 ClusterPolicy binding invariant).
	Singleton() bool
	// CooldownS is the type's cooldown window, or 0 for none.
	CooldownS(spec map[string]any) int
	Validate(spec map[string]any) error
	Attach(clusterID string, spec map[string]any) (ok bool, data map[string]any, reason string)
	Detach(clusterID string, spec map[string]any) (ok bool, reason string)
	// PreOp/PostOp run a BEFORE/AFTER hook, reading/writing action.Data.
	PreOp(clusterID string, a *types.Action, spec map[string]any) error
	PostOp(clusterID string, a *types.Action, spec map[string]any) error
}

// NeedCheck is the shared predicate Senlin's Policy.need_check derives
// from the TARGET set: true iff (when, a.Action) is declared.
func NeedCheck(h Hook, when types.PolicyWhen, a *types.Action) bool {
	for _, t := range h.Targets() {
		if t.When == when && t.Action == a.Action {
			return true
		}
	}
	return false
}

// Factory builds a Hook bound to one policy's spec.
type Factory func() Hook

// Registry maps a Policy.Type name to its Factory.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(typeName string, f Factory) { r.factories[typeName] = f }

func (r *Registry) Build(typeName string) (Hook, bool) {
	f, ok := r.factories[typeName]
	if !ok {
		return nil, false
	}
	return f(), true
}

// SetCheckResult writes the outcome of a policy's pre_op/post_op onto the
// action's scratchpad (§3 "data (map, policy scratchpad)").
func SetCheckResult(a *types.Action, status CheckStatus, reason string) {
	if a.Data == nil {
		a.Data = map[string]any{}
	}
	a.Data["status"] = string(status)
	a.Data["reason"] = reason
}

// CheckResult reads back the outcome set by SetCheckResult.
func CheckResult(a *types.Action) (CheckStatus, string) {
	status, _ := a.Data["status"].(string)
	reason, _ := a.Data["reason"].(string)
	if status == "" {
		return CheckOK, ""
	}
	return CheckStatus(status), reason
}
