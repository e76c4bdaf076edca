package policy

import (
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/metrics"
)

// Engine runs the policy_check pipeline of §4.5 over a cluster's enabled
// bindings, in priority order.
type Engine struct {
	store    storage.Store
	registry *Registry
	broker   *events.Broker
}

func NewEngine(store storage.Store, registry *Registry, broker *events.Broker) *Engine {
	return &Engine{store: store, registry: registry, broker: broker}
}

// Registry exposes the policy-type registry so callers that need to build
// a Hook directly (e.g. the ATTACH/DETACH executor) don't need their own
// copy wired through separately.
func (e *Engine) Registry() *Registry { return e.registry }

// Check runs policy_check(cluster_id, when) over every enabled binding
// sorted by priority ascending (§4.5 steps 1-4). It mutates a.Data in
// place and returns nil even on CHECK_ERROR — callers inspect
// policy.CheckResult(a) to decide whether to fail the action.
func (e *Engine) Check(clusterID string, when types.PolicyWhen, a *types.Action) error {
	bindings, err := e.store.ListClusterPolicies(clusterID)
	if err != nil {
		return err
	}
	enabled := make([]*types.ClusterPolicy, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled {
			enabled = append(enabled, b)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Priority < enabled[j].Priority })

	SetCheckResult(a, CheckOK, "Completed policy checking.")

	now := time.Now().UTC()
	logger := log.WithComponent("policy-engine").With().Str("cluster_id", clusterID).Str("when", string(when)).Logger()

	for _, b := range enabled {
		pol, err := e.store.GetPolicy(b.PolicyID)
		if err != nil {
			return err
		}
		hook, ok := e.registry.Build(pol.Type)
		if !ok {
			logger.Warn().Str("policy_type", pol.Type).Msg("unknown policy type, skipping")
			continue
		}

		// §4.5 step 4 footnote: last_op is stamped for every enabled
		// binding on AFTER, regardless of whether that policy fired
		// (§9 Open Question (c), preserved verbatim).
		if when == types.After {
			defer e.stampLastOp(b, now)
		}

		if !NeedCheck(hook, when, a) {
			continue
		}

		if cooldown := hook.CooldownS(pol.Spec); cooldown > 0 {
			if now.Sub(b.LastOp) < time.Duration(cooldown)*time.Second {
				SetCheckResult(a, CheckError, "cooldown in progress")
				metrics.CooldownSkipsTotal.WithLabelValues(pol.Type).Inc()
				return nil
			}
		}

		var opErr error
		if when == types.Before {
			opErr = hook.PreOp(clusterID, a, pol.Spec)
		} else {
			opErr = hook.PostOp(clusterID, a, pol.Spec)
		}
		if opErr != nil {
			SetCheckResult(a, CheckError, opErr.Error())
			return nil
		}

		status, reason := CheckResult(a)
		e.emitCheck(a, pol, status, reason)
		if status == CheckError {
			metrics.PolicyCheckErrorsTotal.WithLabelValues(pol.Type, reason).Inc()
			return nil
		}
	}
	return nil
}

func (e *Engine) stampLastOp(b *types.ClusterPolicy, now time.Time) {
	b.LastOp = now
	_ = e.store.UpdateClusterPolicy(b)
}

func (e *Engine) emitCheck(a *types.Action, pol *types.Policy, status CheckStatus, reason string) {
	if e.broker == nil {
		return
	}
	level := events.LevelDebug
	if status == CheckError {
		level = events.LevelError
	}
	e.broker.Publish(&events.Event{
		Level:    level,
		ActionID: a.ID,
		ObjType:  "policy",
		ObjID:    pol.ID,
		ObjName:  pol.Name,
		Status:   string(status),
		Reason:   fmt.Sprintf("policy %q: %s", pol.Name, reason),
	})
}
