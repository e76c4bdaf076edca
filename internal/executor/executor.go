// Package executor holds the three action-execution strategy variants of
// §4.4/§9 dispatched by verb prefix (CLUSTER_*, NODE_*, custom), grounded
// on Senlin's Action.__new__ type-dispatch (engine/actions/base.py) and
// the CLUSTER_* body descriptions of spec.md §4.4. In Go this is a tagged
// dispatch over the verb string into a common Executor capability,
// instead of a class hierarchy (§9 "a tagged variant over action kind
// with a common execute(context) -> (Result, reason) capability").
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/lock"
	"github.com/cuemby/fleetd/internal/policy"
	"github.com/cuemby/fleetd/internal/profile"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/rs/zerolog"
)

// Executor is the capability every verb-specific implementation provides
// (§9). Execute never lets an error escape uncaught (§7) — the worker
// wraps the call in a deferred recover, but well-behaved executors also
// translate their own errors into (ResultError, reason) directly.
type Executor interface {
	Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string)
}

// Runtime bundles every collaborator an executor needs: the storage
// adapter, lock manager, action-lifecycle façade, policy engine and
// profile registry. It is per-engine soft state (§5 "the cluster rt cache
// ... is per-engine soft state, always refreshed from storage after a
// lock acquisition").
type Runtime struct {
	Store             storage.Store
	Locks             *lock.Manager
	Actions           *action.Store
	Policies          *policy.Engine
	Profiles          *profile.Registry
	MaxUpdateParallel int
	PollInterval      time.Duration
}

// New dispatches on the verb prefix, the Go analogue of Senlin's
// Action.__new__ (§9).
func New(verb string) (Executor, error) {
	switch {
	case strings.HasPrefix(verb, "CLUSTER_"):
		return clusterExecutorFor(verb)
	case strings.HasPrefix(verb, "NODE_"):
		return nodeExecutorFor(verb)
	default:
		return customExecutor{}, nil
	}
}

// yield is the cooperative suspension point of §5: called between every
// child-action spawn/policy-step. It converts a pending CANCEL/TIMEOUT
// signal into the corresponding Result, and blocks on SUSPEND until
// RESUME, re-checking timeout on each wakeup.
func yield(rt *Runtime, a *types.Action) (action.Result, bool) {
	for {
		if action.IsTimeout(a, time.Now().UTC()) {
			return action.ResultTimeout, true
		}
		sig, err := rt.Actions.SignalQuery(a.ID)
		if err != nil {
			return action.ResultError, true
		}
		switch sig {
		case action.SignalCancel:
			return action.ResultCancel, true
		case action.SignalSuspend:
			time.Sleep(pollInterval(rt))
			continue
		default:
			return action.ResultOK, false
		}
	}
}

func pollInterval(rt *Runtime) time.Duration {
	if rt.PollInterval > 0 {
		return rt.PollInterval
	}
	return 200 * time.Millisecond
}

// waitForChildren cooperatively polls until every childID is terminal,
// yielding at each poll. It returns the terminal actions in input order,
// or a non-OK Result/reason if the parent itself was cancelled or timed
// out while waiting (§5 "a worker cooperatively yields between every
// child-action spawn and its corresponding completion wait").
func waitForChildren(rt *Runtime, a *types.Action, childIDs []string) ([]*types.Action, action.Result, string) {
	for {
		if res, stop := yield(rt, a); stop {
			return nil, res, string(res)
		}
		allTerminal := true
		children := make([]*types.Action, 0, len(childIDs))
		for _, id := range childIDs {
			child, err := rt.Actions.Get(id)
			if err != nil {
				return nil, action.ResultError, err.Error()
			}
			children = append(children, child)
			if !child.Status.Terminal() {
				allTerminal = false
			}
		}
		if allTerminal {
			return children, action.ResultOK, ""
		}
		time.Sleep(pollInterval(rt))
	}
}

func countByStatus(children []*types.Action, status types.ActionStatus) int {
	n := 0
	for _, c := range children {
		if c.Status == status {
			n++
		}
	}
	return n
}

func logger(component string) zerolog.Logger {
	return log.WithComponent(component)
}

var errNotImplemented = fmt.Errorf("not implemented")
