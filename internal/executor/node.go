package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
)

// nodeExecutorFor maps a NODE_* verb to its state machine (§4.4): each
// acquires the node lock, calls into the matching profile-type driver
// method, translates driver errors, and writes new node status.
func nodeExecutorFor(verb string) (Executor, error) {
	switch verb {
	case "NODE_CREATE":
		return nodeCreate{}, nil
	case "NODE_DELETE":
		return nodeDelete{}, nil
	case "NODE_JOIN":
		return nodeJoin{}, nil
	case "NODE_LEAVE":
		return nodeLeave{}, nil
	case "NODE_UPDATE":
		return nodeUpdate{}, nil
	case "NODE_CHECK":
		return nodeCheck{}, nil
	case "NODE_RECOVER":
		return nodeRecover{}, nil
	default:
		return nil, fmt.Errorf("executor: unknown node verb %q", verb)
	}
}

// withNode loads the node and its profile driver, runs fn under the node
// lock, and always releases the lock before returning.
func withNode(rt *Runtime, a *types.Action, fn func(n *types.Node) (action.Result, string)) (action.Result, string) {
	if err := rt.Locks.AcquireNode(a.Target, a.ID); err != nil {
		return action.ResultRetry, "lock contention"
	}
	defer rt.Locks.ReleaseNode(a.Target, a.ID)

	n, err := rt.Store.GetNode(a.Target)
	if err != nil {
		return action.ResultError, err.Error()
	}
	return fn(n)
}

func driverFor(rt *Runtime, n *types.Node) (interface {
	Validate(spec map[string]any) error
	Create(ctx context.Context, n *types.Node, spec map[string]any) (string, map[string]any, error)
	Update(ctx context.Context, n *types.Node, spec map[string]any) error
	Delete(ctx context.Context, n *types.Node) error
	Check(ctx context.Context, n *types.Node) (types.NodeStatus, string, error)
	Recover(ctx context.Context, n *types.Node, params map[string]any) error
	Join(ctx context.Context, n *types.Node, clusterID string) error
	Leave(ctx context.Context, n *types.Node) error
}, *types.Profile, error) {
	profile, err := rt.Store.GetProfile(n.ProfileID)
	if err != nil {
		return nil, nil, err
	}
	driver, err := rt.Profiles.Build(profile)
	if err != nil {
		return nil, nil, err
	}
	return driver, profile, nil
}

type nodeCreate struct{}

func (nodeCreate) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		n.Status = types.NodeCreating
		_ = rt.Store.UpdateNode(n)

		driver, profile, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		physicalID, data, err := driver.Create(ctx, n, profile.Spec)
		if err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		n.PhysicalID = physicalID
		n.Status = types.NodeActive
		n.StatusReason = ""
		if data != nil {
			if n.Data == nil {
				n.Data = map[string]any{}
			}
			for k, v := range data {
				n.Data[k] = v
			}
		}
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}

type nodeDelete struct{}

func (nodeDelete) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		n.Status = types.NodeDeleting
		_ = rt.Store.UpdateNode(n)

		driver, _, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		if err := driver.Delete(ctx, n); err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		if err := rt.Store.DeleteNode(n.ID); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}

type nodeJoin struct{}

func (nodeJoin) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		driver, _, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		cid, _ := a.Inputs["cluster_id"].(string)
		if err := driver.Join(ctx, n, cid); err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		n.ClusterID = cid
		n.Status = types.NodeActive
		n.StatusReason = ""
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}

type nodeLeave struct{}

func (nodeLeave) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		driver, _, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		if err := driver.Leave(ctx, n); err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		n.ClusterID = ""
		n.Index = types.OrphanIndex
		n.Status = types.NodeActive
		n.StatusReason = ""
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}

type nodeUpdate struct{}

func (nodeUpdate) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		n.Status = types.NodeUpdating
		_ = rt.Store.UpdateNode(n)

		if newProfileID, ok := a.Inputs["profile_id"].(string); ok && newProfileID != "" {
			n.ProfileID = newProfileID
		}
		driver, profile, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		if err := driver.Update(ctx, n, profile.Spec); err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		n.Status = types.NodeActive
		n.StatusReason = ""
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}

type nodeCheck struct{}

func (nodeCheck) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		driver, _, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		status, reason, err := driver.Check(ctx, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		n.Status = status
		n.StatusReason = reason
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		if status == types.NodeError {
			return action.ResultError, reason
		}
		return action.ResultOK, ""
	})
}

type nodeRecover struct{}

func (nodeRecover) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return withNode(rt, a, func(n *types.Node) (action.Result, string) {
		n.Status = types.NodeRecovering
		_ = rt.Store.UpdateNode(n)

		driver, _, err := driverFor(rt, n)
		if err != nil {
			return action.ResultError, err.Error()
		}
		if err := driver.Recover(ctx, n, a.Inputs); err != nil {
			n.Status = types.NodeError
			n.StatusReason = err.Error()
			_ = rt.Store.UpdateNode(n)
			return action.ResultError, err.Error()
		}
		n.Status = types.NodeActive
		n.StatusReason = ""
		if err := rt.Store.UpdateNode(n); err != nil {
			return action.ResultError, err.Error()
		}
		return action.ResultOK, ""
	})
}
