package executor

import (
	"context"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/types"
)

// customExecutor is the default variant for verbs outside the
// CLUSTER_*/NODE_* vocabulary (§9 "a tagged variant over action kind"):
// a no-op body that simply succeeds, so any such verb (e.g. a one-off
// maintenance action) runs to SUCCEEDED without the dispatcher needing to
// know about it up front. There is no registry for custom verb bodies.
type customExecutor struct{}

func (customExecutor) Execute(ctx context.Context, rt *Runtime, a *types.Action) (action.Result, string) {
	return action.ResultOK, ""
}
