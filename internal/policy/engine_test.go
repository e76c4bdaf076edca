package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
)

func newTestEngine(t *testing.T) (*Engine, storage.Store) {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	reg := NewRegistry()
	reg.Register("scaling_out", func() Hook { return NewScaleOutPolicy(s) })
	return NewEngine(s, reg, events.NewBroker()), s
}

func bindPolicy(t *testing.T, s storage.Store, clusterID, policyType string, spec map[string]any, priority int) *types.Policy {
	t.Helper()
	pol := &types.Policy{ID: policyType + "-1", Name: policyType, Type: policyType, Spec: spec}
	require.NoError(t, s.CreatePolicy(pol))
	require.NoError(t, s.CreateClusterPolicy(&types.ClusterPolicy{
		ClusterID: clusterID, PolicyID: pol.ID, Priority: priority, Enabled: true,
	}))
	return pol
}

func TestEngine_Check_ScaleOutWithinBounds(t *testing.T) {
	e, s := newTestEngine(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{ID: "c1", MinSize: 1, MaxSize: 10}))
	bindPolicy(t, s, "c1", "scaling_out", map[string]any{
		"adjustment": map[string]any{"type": "CHANGE_IN_CAPACITY", "number": 2.0},
	}, 10)

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_SCALE_OUT"}
	require.NoError(t, e.Check("c1", types.Before, a))

	status, _ := CheckResult(a)
	assert.Equal(t, CheckOK, status)
	assert.Equal(t, map[string]any{"count": 2}, a.Data["creation"])
}

func TestEngine_Check_ScaleOutExceedsMaxVetoes(t *testing.T) {
	e, s := newTestEngine(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{ID: "c1", MinSize: 1, MaxSize: 3}))
	bindPolicy(t, s, "c1", "scaling_out", map[string]any{
		"adjustment": map[string]any{"type": "CHANGE_IN_CAPACITY", "number": 5.0},
	}, 10)

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_SCALE_OUT"}
	require.NoError(t, e.Check("c1", types.Before, a))

	status, reason := CheckResult(a)
	assert.Equal(t, CheckError, status)
	assert.Contains(t, reason, "maximum size")
}

func TestEngine_Check_DisabledBindingSkipped(t *testing.T) {
	e, s := newTestEngine(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{ID: "c1", MinSize: 1, MaxSize: 3}))
	pol := &types.Policy{ID: "p1", Name: "scaling_out", Type: "scaling_out"}
	require.NoError(t, s.CreatePolicy(pol))
	require.NoError(t, s.CreateClusterPolicy(&types.ClusterPolicy{
		ClusterID: "c1", PolicyID: "p1", Priority: 10, Enabled: false,
	}))

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_SCALE_OUT"}
	require.NoError(t, e.Check("c1", types.Before, a))

	status, _ := CheckResult(a)
	assert.Equal(t, CheckOK, status)
	assert.Nil(t, a.Data["creation"])
}

func TestEngine_Check_UnrelatedActionNotEvaluated(t *testing.T) {
	e, s := newTestEngine(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{ID: "c1", MinSize: 1, MaxSize: 3}))
	bindPolicy(t, s, "c1", "scaling_out", map[string]any{}, 10)

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_DELETE"}
	require.NoError(t, e.Check("c1", types.Before, a))

	status, _ := CheckResult(a)
	assert.Equal(t, CheckOK, status)
	assert.Nil(t, a.Data["creation"])
}
