package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/lock"
	"github.com/cuemby/fleetd/internal/policy"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
)

func newTestRuntime(t *testing.T) (*Runtime, storage.Store) {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	broker := events.NewBroker()
	return &Runtime{
		Store:        s,
		Locks:        lock.NewManager(s, broker, time.Minute),
		Actions:      action.New(s, broker),
		Policies:     policy.NewEngine(s, policy.NewRegistry(), broker),
		PollInterval: 5 * time.Millisecond,
	}, s
}

// completeNodeActions watches for NODE_CREATE/NODE_DELETE children as they
// appear and immediately settles them, standing in for the node executor
// and its underlying profile driver so the cluster-level state machine can
// be exercised without a running worker pool.
func completeNodeActions(t *testing.T, rt *Runtime, verb string, succeed bool) (stop func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		seen := map[string]bool{}
		for {
			select {
			case <-done:
				return
			default:
			}
			kids, err := rt.Store.ListActions(storage.ActionFilter{Action: verb})
			if err == nil {
				for _, k := range kids {
					if seen[k.ID] || k.Status.Terminal() {
						continue
					}
					seen[k.ID] = true
					if verb == "NODE_CREATE" && succeed {
						n, err := rt.Store.GetNode(k.Target)
						if err == nil {
							n.Status = types.NodeActive
							_ = rt.Store.UpdateNode(n)
						}
					}
					if succeed {
						_ = rt.Actions.Succeed(k.ID, nil)
					} else {
						_ = rt.Actions.Fail(k.ID, "induced failure")
					}
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	return func() { close(done) }
}

func TestClusterCreate_AllNodesSucceed(t *testing.T) {
	rt, s := newTestRuntime(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{
		ID: "c1", Status: types.ClusterInit, MinSize: 1, MaxSize: 5, DesiredCapacity: 3,
	}))

	stop := completeNodeActions(t, rt, "NODE_CREATE", true)
	defer stop()

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_CREATE"}
	res, reason := clusterCreate{}.Execute(context.Background(), rt, a)
	require.Equal(t, action.ResultOK, res, reason)

	cluster, err := s.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterActive, cluster.Status)

	nodes, err := s.ListNodesByCluster("c1")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestClusterCreate_AllNodesFail(t *testing.T) {
	rt, s := newTestRuntime(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{
		ID: "c1", Status: types.ClusterInit, MinSize: 1, MaxSize: 5, DesiredCapacity: 2,
	}))

	stop := completeNodeActions(t, rt, "NODE_CREATE", false)
	defer stop()

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_CREATE"}
	res, reason := clusterCreate{}.Execute(context.Background(), rt, a)
	assert.Equal(t, action.ResultError, res)
	assert.NotEmpty(t, reason)

	cluster, err := s.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterError, cluster.Status)
}

func TestAggregateStatus_ZeroActiveMinSizeOne(t *testing.T) {
	// A failed creation (no member ever became ACTIVE) is ERROR...
	status, reason := aggregateCreateStatus(0, 2, 1)
	assert.Equal(t, types.ClusterError, status)
	assert.NotEmpty(t, reason)

	// ...but the same zero-active reading from a CLUSTER_CHECK is CRITICAL,
	// not ERROR: the cluster previously had ACTIVE members and lost them,
	// it didn't fail to come up in the first place.
	status, reason = aggregateCheckStatus(0, 2, 1)
	assert.Equal(t, types.ClusterCritical, status)
	assert.NotEmpty(t, reason)
}

func TestClusterDelete_RemovesClusterAndNodes(t *testing.T) {
	rt, s := newTestRuntime(t)
	require.NoError(t, s.CreateCluster(&types.Cluster{ID: "c1", Status: types.ClusterActive, MinSize: 1, MaxSize: 5}))
	require.NoError(t, s.CreateNode(&types.Node{ID: "n1", ClusterID: "c1", Status: types.NodeActive}))
	require.NoError(t, s.CreateNode(&types.Node{ID: "n2", ClusterID: "c1", Status: types.NodeActive}))

	stop := completeNodeActions(t, rt, "NODE_DELETE", true)
	defer stop()

	a := &types.Action{ID: "a1", Target: "c1", Action: "CLUSTER_DELETE"}
	res, reason := clusterDelete{}.Execute(context.Background(), rt, a)
	require.Equal(t, action.ResultOK, res, reason)

	_, err := s.GetCluster("c1")
	assert.Error(t, err)
}
