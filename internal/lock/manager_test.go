package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
)

func newTestManager(t *testing.T, retention time.Duration) (*Manager, storage.Store) {
	t.Helper()
	s, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewManager(s, events.NewBroker(), retention), s
}

func TestManager_AcquireReleaseCluster(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireCluster("c1", "a1", types.Exclusive))
	require.NoError(t, m.ReleaseCluster("c1", "a1"))
	// idempotent release
	require.NoError(t, m.ReleaseCluster("c1", "a1"))
}

func TestManager_SharedClusterLockAllowsMultipleHolders(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireCluster("c1", "a1", types.Shared))
	require.NoError(t, m.AcquireCluster("c1", "a2", types.Shared))
}

func TestManager_ExclusiveClusterLockRejectsLiveOwner(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireCluster("c1", "a1", types.Exclusive))

	_, err := s.CreateAction(&types.Action{ID: "a1", Status: types.ActionRunning, Owner: "engine-1"})
	require.NoError(t, err)
	require.NoError(t, s.Heartbeat("engine-1", time.Now().UTC()))

	err = m.AcquireCluster("c1", "a2", types.Exclusive)
	assert.Error(t, err)
}

func TestManager_StealsLockFromStaleOwner(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireCluster("c1", "a1", types.Exclusive))

	_, err := s.CreateAction(&types.Action{ID: "a1", Status: types.ActionRunning, Owner: "engine-1"})
	require.NoError(t, err)
	// engine-1 heartbeated long ago; its lock is stealable.
	require.NoError(t, s.Heartbeat("engine-1", time.Now().UTC().Add(-time.Hour)))

	require.NoError(t, m.AcquireCluster("c1", "a2", types.Exclusive))
}

func TestManager_AcquireNodesOrderedRollsBackOnFailure(t *testing.T) {
	m, s := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireNode("n2", "a1"))
	_, err := s.CreateAction(&types.Action{ID: "a1", Status: types.ActionRunning, Owner: "engine-1"})
	require.NoError(t, err)
	require.NoError(t, s.Heartbeat("engine-1", time.Now().UTC()))

	err = m.AcquireNodesOrdered([]string{"n1", "n2", "n3"}, "a2")
	assert.Error(t, err)

	// n1 was acquired before the n2 conflict and must have been rolled back.
	require.NoError(t, m.AcquireNode("n1", "a3"))
}

func TestManager_ReleaseAllSweepsClusterAndNodeLocks(t *testing.T) {
	m, _ := newTestManager(t, time.Minute)
	require.NoError(t, m.AcquireCluster("c1", "a1", types.Exclusive))
	require.NoError(t, m.AcquireNode("n1", "a1"))
	require.NoError(t, m.AcquireNode("n2", "a1"))

	require.NoError(t, m.ReleaseAll("a1"))

	require.NoError(t, m.AcquireCluster("c1", "a2", types.Exclusive))
	require.NoError(t, m.AcquireNode("n1", "a2"))
	require.NoError(t, m.AcquireNode("n2", "a2"))
}
