package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
)

func newTestStore(t *testing.T) (*Store, storage.Store) {
	t.Helper()
	db, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, events.NewBroker()), db
}

func TestStore_CreateWithoutDependenciesIsReady(t *testing.T) {
	s, _ := newTestStore(t)
	a, err := s.Create(&types.Action{Target: "c1", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, types.ActionReady, a.Status)
	assert.Equal(t, 3600, a.TimeoutS)
}

func TestStore_CreateWithPendingDependencyIsWaiting(t *testing.T) {
	s, _ := newTestStore(t)
	parent, err := s.Create(&types.Action{Target: "c1", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)

	child, err := s.Create(&types.Action{Target: "n1", Action: "NODE_CREATE"}, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ActionWaiting, child.Status)
}

func TestStore_SignalRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	a, err := s.Create(&types.Action{Target: "c1", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)

	got, err := s.SignalQuery(a.ID)
	require.NoError(t, err)
	assert.Equal(t, SignalNone, got)

	require.NoError(t, s.Signal(a.ID, SignalCancel))
	got, err = s.SignalQuery(a.ID)
	require.NoError(t, err)
	assert.Equal(t, SignalCancel, got)
}

func TestStore_SucceedFailCancel(t *testing.T) {
	s, _ := newTestStore(t)

	ok, err := s.Create(&types.Action{Target: "c1", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)
	require.NoError(t, s.Succeed(ok.ID, map[string]any{"result": "done"}))
	got, err := s.Get(ok.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ActionSucceeded, got.Status)

	bad, err := s.Create(&types.Action{Target: "c2", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)
	require.NoError(t, s.Fail(bad.ID, "boom"))
	got, err = s.Get(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ActionFailed, got.Status)
	assert.Equal(t, "boom", got.StatusReason)

	cancelled, err := s.Create(&types.Action{Target: "c3", Action: "CLUSTER_CREATE"})
	require.NoError(t, err)
	require.NoError(t, s.Cancel(cancelled.ID, "user requested"))
	got, err = s.Get(cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ActionCancelled, got.Status)
}

func TestIsTimeout(t *testing.T) {
	now := time.Now().UTC()
	a := &types.Action{StartTime: now.Add(-2 * time.Hour), TimeoutS: 3600}
	assert.True(t, IsTimeout(a, now))

	a2 := &types.Action{StartTime: now.Add(-10 * time.Minute), TimeoutS: 3600}
	assert.False(t, IsTimeout(a2, now))

	a3 := &types.Action{TimeoutS: 3600}
	assert.False(t, IsTimeout(a3, now))
}
