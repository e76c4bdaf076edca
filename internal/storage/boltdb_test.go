package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore_ClusterCRUD(t *testing.T) {
	s := newTestStore(t)
	c := &types.Cluster{ID: "c1", Name: "web", Status: types.ClusterInit}
	require.NoError(t, s.CreateCluster(c))

	got, err := s.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, "web", got.Name)

	got.Status = types.ClusterActive
	require.NoError(t, s.UpdateCluster(got))
	got, err = s.GetCluster("c1")
	require.NoError(t, err)
	assert.Equal(t, types.ClusterActive, got.Status)

	all, err := s.ListClusters()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteCluster("c1"))
	_, err = s.GetCluster("c1")
	assert.Error(t, err)
}

func TestBoltStore_GetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetNode("missing")
	require.Error(t, err)
}

func TestBoltStore_ListNodesByCluster(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateNode(&types.Node{ID: "n1", ClusterID: "c1"}))
	require.NoError(t, s.CreateNode(&types.Node{ID: "n2", ClusterID: "c1"}))
	require.NoError(t, s.CreateNode(&types.Node{ID: "n3", ClusterID: "c2"}))

	nodes, err := s.ListNodesByCluster("c1")
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
}

func TestBoltStore_ClusterPolicyBinding(t *testing.T) {
	s := newTestStore(t)
	b := &types.ClusterPolicy{ClusterID: "c1", PolicyID: "p1", Priority: 10, Enabled: true}
	require.NoError(t, s.CreateClusterPolicy(b))

	got, err := s.GetClusterPolicy("c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Priority)

	require.NoError(t, s.DeleteClusterPolicy("c1", "p1"))
	_, err = s.GetClusterPolicy("c1", "p1")
	assert.Error(t, err)
}

func TestBoltStore_CAMaterialRoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetCA()
	require.Error(t, err)

	require.NoError(t, s.SaveCA([]byte("ca-bytes")))
	data, err := s.GetCA()
	require.NoError(t, err)
	assert.Equal(t, []byte("ca-bytes"), data)
}

func TestBoltStore_Heartbeat(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()
	require.NoError(t, s.Heartbeat("engine-1", now))

	alive, err := s.EngineAlive("engine-1", now.Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.True(t, alive)

	alive, err = s.EngineAlive("engine-1", now.Add(time.Hour), time.Minute)
	require.NoError(t, err)
	assert.False(t, alive)
}
