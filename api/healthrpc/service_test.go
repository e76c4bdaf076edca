package healthrpc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/types"
)

type fakeManager struct {
	registered   map[string]bool
	enabled      map[string]bool
	listening    bool
	registerErr  error
	unregisterErr error
}

func newFakeManager() *fakeManager {
	return &fakeManager{registered: map[string]bool{}, enabled: map[string]bool{}}
}

func (f *fakeManager) Register(clusterID string, checkType types.HealthCheckType, intervalS int, params map[string]any) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered[clusterID] = true
	return nil
}

func (f *fakeManager) Unregister(clusterID string) error {
	if f.unregisterErr != nil {
		return f.unregisterErr
	}
	delete(f.registered, clusterID)
	return nil
}

func (f *fakeManager) Enable(clusterID string)  { f.enabled[clusterID] = true }
func (f *fakeManager) Disable(clusterID string) { f.enabled[clusterID] = false }
func (f *fakeManager) Listening() bool          { return f.listening }

func TestServer_RegisterUnregisterCluster(t *testing.T) {
	fm := newFakeManager()
	s := NewServer(fm, "engine-1")

	resp, err := s.registerCluster(context.Background(), &ClusterRequest{ClusterID: "c1", CheckType: "http"})
	require.NoError(t, err)
	assert.Equal(t, &ClusterResponse{}, resp)
	assert.True(t, fm.registered["c1"])

	_, err = s.unregisterCluster(context.Background(), &ClusterRequest{ClusterID: "c1"})
	require.NoError(t, err)
	assert.False(t, fm.registered["c1"])
}

func TestServer_RegisterClusterRequiresID(t *testing.T) {
	fm := newFakeManager()
	s := NewServer(fm, "engine-1")
	_, err := s.registerCluster(context.Background(), &ClusterRequest{})
	assert.Error(t, err)
}

func TestServer_RegisterClusterPropagatesError(t *testing.T) {
	fm := newFakeManager()
	fm.registerErr = errors.New("boom")
	s := NewServer(fm, "engine-1")
	_, err := s.registerCluster(context.Background(), &ClusterRequest{ClusterID: "c1"})
	assert.Error(t, err)
}

func TestServer_EnableDisableCluster(t *testing.T) {
	fm := newFakeManager()
	s := NewServer(fm, "engine-1")

	_, err := s.enableCluster(context.Background(), &ClusterRequest{ClusterID: "c1"})
	require.NoError(t, err)
	assert.True(t, fm.enabled["c1"])

	_, err = s.disableCluster(context.Background(), &ClusterRequest{ClusterID: "c1"})
	require.NoError(t, err)
	assert.False(t, fm.enabled["c1"])
}

func TestServer_Listening(t *testing.T) {
	fm := newFakeManager()
	fm.listening = true
	s := NewServer(fm, "engine-1")

	resp, err := s.listening(context.Background(), &ListeningRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Listening)

	resp, err = s.listening(context.Background(), &ListeningRequest{EngineID: "other-engine"})
	require.NoError(t, err)
	assert.False(t, resp.Listening)

	resp, err = s.listening(context.Background(), &ListeningRequest{EngineID: "engine-1"})
	require.NoError(t, err)
	assert.True(t, resp.Listening)
}
