package restv1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
)

// fakeEngine is the minimal Engine implementation this router needs, backed
// by a real BoltStore so handlers exercise genuine persistence rather than
// a hand-rolled in-memory double.
type fakeEngine struct {
	store   storage.Store
	actions *action.Store
	leader  bool
}

func (f *fakeEngine) Store() storage.Store   { return f.store }
func (f *fakeEngine) Actions() *action.Store { return f.actions }
func (f *fakeEngine) IsLeader() bool         { return f.leader }

func newTestServer(t *testing.T) (http.Handler, *fakeEngine) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	fe := &fakeEngine{store: store, actions: action.New(store, broker), leader: true}
	return Router(fe), fe
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func createTestProfile(t *testing.T, fe *fakeEngine, profileType string) *types.Profile {
	t.Helper()
	p := &types.Profile{
		ID:   "profile-" + profileType,
		Name: "test-profile",
		Type: profileType,
		Spec: map[string]any{"image": "busybox"},
	}
	require.NoError(t, fe.store.CreateProfile(p))
	return p
}

func TestCreateAndGetCluster(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")

	w := doRequest(t, h, http.MethodPost, "/clusters", map[string]any{
		"cluster": map[string]any{
			"name":             "web",
			"profile_id":       profile.ID,
			"desired_capacity": 2,
			"min_size":         0,
			"max_size":         types.Unbounded,
		},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))

	var created struct {
		Cluster  types.Cluster `json:"cluster"`
		Location string        `json:"location"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Cluster.ID)

	w = doRequest(t, h, http.MethodGet, "/clusters/"+created.Cluster.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched types.Cluster
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fetched))
	assert.Equal(t, "web", fetched.Name)
}

func TestCreateClusterRejectsUnknownProfile(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodPost, "/clusters", map[string]any{
		"cluster": map[string]any{"name": "web", "profile_id": "missing"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateClusterRejectsCapacityAboveMax(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	w := doRequest(t, h, http.MethodPost, "/clusters", map[string]any{
		"cluster": map[string]any{
			"name": "web", "profile_id": profile.ID,
			"desired_capacity": 5, "max_size": 2,
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetClusterNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/clusters/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListClustersRejectsUnknownQueryParam(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/clusters?bogus=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClusterActionDispatchesVerb(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	c := &types.Cluster{ID: "c1", Name: "web", ProfileID: profile.ID, MaxSize: types.Unbounded}
	require.NoError(t, fe.store.CreateCluster(c))

	w := doRequest(t, h, http.MethodPost, "/clusters/c1/actions", map[string]any{
		"resize": map[string]any{"desired_capacity": 3},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	actions, err := fe.store.ListActions(storage.ActionFilter{Target: "c1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "CLUSTER_RESIZE", actions[0].Action)
}

func TestClusterActionRejectsMultipleKeys(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	c := &types.Cluster{ID: "c1", Name: "web", ProfileID: profile.ID, MaxSize: types.Unbounded}
	require.NoError(t, fe.store.CreateCluster(c))

	w := doRequest(t, h, http.MethodPost, "/clusters/c1/actions", map[string]any{
		"resize": map[string]any{}, "check": map[string]any{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteClusterEnqueuesAction(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	c := &types.Cluster{ID: "c1", Name: "web", ProfileID: profile.ID, MaxSize: types.Unbounded}
	require.NoError(t, fe.store.CreateCluster(c))

	w := doRequest(t, h, http.MethodDelete, "/clusters/c1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	actions, err := fe.store.ListActions(storage.ActionFilter{Target: "c1"})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "CLUSTER_DELETE", actions[0].Action)
}

func TestCreateAndDeleteNode(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")

	w := doRequest(t, h, http.MethodPost, "/nodes", map[string]any{
		"node": map[string]any{"name": "n1", "profile_id": profile.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Node types.Node `json:"node"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, types.OrphanIndex, created.Node.Index)

	w = doRequest(t, h, http.MethodDelete, "/nodes/"+created.Node.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteNodeRejectsWhenStillInCluster(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	n := &types.Node{ID: "n1", ClusterID: "c1", ProfileID: profile.ID, Status: types.NodeActive}
	require.NoError(t, fe.store.CreateNode(n))

	w := doRequest(t, h, http.MethodDelete, "/nodes/n1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateProfileAndUpdate(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodPost, "/profiles", map[string]any{
		"profile": map[string]any{"name": "p1", "type": "container", "spec": map[string]any{"image": "nginx"}},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		Profile types.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = doRequest(t, h, http.MethodPatch, "/profiles/"+created.Profile.ID, map[string]any{
		"profile": map[string]any{"name": "p1-renamed"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var updated types.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "p1-renamed", updated.Name)
}

func TestDeleteProfileRejectsWhenInUseByCluster(t *testing.T) {
	h, fe := newTestServer(t)
	profile := createTestProfile(t, fe, "container")
	c := &types.Cluster{ID: "c1", Name: "web", ProfileID: profile.ID, MaxSize: types.Unbounded}
	require.NoError(t, fe.store.CreateCluster(c))

	w := doRequest(t, h, http.MethodDelete, "/profiles/"+profile.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetActionNotFound(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/actions/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEventsRejectsUnknownQueryParam(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/events?bogus=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListEventsReturnsEmptyInitially(t *testing.T) {
	h, _ := newTestServer(t)
	w := doRequest(t, h, http.MethodGet, "/events", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []*types.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Events)
}
