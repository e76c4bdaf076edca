// Package storage is the engine's persistence layer (§4.1): the narrow set
// of operations the Action dispatcher, lock manager and health manager need,
// not a general ORM. BoltStore is the bbolt-backed implementation of the
// Store interface.
package storage

import (
	"time"

	"github.com/cuemby/fleetd/internal/types"
)

// ActionFilter narrows ListActions; zero-value fields are unconstrained.
type ActionFilter struct {
	Target string
	Status types.ActionStatus
	Action string
}

// EventFilter narrows ListEvents; zero-value fields are unconstrained.
type EventFilter struct {
	ObjType string
	ObjID   string
	Level   types.EventLevel
	Limit   int
}

// Store is the persistence contract every other component depends on.
type Store interface {
	// Clusters
	CreateCluster(c *types.Cluster) error
	GetCluster(id string) (*types.Cluster, error)
	ListClusters() ([]*types.Cluster, error)
	UpdateCluster(c *types.Cluster) error
	DeleteCluster(id string) error

	// Nodes
	CreateNode(n *types.Node) error
	GetNode(id string) (*types.Node, error)
	ListNodes() ([]*types.Node, error)
	ListNodesByCluster(clusterID string) ([]*types.Node, error)
	UpdateNode(n *types.Node) error
	DeleteNode(id string) error

	// Profiles
	CreateProfile(p *types.Profile) error
	GetProfile(id string) (*types.Profile, error)
	ListProfiles() ([]*types.Profile, error)
	UpdateProfile(p *types.Profile) error
	DeleteProfile(id string) error

	// Policies
	CreatePolicy(p *types.Policy) error
	GetPolicy(id string) (*types.Policy, error)
	ListPolicies() ([]*types.Policy, error)
	UpdatePolicy(p *types.Policy) error
	DeletePolicy(id string) error

	// ClusterPolicy bindings, keyed by (cluster_id, policy_id)
	CreateClusterPolicy(b *types.ClusterPolicy) error
	GetClusterPolicy(clusterID, policyID string) (*types.ClusterPolicy, error)
	ListClusterPolicies(clusterID string) ([]*types.ClusterPolicy, error)
	UpdateClusterPolicy(b *types.ClusterPolicy) error
	DeleteClusterPolicy(clusterID, policyID string) error

	// Actions: CRUD
	CreateAction(a *types.Action) (string, error)
	GetAction(id string) (*types.Action, error)
	ListActions(filter ActionFilter) ([]*types.Action, error)
	DeleteAction(id string) error

	// Actions: dispatcher/lifecycle primitives (§4.1)
	AcquireFirstReady(owner string, now time.Time) (*types.Action, error)
	MarkSucceeded(id string, now time.Time, outputs map[string]any) error
	MarkFailed(id string, now time.Time, reason string) error
	MarkCancelled(id string, now time.Time, reason string) error
	Abandon(id string) error
	SaveActionData(id string, data map[string]any) error
	Signal(id string, cmd string) error
	SignalQuery(id string) (string, error)
	AddDependency(parentIDs []string, childID string) error
	GetDepended(id string) ([]string, error)
	GetDependents(id string) ([]string, error)

	// Locks (§4.2). stolenFrom is the action id whose stale lock was
	// reclaimed, or "" if none was stolen.
	ClusterLockAcquire(clusterID, actionID string, scope types.LockSemantics, now time.Time, retention time.Duration) (stolenFrom string, err error)
	ClusterLockRelease(clusterID, actionID string) error
	NodeLockAcquire(nodeID, actionID string, now time.Time, retention time.Duration) (stolenFrom string, err error)
	NodeLockRelease(nodeID, actionID string) error
	ReleaseLocksForAction(actionID string) error

	// HealthRegistry
	CreateHealthRegistry(r *types.HealthRegistry) error
	GetHealthRegistry(id string) (*types.HealthRegistry, error)
	ListHealthRegistries() ([]*types.HealthRegistry, error)
	UpdateHealthRegistry(r *types.HealthRegistry) error
	DeleteHealthRegistry(id string) error
	ClaimRegistry(engineID string, now time.Time, staleAfter time.Duration) ([]*types.HealthRegistry, error)

	// Events
	AppendEvent(e *types.Event) error
	ListEvents(filter EventFilter) ([]*types.Event, error)

	// Engine liveness table, consulted by lock-steal and registry_claim.
	Heartbeat(engineID string, now time.Time) error
	EngineAlive(engineID string, now time.Time, staleAfter time.Duration) (bool, error)

	// CA material, consumed by pkg/security.CertAuthority for the
	// api/healthrpc gRPC mTLS listener.
	GetCA() ([]byte, error)
	SaveCA(data []byte) error

	Close() error
}

// ErrNoReadyAction is returned by AcquireFirstReady when no action is ready.
var ErrNoReadyAction = noReadyActionError{}

type noReadyActionError struct{}

func (noReadyActionError) Error() string { return "NO_READY_ACTION" }
