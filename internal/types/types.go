// Package types is the engine's data model (§3): Cluster, Node, Profile,
// Policy, ClusterPolicy, Action, Lock, HealthRegistry and Event records.
// Plain structs, JSON-marshalled as-is, the style the storage layer
// depends on.
package types

import "time"

// ClusterStatus enumerates the lifecycle states of §3.
type ClusterStatus string

const (
	ClusterInit       ClusterStatus = "INIT"
	ClusterActive     ClusterStatus = "ACTIVE"
	ClusterCreating   ClusterStatus = "CREATING"
	ClusterUpdating   ClusterStatus = "UPDATING"
	ClusterResizing   ClusterStatus = "RESIZING"
	ClusterDeleting   ClusterStatus = "DELETING"
	ClusterChecking   ClusterStatus = "CHECKING"
	ClusterRecovering ClusterStatus = "RECOVERING"
	ClusterCritical   ClusterStatus = "CRITICAL"
	ClusterError      ClusterStatus = "ERROR"
	ClusterWarning    ClusterStatus = "WARNING"
)

// Cluster is a homogeneous set of nodes sharing a profile (§3).
type Cluster struct {
	ID              string
	Name            string
	ProfileID       string
	User            string
	Project         string
	Domain          string
	InitAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	MinSize         int
	MaxSize         int // -1 = unbounded
	DesiredCapacity int
	NextIndex       int // monotonically non-decreasing, >=1
	TimeoutS        int
	Status          ClusterStatus
	StatusReason    string
	Metadata        map[string]string
	Data            map[string]any
}

// Unbounded is the MaxSize sentinel meaning "no upper bound".
const Unbounded = -1

// NodeRole is the role a node plays within its cluster; the core treats it
// opaquely and passes it through to the profile-type driver.
type NodeRole string

// NodeStatus enumerates node lifecycle states (§3).
type NodeStatus string

const (
	NodeInit       NodeStatus = "INIT"
	NodeActive     NodeStatus = "ACTIVE"
	NodeCreating   NodeStatus = "CREATING"
	NodeUpdating   NodeStatus = "UPDATING"
	NodeDeleting   NodeStatus = "DELETING"
	NodeError      NodeStatus = "ERROR"
	NodeWarning    NodeStatus = "WARNING"
	NodeRecovering NodeStatus = "RECOVERING"
)

// OrphanIndex is the node Index sentinel for a node with no cluster.
const OrphanIndex = -1

// Node is one member of a cluster, managed through its profile's driver
// (§3). A node with no ClusterID is an orphan candidate for ADD_NODES.
type Node struct {
	ID           string
	Name         string
	PhysicalID   string
	ClusterID    string
	ProfileID    string
	Index        int
	Role         NodeRole
	InitAt       time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Status       NodeStatus
	StatusReason string
	Metadata     map[string]string
	Data         map[string]any
}

// Profile is a typed, schema-validated specification of how to
// create/update/delete a node of a given kind (§3).
type Profile struct {
	ID        string
	Name      string
	Type      string
	Spec      map[string]any
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PolicyWhen is BEFORE or AFTER in a policy type's TARGET set.
type PolicyWhen string

const (
	Before PolicyWhen = "BEFORE"
	After  PolicyWhen = "AFTER"
)

// Policy is a typed pluggable hook invoked around cluster actions (§3).
type Policy struct {
	ID         string
	Name       string
	Type       string
	Spec       map[string]any
	Version    string
	CooldownS  int
	Level      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ClusterPolicy is the binding record linking a Policy to a Cluster (§3).
// Unique on (ClusterID, PolicyID).
type ClusterPolicy struct {
	ClusterID string
	PolicyID  string
	Priority  int
	Enabled   bool
	LastOp    time.Time
	Data      map[string]any
}

// ActionStatus enumerates the lifecycle states of §3/§4.3.
type ActionStatus string

const (
	ActionInit      ActionStatus = "INIT"
	ActionWaiting   ActionStatus = "WAITING"
	ActionReady     ActionStatus = "READY"
	ActionRunning   ActionStatus = "RUNNING"
	ActionSuspended ActionStatus = "SUSPENDED"
	ActionSucceeded ActionStatus = "SUCCEEDED"
	ActionFailed    ActionStatus = "FAILED"
	ActionCancelled ActionStatus = "CANCELLED"
)

// Terminal reports whether status is one the action will never leave.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionSucceeded, ActionFailed, ActionCancelled:
		return true
	default:
		return false
	}
}

// ActionCause distinguishes a user-initiated action from one spawned as
// part of another action's state machine.
type ActionCause string

const (
	CauseRPCRequest    ActionCause = "RPC_REQUEST"
	CauseDerivedAction ActionCause = "DERIVED_ACTION"
)

// OneShot is the Action.IntervalS sentinel for a non-repeating action.
const OneShot = -1

// Action is a persisted unit of work over one cluster or node (§3/glossary).
type Action struct {
	ID           string
	Name         string
	Target       string // cluster-or-node id
	Action       string // verb, e.g. CLUSTER_CREATE, NODE_CREATE
	Cause        ActionCause
	Owner        string // engine id currently executing, "" if none
	IntervalS    int
	StartTime    time.Time
	EndTime      time.Time
	TimeoutS     int
	Status       ActionStatus
	StatusReason string
	Inputs       map[string]any
	Outputs      map[string]any
	Data         map[string]any // policy scratchpad
	DependsOn    []string       // action ids this action waits on
	DependedBy   []string       // action ids waiting on this action
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LockSemantics is SHARED or EXCLUSIVE (§3/§4.2).
type LockSemantics string

const (
	Shared    LockSemantics = "SHARED"
	Exclusive LockSemantics = "EXCLUSIVE"
)

// Lock is an advisory cluster- or node-scoped mutual-exclusion token (§3).
// ResourceID is a cluster-id for cluster locks, a node-id for node locks.
type Lock struct {
	ResourceID string
	ActionIDs  []string
	Semantics  LockSemantics
}

// HealthCheckType is NODE_STATUS_POLLING or LIFECYCLE_EVENTS (§3/§4.6).
type HealthCheckType string

const (
	NodeStatusPolling HealthCheckType = "NODE_STATUS_POLLING"
	LifecycleEvents   HealthCheckType = "LIFECYCLE_EVENTS"
)

// HealthRegistry is one cluster's health-check configuration, exactly-one
// engine claims it via compare-and-swap on EngineID (§3/§4.6).
type HealthRegistry struct {
	ID         string
	ClusterID  string
	CheckType  HealthCheckType
	IntervalS  int
	Params     map[string]any
	EngineID   string
	Enabled    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EventLevel is the severity of an Event record.
type EventLevel string

const (
	EventDebug   EventLevel = "DEBUG"
	EventInfo    EventLevel = "INFO"
	EventWarning EventLevel = "WARNING"
	EventError   EventLevel = "ERROR"
)

// Event is the append-only audit record of §3.
type Event struct {
	ID        string
	Timestamp time.Time
	Level     EventLevel
	ActionID  string
	ObjType   string
	ObjID     string
	ObjName   string
	Status    string
	Reason    string
	User      string
	Project   string
}

// EngineHeartbeat is the engine-liveness table row referenced by §4.1/§4.2
// ("owner-stale ... no heartbeat within lock_retention_s"): every engine
// periodically stamps its own row so peers can detect staleness without a
// direct RPC round-trip.
type EngineHeartbeat struct {
	EngineID string
	LastSeen time.Time
}
