// Package raftfsm adapts storage.Store mutations to a hashicorp/raft log,
// so that every engine in a cluster applies writes in the same order and
// a follower can replay the log (or a snapshot) to reconstruct state. A
// Command{Op, Data} envelope and a per-op json.Unmarshal-then-store-call
// switch cover this engine's Cluster/Node/Profile/Policy/ClusterPolicy/
// Action/HealthRegistry nouns and its lock/signal/dependency primitives.
package raftfsm

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/hashicorp/raft"
)

// Command is one state-change operation in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// FSM applies committed Raft log entries to the local storage adapter.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

func New(store storage.Store) *FSM { return &FSM{store: store} }

// Encode marshals an operation for Raft.Apply's caller; the command
// envelope is shared between the leader that proposes it and every
// follower's FSM.Apply.
func Encode(op string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Command{Op: op, Data: raw})
}

// Apply applies one committed Raft log entry.
func (f *FSM) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("raftfsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "create_cluster":
		var c types.Cluster
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return err
		}
		return f.store.CreateCluster(&c)
	case "update_cluster":
		var c types.Cluster
		if err := json.Unmarshal(cmd.Data, &c); err != nil {
			return err
		}
		return f.store.UpdateCluster(&c)
	case "delete_cluster":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteCluster(id)

	case "create_node":
		var n types.Node
		if err := json.Unmarshal(cmd.Data, &n); err != nil {
			return err
		}
		return f.store.CreateNode(&n)
	case "update_node":
		var n types.Node
		if err := json.Unmarshal(cmd.Data, &n); err != nil {
			return err
		}
		return f.store.UpdateNode(&n)
	case "delete_node":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteNode(id)

	case "create_profile":
		var p types.Profile
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.store.CreateProfile(&p)
	case "update_profile":
		var p types.Profile
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.store.UpdateProfile(&p)
	case "delete_profile":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteProfile(id)

	case "create_policy":
		var p types.Policy
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.store.CreatePolicy(&p)
	case "update_policy":
		var p types.Policy
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		return f.store.UpdatePolicy(&p)
	case "delete_policy":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeletePolicy(id)

	case "create_cluster_policy":
		var b types.ClusterPolicy
		if err := json.Unmarshal(cmd.Data, &b); err != nil {
			return err
		}
		return f.store.CreateClusterPolicy(&b)
	case "update_cluster_policy":
		var b types.ClusterPolicy
		if err := json.Unmarshal(cmd.Data, &b); err != nil {
			return err
		}
		return f.store.UpdateClusterPolicy(&b)
	case "delete_cluster_policy":
		var key struct{ ClusterID, PolicyID string }
		if err := json.Unmarshal(cmd.Data, &key); err != nil {
			return err
		}
		return f.store.DeleteClusterPolicy(key.ClusterID, key.PolicyID)

	case "create_action":
		var a types.Action
		if err := json.Unmarshal(cmd.Data, &a); err != nil {
			return err
		}
		_, err := f.store.CreateAction(&a)
		return err
	case "mark_succeeded":
		var args struct {
			ID      string
			Now     time.Time
			Outputs map[string]any
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.MarkSucceeded(args.ID, args.Now, args.Outputs)
	case "mark_failed":
		var args struct {
			ID     string
			Now    time.Time
			Reason string
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.MarkFailed(args.ID, args.Now, args.Reason)
	case "mark_cancelled":
		var args struct {
			ID     string
			Now    time.Time
			Reason string
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.MarkCancelled(args.ID, args.Now, args.Reason)
	case "abandon":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.Abandon(id)
	case "save_action_data":
		var args struct {
			ID   string
			Data map[string]any
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.SaveActionData(args.ID, args.Data)
	case "signal":
		var args struct{ ID, Cmd string }
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.Signal(args.ID, args.Cmd)
	case "add_dependency":
		var args struct {
			ParentIDs []string
			ChildID   string
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.AddDependency(args.ParentIDs, args.ChildID)

	case "cluster_lock_acquire":
		var args struct {
			ClusterID, ActionID string
			Scope               types.LockSemantics
			Now                 time.Time
			RetentionNS         int64
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		_, err := f.store.ClusterLockAcquire(args.ClusterID, args.ActionID, args.Scope, args.Now, time.Duration(args.RetentionNS))
		return err
	case "cluster_lock_release":
		var args struct{ ClusterID, ActionID string }
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.ClusterLockRelease(args.ClusterID, args.ActionID)
	case "node_lock_acquire":
		var args struct {
			NodeID, ActionID string
			Now              time.Time
			RetentionNS      int64
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		_, err := f.store.NodeLockAcquire(args.NodeID, args.ActionID, args.Now, time.Duration(args.RetentionNS))
		return err
	case "node_lock_release":
		var args struct{ NodeID, ActionID string }
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.NodeLockRelease(args.NodeID, args.ActionID)

	case "create_health_registry":
		var r types.HealthRegistry
		if err := json.Unmarshal(cmd.Data, &r); err != nil {
			return err
		}
		return f.store.CreateHealthRegistry(&r)
	case "update_health_registry":
		var r types.HealthRegistry
		if err := json.Unmarshal(cmd.Data, &r); err != nil {
			return err
		}
		return f.store.UpdateHealthRegistry(&r)
	case "delete_health_registry":
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		return f.store.DeleteHealthRegistry(id)

	case "heartbeat":
		var args struct {
			EngineID string
			Now      time.Time
		}
		if err := json.Unmarshal(cmd.Data, &args); err != nil {
			return err
		}
		return f.store.Heartbeat(args.EngineID, args.Now)

	default:
		return fmt.Errorf("raftfsm: unknown command %q", cmd.Op)
	}
}

// Snapshot captures the full durable state for Raft log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	clusters, err := f.store.ListClusters()
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	nodes, err := f.store.ListNodes()
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	profiles, err := f.store.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	policies, err := f.store.ListPolicies()
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	registries, err := f.store.ListHealthRegistries()
	if err != nil {
		return nil, fmt.Errorf("list health registries: %w", err)
	}

	return &Snapshot{
		Clusters:        clusters,
		Nodes:           nodes,
		Profiles:        profiles,
		Policies:        policies,
		HealthRegistries: registries,
	}, nil
}

// Restore rebuilds state from a snapshot taken by Snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("raftfsm: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range snap.Clusters {
		if err := f.store.CreateCluster(c); err != nil {
			return fmt.Errorf("restore cluster %s: %w", c.ID, err)
		}
	}
	for _, n := range snap.Nodes {
		if err := f.store.CreateNode(n); err != nil {
			return fmt.Errorf("restore node %s: %w", n.ID, err)
		}
	}
	for _, p := range snap.Profiles {
		if err := f.store.CreateProfile(p); err != nil {
			return fmt.Errorf("restore profile %s: %w", p.ID, err)
		}
	}
	for _, p := range snap.Policies {
		if err := f.store.CreatePolicy(p); err != nil {
			return fmt.Errorf("restore policy %s: %w", p.ID, err)
		}
	}
	for _, r := range snap.HealthRegistries {
		if err := f.store.CreateHealthRegistry(r); err != nil {
			return fmt.Errorf("restore health registry %s: %w", r.ID, err)
		}
	}
	return nil
}

// Snapshot is the point-in-time state raft.FSMSnapshot persists/restores.
type Snapshot struct {
	Clusters         []*types.Cluster
	Nodes            []*types.Node
	Profiles         []*types.Profile
	Policies         []*types.Policy
	HealthRegistries []*types.HealthRegistry
}

func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *Snapshot) Release() {}
