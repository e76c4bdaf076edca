// Package engine wires one process's worth of collaborators together and
// drives the Raft bootstrap/join sequence: storage, FSM, raft, dispatcher,
// health manager and policy registry, the runtime kernel (§2/§5) every
// other package in this repo ultimately serves.
package engine

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/dispatcher"
	"github.com/cuemby/fleetd/internal/executor"
	"github.com/cuemby/fleetd/internal/health"
	"github.com/cuemby/fleetd/internal/lock"
	"github.com/cuemby/fleetd/internal/policy"
	"github.com/cuemby/fleetd/internal/profile"
	"github.com/cuemby/fleetd/internal/raftfsm"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/config"
	"github.com/cuemby/fleetd/pkg/events"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/metrics"

	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Engine is one running instance of the orchestrator: its storage, Raft
// replication, dispatcher, health manager and policy/profile registries.
type Engine struct {
	cfg    config.Engine
	logger zerolog.Logger

	store   storage.Store
	fsm     *raftfsm.FSM
	raft    *raft.Raft
	broker  *events.Broker
	actions *action.Store
	locks   *lock.Manager

	Policies *policy.Registry
	Profiles *profile.Registry

	policyEngine *policy.Engine
	rt           *executor.Runtime
	dispatcher   *dispatcher.Dispatcher
	health       *health.Manager
	collector    *metrics.Collector

	eventSub   events.Subscriber
	eventsDone chan struct{}
}

// New assembles an Engine's collaborators but does not yet start Raft or
// the dispatcher; call Bootstrap or Join, then Start.
func New(cfg config.Engine) (*Engine, error) {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.New().String()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create data dir: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: open store: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	actions := action.New(store, broker)
	locks := lock.NewManager(store, broker, time.Duration(cfg.LockRetentionS)*time.Second)

	policyRegistry := policy.NewRegistry()
	profileRegistry := profile.NewRegistry()
	policyEngine := policy.NewEngine(store, policyRegistry, broker)

	rt := &executor.Runtime{
		Store:             store,
		Locks:             locks,
		Actions:           actions,
		Policies:          policyEngine,
		Profiles:          profileRegistry,
		MaxUpdateParallel: cfg.MaxUpdateParallel,
	}

	e := &Engine{
		cfg:          cfg,
		logger:       log.WithComponent("engine").With().Str("engine_id", cfg.NodeID).Logger(),
		store:        store,
		fsm:          raftfsm.New(store),
		broker:       broker,
		actions:      actions,
		locks:        locks,
		Policies:     policyRegistry,
		Profiles:     profileRegistry,
		policyEngine: policyEngine,
		rt:           rt,
		dispatcher:   dispatcher.New(rt, cfg.NodeID, cfg.WorkersPerEngine, 200*time.Millisecond),
		health:       health.New(store, actions, broker, cfg.NodeID, time.Duration(cfg.EngineLifeCheckTimeout)*time.Second/2, time.Duration(cfg.EngineLifeCheckTimeout)*time.Second),
		collector:    metrics.NewCollector(store),
		eventsDone:   make(chan struct{}),
	}
	return e, nil
}

// raftConfig builds the tuned hashicorp/raft config shared by Bootstrap
// and Join, mirroring the teacher's reduced heartbeat/election/lease
// timeouts for faster LAN failover.
func (e *Engine) raftConfig() *raft.Config {
	c := raft.DefaultConfig()
	c.LocalID = raft.ServerID(e.cfg.NodeID)
	c.HeartbeatTimeout = 500 * time.Millisecond
	c.ElectionTimeout = 500 * time.Millisecond
	c.CommitTimeout = 50 * time.Millisecond
	c.LeaderLeaseTimeout = 250 * time.Millisecond
	return c
}

func (e *Engine) newRaft() (*raft.Raft, *raft.TCPTransport, error) {
	addr, err := net.ResolveTCPAddr("tcp", e.cfg.BindAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(e.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create transport: %w", err)
	}
	snapshotStore, err := raft.NewFileSnapshotStore(e.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("create stable store: %w", err)
	}
	r, err := raft.NewRaft(e.raftConfig(), e.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, nil, fmt.Errorf("create raft: %w", err)
	}
	return r, transport, nil
}

// Bootstrap initializes a brand-new single-node Raft cluster.
func (e *Engine) Bootstrap() error {
	r, transport, err := e.newRaft()
	if err != nil {
		return err
	}
	e.raft = r

	future := r.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(e.cfg.NodeID), Address: transport.LocalAddr()}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("bootstrap cluster: %w", err)
	}
	return nil
}

// Join starts Raft without bootstrapping; the caller is expected to have
// already been added to the existing cluster's configuration via the
// leader's AddVoter RPC (out of this package's scope, matching how the
// teacher's manager.Join leaves cluster-membership RPCs to its API layer).
func (e *Engine) Join() error {
	r, _, err := e.newRaft()
	if err != nil {
		return err
	}
	e.raft = r
	return nil
}

// Start begins the dispatcher worker pool and the health manager. Call
// after Bootstrap or Join.
func (e *Engine) Start() {
	e.dispatcher.Start()
	e.health.Start()
	e.collector.Start()
	go e.heartbeatLoop()
	go e.persistEvents()
	e.logger.Info().Msg("engine started")
}

// Stop drains the dispatcher and health manager and shuts Raft down.
func (e *Engine) Stop() {
	e.dispatcher.Stop()
	e.health.Stop()
	e.collector.Stop()
	if e.raft != nil {
		_ = e.raft.Shutdown().Error()
	}
	close(e.eventsDone)
	if e.eventSub != nil {
		e.broker.Unsubscribe(e.eventSub)
	}
	e.broker.Stop()
	_ = e.store.Close()
}

// persistEvents drains the broker's event feed into the storage adapter's
// append-only Event log (§3), so GET /events (api/restv1/events.go) has
// something durable to read back: the broker alone is an in-memory fanout
// for live watchers and was never wired to a persistence subscriber.
// Mirrors internal/health.Manager's own lifecycleLoop subscription shape.
func (e *Engine) persistEvents() {
	e.eventSub = e.broker.Subscribe()
	for {
		select {
		case <-e.eventsDone:
			return
		case ev, ok := <-e.eventSub:
			if !ok {
				return
			}
			record := &types.Event{
				ID:        uuid.New().String(),
				Timestamp: ev.Timestamp,
				Level:     types.EventLevel(ev.Level),
				ActionID:  ev.ActionID,
				ObjType:   ev.ObjType,
				ObjID:     ev.ObjID,
				ObjName:   ev.ObjName,
				Status:    ev.Status,
				Reason:    ev.Reason,
				User:      ev.User,
				Project:   ev.Project,
			}
			if err := e.store.AppendEvent(record); err != nil {
				e.logger.Error().Err(err).Msg("persist event failed")
			}
		}
	}
}

// heartbeatLoop stamps this engine's liveness row (§4.1/§4.2) so peers can
// tell a genuinely dead engine from a merely slow one for lock-steal and
// registry_claim purposes.
func (e *Engine) heartbeatLoop() {
	interval := time.Duration(e.cfg.EngineLifeCheckTimeout) * time.Second / 4
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := e.store.Heartbeat(e.cfg.NodeID, time.Now().UTC()); err != nil {
			e.logger.Error().Err(err).Msg("heartbeat failed")
		}
		if e.raft != nil {
			if e.raft.State() == raft.Leader {
				metrics.RaftLeader.Set(1)
			} else {
				metrics.RaftLeader.Set(0)
			}
		}
	}
}

// Store exposes the storage adapter for the API layers.
func (e *Engine) Store() storage.Store { return e.store }

// Actions exposes the action-lifecycle façade for the API layers.
func (e *Engine) Actions() *action.Store { return e.actions }

// Locks exposes the lock manager for the API layers.
func (e *Engine) Locks() *lock.Manager { return e.locks }

// IsLeader reports whether this engine currently holds Raft leadership.
func (e *Engine) IsLeader() bool { return e.raft != nil && e.raft.State() == raft.Leader }

// Config returns the resolved engine configuration.
func (e *Engine) Config() config.Engine { return e.cfg }

// Broker exposes the event broker for the API layers' watch endpoints.
func (e *Engine) Broker() *events.Broker { return e.broker }

// Health exposes the Health manager for the healthrpc service.
func (e *Engine) Health() *health.Manager { return e.health }
