// Package action is the durable action store's client-facing primitives
// (§4.1/§4.3): creating actions and dependency edges, the cooperative
// signal protocol, and terminal-state bookkeeping that also appends the
// Event record §7 requires ("All terminal transitions emit an Event record
// at the appropriate level"). It is grounded on Senlin's
// engine/actions/base.py Action class: the SIG_* constants, RES_* result
// codes and is_timeout/_check_signal yield-point pattern below are a
// direct port of that module's vocabulary into Go.
package action

import (
	"time"

	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/events"
	"github.com/google/uuid"
)

// Signal values written by action_signal / read by action_signal_query.
// Mirrors base.py's SIG_CANCEL/SIG_SUSPEND/SIG_RESUME.
const (
	SignalCancel  = "CANCEL"
	SignalSuspend = "SUSPEND"
	SignalResume  = "RESUME"
	SignalNone    = ""
)

// Result is the outcome an executor's execute() returns, mirroring
// base.py's RES_OK/RES_ERROR/RES_RETRY/RES_CANCEL/RES_TIMEOUT.
type Result string

const (
	ResultOK      Result = "OK"
	ResultError   Result = "ERROR"
	ResultRetry   Result = "RETRY"
	ResultCancel  Result = "CANCEL"
	ResultTimeout Result = "TIMEOUT"
)

// Store is the action-lifecycle façade over the persistence layer: every
// caller that mutates an action's lifecycle (dispatcher, worker, executors)
// goes through here rather than storage.Store directly, so that event
// emission and id/timestamp defaulting happen exactly once.
type Store struct {
	db     storage.Store
	broker *events.Broker
}

// New builds an action Store.
func New(db storage.Store, broker *events.Broker) *Store {
	return &Store{db: db, broker: broker}
}

// Create persists a new action, defaulting its id/timestamps, and wires
// any requested dependency edges (§3 "Action is created READY (or INIT
// while dependencies being wired)").
func (s *Store) Create(a *types.Action, dependsOn ...string) (*types.Action, error) {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.TimeoutS == 0 {
		a.TimeoutS = 3600
	}
	if a.IntervalS == 0 {
		a.IntervalS = types.OneShot
	}
	if len(dependsOn) == 0 {
		a.Status = types.ActionReady
	} else {
		a.Status = types.ActionInit
	}

	if _, err := s.db.CreateAction(a); err != nil {
		return nil, err
	}
	if len(dependsOn) > 0 {
		if err := s.db.AddDependency(dependsOn, a.ID); err != nil {
			return nil, err
		}
		refreshed, err := s.db.GetAction(a.ID)
		if err != nil {
			return nil, err
		}
		a = refreshed
	}

	s.emit(a, types.EventInfo, string(a.Status), "action created")
	return a, nil
}

func (s *Store) Get(id string) (*types.Action, error) { return s.db.GetAction(id) }

func (s *Store) List(filter storage.ActionFilter) ([]*types.Action, error) {
	return s.db.ListActions(filter)
}

// Signal writes a pending cooperative-cancellation signal (§4.1).
func (s *Store) Signal(id, cmd string) error { return s.db.Signal(id, cmd) }

// SignalQuery reads the pending signal, or SignalNone.
func (s *Store) SignalQuery(id string) (string, error) { return s.db.SignalQuery(id) }

// IsTimeout reports whether a RUNNING/SUSPENDED action has exceeded its
// budget (§4.3 "if now - start_time > timeout_s").
func IsTimeout(a *types.Action, now time.Time) bool {
	if a.StartTime.IsZero() || a.TimeoutS <= 0 {
		return false
	}
	return now.Sub(a.StartTime) > time.Duration(a.TimeoutS)*time.Second
}

// Succeed marks id SUCCEEDED, releasing locks and promoting/cascading
// dependents, and appends the terminal Event.
func (s *Store) Succeed(id string, outputs map[string]any) error {
	now := time.Now().UTC()
	if err := s.db.MarkSucceeded(id, now, outputs); err != nil {
		return err
	}
	return s.emitByID(id, types.EventInfo, string(types.ActionSucceeded), "")
}

// Fail marks id FAILED with reason, cascading FAILED to waiting dependents.
func (s *Store) Fail(id, reason string) error {
	now := time.Now().UTC()
	if err := s.db.MarkFailed(id, now, reason); err != nil {
		return err
	}
	return s.emitByID(id, types.EventError, string(types.ActionFailed), reason)
}

// Cancel marks id CANCELLED with reason.
func (s *Store) Cancel(id, reason string) error {
	now := time.Now().UTC()
	if err := s.db.MarkCancelled(id, now, reason); err != nil {
		return err
	}
	return s.emitByID(id, types.EventWarning, string(types.ActionCancelled), reason)
}

// Retry returns a RUNNING action to READY after releasing its locks
// (§4.3 "RUNNING -> READY (abandon/retry) when executor returns RETRY").
func (s *Store) Retry(id string) error {
	return s.db.Abandon(id)
}

func (s *Store) SaveData(id string, data map[string]any) error {
	return s.db.SaveActionData(id, data)
}

func (s *Store) emitByID(id string, level types.EventLevel, status, reason string) error {
	a, err := s.db.GetAction(id)
	if err != nil {
		return err
	}
	s.emit(a, level, status, reason)
	return nil
}

func (s *Store) emit(a *types.Action, level types.EventLevel, status, reason string) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(&events.Event{
		Level:    events.Level(level),
		ActionID: a.ID,
		ObjType:  "action",
		ObjID:    a.ID,
		ObjName:  a.Name,
		Status:   status,
		Reason:   reason,
	})
}
