package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	bolt "go.etcd.io/bbolt"
)

func (s *BoltStore) CreateAction(a *types.Action) (string, error) {
	if a.Status == "" {
		if len(a.DependsOn) == 0 {
			a.Status = types.ActionReady
		} else {
			a.Status = types.ActionInit
		}
	}
	if err := s.put(bucketActions, a.ID, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *BoltStore) GetAction(id string) (*types.Action, error) {
	var a types.Action
	if err := s.get(bucketActions, id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) ListActions(filter ActionFilter) ([]*types.Action, error) {
	var out []*types.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActions).ForEach(func(k, v []byte) error {
			var a types.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if filter.Target != "" && a.Target != filter.Target {
				return nil
			}
			if filter.Status != "" && a.Status != filter.Status {
				return nil
			}
			if filter.Action != "" && a.Action != filter.Action {
				return nil
			}
			out = append(out, &a)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteAction(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		var a types.Action
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		if !a.Status.Terminal() {
			return apierror.Conflict(fmt.Sprintf("action %s is not terminal", id))
		}
		return b.Delete([]byte(id))
	})
}

// AcquireFirstReady implements action_acquire_first_ready (§4.1): scans for
// any READY action and atomically claims it for owner.
func (s *BoltStore) AcquireFirstReady(owner string, now time.Time) (*types.Action, error) {
	var claimed *types.Action
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var a types.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.Status != types.ActionReady {
				continue
			}
			a.Owner = owner
			a.StartTime = now
			a.Status = types.ActionRunning
			a.UpdatedAt = now
			data, err := json.Marshal(&a)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			claimed = &a
			return nil
		}
		return ErrNoReadyAction
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// MarkSucceeded implements action_mark_succeeded (§4.1): terminal status,
// release locks, promote/cascade dependents.
func (s *BoltStore) MarkSucceeded(id string, now time.Time, outputs map[string]any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.markTerminal(tx, id, types.ActionSucceeded, now, "", outputs)
	})
}

// MarkFailed implements action_mark_failed; cascades FAILED with reason
// "parent <id> did not succeed" to every non-terminal dependent (§4.3/§5).
func (s *BoltStore) MarkFailed(id string, now time.Time, reason string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.markTerminal(tx, id, types.ActionFailed, now, reason, nil)
	})
}

func (s *BoltStore) MarkCancelled(id string, now time.Time, reason string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.markTerminal(tx, id, types.ActionCancelled, now, reason, nil)
	})
}

// markTerminal sets id's terminal status, releases its locks, and
// re-evaluates (promoting or cascading) every action depending on it. It
// recurses so a CANCELLED/FAILED parent propagates depth-first to its
// entire waiting subtree, per §5 "Cancellation semantics".
func (s *BoltStore) markTerminal(tx *bolt.Tx, id string, status types.ActionStatus, now time.Time, reason string, outputs map[string]any) error {
	b := tx.Bucket(bucketActions)
	data := b.Get([]byte(id))
	if data == nil {
		return apierror.NotFound(fmt.Sprintf("action %s not found", id))
	}
	var a types.Action
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Status.Terminal() {
		return nil
	}

	a.Status = status
	a.EndTime = now
	a.UpdatedAt = now
	a.Owner = ""
	if reason != "" {
		a.StatusReason = reason
	}
	if outputs != nil {
		a.Outputs = outputs
	}
	if err := putAction(b, &a); err != nil {
		return err
	}

	if err := releaseActionLocks(tx, id); err != nil {
		return err
	}

	for _, childID := range a.DependedBy {
		childData := b.Get([]byte(childID))
		if childData == nil {
			continue
		}
		var child types.Action
		if err := json.Unmarshal(childData, &child); err != nil {
			return err
		}
		if child.Status.Terminal() {
			continue
		}

		if status != types.ActionSucceeded {
			if err := s.markTerminal(tx, childID, types.ActionFailed, now, fmt.Sprintf("parent %s did not succeed", id), nil); err != nil {
				return err
			}
			continue
		}

		ready, failedParent, err := allParentsResolved(b, child.DependsOn)
		if err != nil {
			return err
		}
		if failedParent != "" {
			if err := s.markTerminal(tx, childID, types.ActionFailed, now, fmt.Sprintf("parent %s did not succeed", failedParent), nil); err != nil {
				return err
			}
			continue
		}
		if ready && (child.Status == types.ActionWaiting || child.Status == types.ActionInit) {
			child.Status = types.ActionReady
			child.UpdatedAt = now
			if err := putAction(b, &child); err != nil {
				return err
			}
		}
	}
	return nil
}

// allParentsResolved reports whether every parent in ids is terminal, and
// if any parent terminated other than SUCCEEDED, returns its id.
func allParentsResolved(b *bolt.Bucket, ids []string) (allTerminalSuccess bool, failedParent string, err error) {
	for _, pid := range ids {
		data := b.Get([]byte(pid))
		if data == nil {
			continue
		}
		var p types.Action
		if err := json.Unmarshal(data, &p); err != nil {
			return false, "", err
		}
		if !p.Status.Terminal() {
			return false, "", nil
		}
		if p.Status != types.ActionSucceeded {
			return false, pid, nil
		}
	}
	return true, "", nil
}

func (s *BoltStore) Abandon(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		data := b.Get([]byte(id))
		if data == nil {
			return apierror.NotFound(fmt.Sprintf("action %s not found", id))
		}
		var a types.Action
		if err := json.Unmarshal(data, &a); err != nil {
			return err
		}
		a.Owner = ""
		a.Status = types.ActionReady
		a.UpdatedAt = time.Now().UTC()
		if err := releaseActionLocks(tx, id); err != nil {
			return err
		}
		return putAction(b, &a)
	})
}

func (s *BoltStore) SaveActionData(id string, data map[string]any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		raw := b.Get([]byte(id))
		if raw == nil {
			return apierror.NotFound(fmt.Sprintf("action %s not found", id))
		}
		var a types.Action
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		a.Data = data
		a.UpdatedAt = time.Now().UTC()
		return putAction(b, &a)
	})
}

// Signal/SignalQuery implement action_signal/action_signal_query (§4.1):
// a pending signal (CANCEL/SUSPEND/RESUME) written idempotently per id.
func (s *BoltStore) Signal(id string, cmd string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSignals).Put([]byte(id), []byte(cmd))
	})
}

func (s *BoltStore) SignalQuery(id string) (string, error) {
	var cmd string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSignals).Get([]byte(id))
		if v != nil {
			cmd = string(v)
		}
		return nil
	})
	return cmd, err
}

func (s *BoltStore) clearSignal(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSignals).Delete([]byte(id))
	})
}

// AddDependency implements action_add_dependency (§4.1): both directions
// are persisted on the Action records themselves so orphan recovery needs
// no separate edge table.
func (s *BoltStore) AddDependency(parentIDs []string, childID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketActions)
		childData := b.Get([]byte(childID))
		if childData == nil {
			return apierror.NotFound(fmt.Sprintf("action %s not found", childID))
		}
		var child types.Action
		if err := json.Unmarshal(childData, &child); err != nil {
			return err
		}

		for _, pid := range parentIDs {
			if !contains(child.DependsOn, pid) {
				child.DependsOn = append(child.DependsOn, pid)
			}
			pData := b.Get([]byte(pid))
			if pData == nil {
				continue
			}
			var parent types.Action
			if err := json.Unmarshal(pData, &parent); err != nil {
				return err
			}
			if !contains(parent.DependedBy, childID) {
				parent.DependedBy = append(parent.DependedBy, childID)
			}
			if err := putAction(b, &parent); err != nil {
				return err
			}
		}

		allSucceeded, failedParent, err := allParentsResolved(b, child.DependsOn)
		if err != nil {
			return err
		}
		switch {
		case failedParent != "":
			child.Status = types.ActionFailed
			child.StatusReason = fmt.Sprintf("parent %s did not succeed", failedParent)
		case allSucceeded:
			child.Status = types.ActionReady
		default:
			child.Status = types.ActionWaiting
		}
		child.UpdatedAt = time.Now().UTC()
		return putAction(b, &child)
	})
}

func (s *BoltStore) GetDepended(id string) ([]string, error) {
	a, err := s.GetAction(id)
	if err != nil {
		return nil, err
	}
	return a.DependsOn, nil
}

func (s *BoltStore) GetDependents(id string) ([]string, error) {
	a, err := s.GetAction(id)
	if err != nil {
		return nil, err
	}
	return a.DependedBy, nil
}

func putAction(b *bolt.Bucket, a *types.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.Put([]byte(a.ID), data)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
