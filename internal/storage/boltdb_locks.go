package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	bolt "go.etcd.io/bbolt"
)

// ClusterLockAcquire implements cluster_lock_acquire (§4.1/§4.2).
func (s *BoltStore) ClusterLockAcquire(clusterID, actionID string, scope types.LockSemantics, now time.Time, retention time.Duration) (string, error) {
	return s.lockAcquire(bucketClusterLocks, clusterID, actionID, scope, now, retention)
}

// ClusterLockRelease implements cluster_lock_release; idempotent.
func (s *BoltStore) ClusterLockRelease(clusterID, actionID string) error {
	return s.lockRelease(bucketClusterLocks, clusterID, actionID)
}

// NodeLockAcquire implements node_lock_acquire; node locks are always
// EXCLUSIVE (§3/§4.2).
func (s *BoltStore) NodeLockAcquire(nodeID, actionID string, now time.Time, retention time.Duration) (string, error) {
	return s.lockAcquire(bucketNodeLocks, nodeID, actionID, types.Exclusive, now, retention)
}

func (s *BoltStore) NodeLockRelease(nodeID, actionID string) error {
	return s.lockRelease(bucketNodeLocks, nodeID, actionID)
}

func (s *BoltStore) lockAcquire(bucket []byte, resourceID, actionID string, scope types.LockSemantics, now time.Time, retention time.Duration) (string, error) {
	var stolen string
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data := b.Get([]byte(resourceID))
		if data == nil {
			lock := types.Lock{ResourceID: resourceID, ActionIDs: []string{actionID}, Semantics: scope}
			return putLock(b, &lock)
		}

		var lock types.Lock
		if err := json.Unmarshal(data, &lock); err != nil {
			return err
		}

		if contains(lock.ActionIDs, actionID) {
			return nil
		}

		if lock.Semantics == types.Shared && scope == types.Shared {
			lock.ActionIDs = append(lock.ActionIDs, actionID)
			return putLock(b, &lock)
		}

		allStale, holder, err := s.allHoldersStale(tx, lock.ActionIDs, now, retention)
		if err != nil {
			return err
		}
		if !allStale {
			return apierror.Conflict(fmt.Sprintf("%s lock held by a live owner", resourceID))
		}

		stolen = holder
		lock.ActionIDs = []string{actionID}
		lock.Semantics = scope
		return putLock(b, &lock)
	})
	return stolen, err
}

func (s *BoltStore) lockRelease(bucket []byte, resourceID, actionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data := b.Get([]byte(resourceID))
		if data == nil {
			return nil
		}
		var lock types.Lock
		if err := json.Unmarshal(data, &lock); err != nil {
			return err
		}
		lock.ActionIDs = removeString(lock.ActionIDs, actionID)
		if len(lock.ActionIDs) == 0 {
			return b.Delete([]byte(resourceID))
		}
		return putLock(b, &lock)
	})
}

// ReleaseLocksForAction sweeps both lock keyspaces for actionID, used when
// an action reaches a terminal state (§4.1 mark_{succeeded,failed,cancelled}).
func (s *BoltStore) ReleaseLocksForAction(actionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return releaseActionLocks(tx, actionID)
	})
}

func releaseActionLocks(tx *bolt.Tx, actionID string) error {
	for _, bucket := range [][]byte{bucketClusterLocks, bucketNodeLocks} {
		b := tx.Bucket(bucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var lock types.Lock
			if err := json.Unmarshal(v, &lock); err != nil {
				return err
			}
			if !contains(lock.ActionIDs, actionID) {
				continue
			}
			lock.ActionIDs = removeString(lock.ActionIDs, actionID)
			if len(lock.ActionIDs) == 0 {
				if err := b.Delete(k); err != nil {
					return err
				}
				continue
			}
			if err := putLock(b, &lock); err != nil {
				return err
			}
		}
	}
	return nil
}

// allHoldersStale reports whether every current holder of a lock is
// stale: its owning engine has missed its heartbeat for longer than
// retention, or the holding action is gone/terminal. Returns one stale
// holder id as the representative "stolen from" action.
func (s *BoltStore) allHoldersStale(tx *bolt.Tx, holders []string, now time.Time, retention time.Duration) (bool, string, error) {
	actions := tx.Bucket(bucketActions)
	heartbeats := tx.Bucket(bucketHeartbeats)
	representative := ""
	for _, id := range holders {
		data := actions.Get([]byte(id))
		if data == nil {
			representative = id
			continue
		}
		var a types.Action
		if err := json.Unmarshal(data, &a); err != nil {
			return false, "", err
		}
		if a.Status.Terminal() {
			representative = id
			continue
		}
		if a.Owner == "" {
			representative = id
			continue
		}
		hbData := heartbeats.Get([]byte(a.Owner))
		if hbData == nil {
			representative = id
			continue
		}
		var hb types.EngineHeartbeat
		if err := json.Unmarshal(hbData, &hb); err != nil {
			return false, "", err
		}
		if now.Sub(hb.LastSeen) <= retention {
			return false, "", nil
		}
		representative = id
	}
	return true, representative, nil
}

func putLock(b *bolt.Bucket, lock *types.Lock) error {
	data, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	return b.Put([]byte(lock.ResourceID), data)
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Heartbeat implements the engine-liveness table write side.
func (s *BoltStore) Heartbeat(engineID string, now time.Time) error {
	return s.put(bucketHeartbeats, engineID, &types.EngineHeartbeat{EngineID: engineID, LastSeen: now})
}

// EngineAlive reports whether engineID has heartbeated within staleAfter.
func (s *BoltStore) EngineAlive(engineID string, now time.Time, staleAfter time.Duration) (bool, error) {
	var hb types.EngineHeartbeat
	if err := s.get(bucketHeartbeats, engineID, &hb); err != nil {
		if apierror.Is(err, apierror.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return now.Sub(hb.LastSeen) <= staleAfter, nil
}
