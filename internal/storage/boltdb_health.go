package storage

import (
	"encoding/json"
	"time"

	"github.com/cuemby/fleetd/internal/types"
	bolt "go.etcd.io/bbolt"
)

func (s *BoltStore) CreateHealthRegistry(r *types.HealthRegistry) error {
	return s.put(bucketHealthRegistry, r.ID, r)
}

func (s *BoltStore) GetHealthRegistry(id string) (*types.HealthRegistry, error) {
	var r types.HealthRegistry
	if err := s.get(bucketHealthRegistry, id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BoltStore) ListHealthRegistries() ([]*types.HealthRegistry, error) {
	var out []*types.HealthRegistry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHealthRegistry).ForEach(func(k, v []byte) error {
			var r types.HealthRegistry
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateHealthRegistry(r *types.HealthRegistry) error {
	return s.CreateHealthRegistry(r)
}

func (s *BoltStore) DeleteHealthRegistry(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHealthRegistry).Delete([]byte(id))
	})
}

// ClaimRegistry implements registry_claim (§4.1/§4.6): atomically assigns
// unclaimed rows, or rows whose previous owner is absent from the
// engine-liveness table for longer than staleAfter, to engineID. Returns
// every row now claimed by engineID, so the health manager can rebuild its
// runtime registry in one call.
func (s *BoltStore) ClaimRegistry(engineID string, now time.Time, staleAfter time.Duration) ([]*types.HealthRegistry, error) {
	var claimed []*types.HealthRegistry
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHealthRegistry)
		heartbeats := tx.Bucket(bucketHeartbeats)

		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r types.HealthRegistry
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}

			if r.EngineID == engineID {
				claimed = append(claimed, &r)
				continue
			}

			stale := r.EngineID == ""
			if !stale {
				hbData := heartbeats.Get([]byte(r.EngineID))
				if hbData == nil {
					stale = true
				} else {
					var hb types.EngineHeartbeat
					if err := json.Unmarshal(hbData, &hb); err != nil {
						return err
					}
					stale = now.Sub(hb.LastSeen) > staleAfter
				}
			}
			if !stale {
				continue
			}

			r.EngineID = engineID
			r.UpdatedAt = now
			data, err := json.Marshal(&r)
			if err != nil {
				return err
			}
			if err := b.Put(k, data); err != nil {
				return err
			}
			claimed = append(claimed, &r)
		}
		return nil
	})
	return claimed, err
}
