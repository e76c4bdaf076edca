package storage

import (
	"encoding/json"
	"sort"

	"github.com/cuemby/fleetd/internal/types"
	bolt "go.etcd.io/bbolt"
)

// AppendEvent implements the append-only Event log of §3, keyed by the
// event's own id. Ids are random, so ListEvents sorts by Timestamp to
// return events oldest first.
func (s *BoltStore) AppendEvent(e *types.Event) error {
	return s.put(bucketEvents, e.ID, e)
}

func (s *BoltStore) ListEvents(filter EventFilter) ([]*types.Event, error) {
	var out []*types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var e types.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if filter.ObjType != "" && e.ObjType != filter.ObjType {
				return nil
			}
			if filter.ObjID != "" && e.ObjID != filter.ObjID {
				return nil
			}
			if filter.Level != "" && e.Level != filter.Level {
				return nil
			}
			out = append(out, &e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}
