package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketClusters        = []byte("clusters")
	bucketNodes           = []byte("nodes")
	bucketProfiles        = []byte("profiles")
	bucketPolicies        = []byte("policies")
	bucketClusterPolicies = []byte("cluster_policies")
	bucketActions         = []byte("actions")
	bucketClusterLocks    = []byte("cluster_locks")
	bucketNodeLocks       = []byte("node_locks")
	bucketHealthRegistry  = []byte("health_registry")
	bucketEvents          = []byte("events")
	bucketHeartbeats      = []byte("engine_heartbeats")
	bucketSignals         = []byte("action_signals")
	bucketCA              = []byte("ca_material")
	caKey                 = []byte("root")
)

// BoltStore implements Store using bbolt, one bucket per record kind,
// grounded on the teacher's pkg/storage/boltdb.go CreateBucketIfNotExists +
// JSON Put/Get/ForEach idiom.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the bbolt database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "fleetd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketClusters, bucketNodes, bucketProfiles, bucketPolicies,
			bucketClusterPolicies, bucketActions, bucketClusterLocks,
			bucketNodeLocks, bucketHealthRegistry, bucketEvents,
			bucketHeartbeats, bucketSignals, bucketCA,
		}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// --- CA material (pkg/security.CAStore) ----------------------------------

// GetCA returns the previously-saved CA material blob, or an error if none
// has been saved yet.
func (s *BoltStore) GetCA() ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCA).Get(caKey)
		if v == nil {
			return fmt.Errorf("no CA material saved")
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// SaveCA persists the CA material blob, overwriting any previous value.
func (s *BoltStore) SaveCA(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCA).Put(caKey, data)
	})
}

// --- Clusters ---------------------------------------------------------

func (s *BoltStore) CreateCluster(c *types.Cluster) error {
	return s.put(bucketClusters, c.ID, c)
}

func (s *BoltStore) GetCluster(id string) (*types.Cluster, error) {
	var c types.Cluster
	if err := s.get(bucketClusters, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) ListClusters() ([]*types.Cluster, error) {
	var out []*types.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).ForEach(func(k, v []byte) error {
			var c types.Cluster
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateCluster(c *types.Cluster) error { return s.CreateCluster(c) }

func (s *BoltStore) DeleteCluster(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).Delete([]byte(id))
	})
}

// --- Nodes --------------------------------------------------------------

func (s *BoltStore) CreateNode(n *types.Node) error {
	return s.put(bucketNodes, n.ID, n)
}

func (s *BoltStore) GetNode(id string) (*types.Node, error) {
	var n types.Node
	if err := s.get(bucketNodes, id, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) ListNodes() ([]*types.Node, error) {
	var out []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n types.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out = append(out, &n)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListNodesByCluster(clusterID string) ([]*types.Node, error) {
	all, err := s.ListNodes()
	if err != nil {
		return nil, err
	}
	var out []*types.Node
	for _, n := range all {
		if n.ClusterID == clusterID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateNode(n *types.Node) error { return s.CreateNode(n) }

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(id))
	})
}

// --- Profiles -------------------------------------------------------------

func (s *BoltStore) CreateProfile(p *types.Profile) error { return s.put(bucketProfiles, p.ID, p) }

func (s *BoltStore) GetProfile(id string) (*types.Profile, error) {
	var p types.Profile
	if err := s.get(bucketProfiles, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListProfiles() ([]*types.Profile, error) {
	var out []*types.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var p types.Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateProfile(p *types.Profile) error { return s.CreateProfile(p) }

func (s *BoltStore) DeleteProfile(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).Delete([]byte(id))
	})
}

// --- Policies -------------------------------------------------------------

func (s *BoltStore) CreatePolicy(p *types.Policy) error { return s.put(bucketPolicies, p.ID, p) }

func (s *BoltStore) GetPolicy(id string) (*types.Policy, error) {
	var p types.Policy
	if err := s.get(bucketPolicies, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListPolicies() ([]*types.Policy, error) {
	var out []*types.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).ForEach(func(k, v []byte) error {
			var p types.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdatePolicy(p *types.Policy) error { return s.CreatePolicy(p) }

func (s *BoltStore) DeletePolicy(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).Delete([]byte(id))
	})
}

// --- ClusterPolicy bindings -------------------------------------------------

func clusterPolicyKey(clusterID, policyID string) string { return clusterID + "/" + policyID }

func (s *BoltStore) CreateClusterPolicy(b *types.ClusterPolicy) error {
	return s.put(bucketClusterPolicies, clusterPolicyKey(b.ClusterID, b.PolicyID), b)
}

func (s *BoltStore) GetClusterPolicy(clusterID, policyID string) (*types.ClusterPolicy, error) {
	var b types.ClusterPolicy
	if err := s.get(bucketClusterPolicies, clusterPolicyKey(clusterID, policyID), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BoltStore) ListClusterPolicies(clusterID string) ([]*types.ClusterPolicy, error) {
	var out []*types.ClusterPolicy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterPolicies).ForEach(func(k, v []byte) error {
			var b types.ClusterPolicy
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			if clusterID == "" || b.ClusterID == clusterID {
				out = append(out, &b)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateClusterPolicy(b *types.ClusterPolicy) error { return s.CreateClusterPolicy(b) }

func (s *BoltStore) DeleteClusterPolicy(clusterID, policyID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusterPolicies).Delete([]byte(clusterPolicyKey(clusterID, policyID)))
	})
}

// --- generic helpers --------------------------------------------------------

func (s *BoltStore) put(bucket []byte, key string, v any) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, v any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return apierror.NotFound(fmt.Sprintf("%s %s not found", bucket, key))
		}
		return json.Unmarshal(data, v)
	})
}
