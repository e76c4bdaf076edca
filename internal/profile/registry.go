package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
)

// Driver is the flat capability interface every profile type implements
// (§9 "Registry of type-name -> factory(spec) -> Policy|Profile capability
// objects ... No inheritance hierarchy"). It is the Go analogue of
// Senlin's profiles/base.py Profile class, trimmed to the operations the
// NODE_* executors call into.
type Driver interface {
	// Validate checks spec against the type's schema before a Profile
	// record is created.
	Validate(spec map[string]any) error
	// Create provisions a new backing resource for node n, returning the
	// driver-assigned physical id and any data to persist on the node.
	Create(ctx context.Context, n *types.Node, spec map[string]any) (physicalID string, data map[string]any, err error)
	Update(ctx context.Context, n *types.Node, spec map[string]any) error
	Delete(ctx context.Context, n *types.Node) error
	Check(ctx context.Context, n *types.Node) (types.NodeStatus, string, error)
	Recover(ctx context.Context, n *types.Node, params map[string]any) error
	// Join/Leave adapt an existing physical resource into/out of a
	// cluster without re-provisioning it (§4.4 CLUSTER_ADD_NODES/DEL_NODES).
	Join(ctx context.Context, n *types.Node, clusterID string) error
	Leave(ctx context.Context, n *types.Node) error
	GetDetails(ctx context.Context, n *types.Node) (map[string]any, error)
}

// Factory builds a Driver bound to one profile's spec.
type Factory func(spec map[string]any) (Driver, error)

// Registry maps a Profile.Type name to its Factory (§9).
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

func (r *Registry) Build(p *types.Profile) (Driver, error) {
	r.mu.RLock()
	f, ok := r.factories[p.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, apierror.Validation(fmt.Sprintf("unknown profile type %q", p.Type))
	}
	return f(p.Spec)
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	return out
}
