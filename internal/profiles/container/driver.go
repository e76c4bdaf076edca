// Package container is the one concrete Profile-type driver this repo
// ships; profile-type drivers that speak to concrete infrastructure
// back-ends are otherwise out of the engine core's scope, but this one
// illustrative driver gives the containerd/runtime-spec stack a genuine
// home. It implements the internal/profile.Driver capability against a
// local containerd socket: client/namespace/image/task plumbing driving a
// Node's lifecycle.
package container

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	"github.com/cuemby/fleetd/pkg/health"
)

// DefaultNamespace is the containerd namespace this driver operates in.
const DefaultNamespace = "fleetd"

// spec is the validated shape of a container profile's Spec map: image,
// optional resource limits, and an optional health-check descriptor that
// is checked via pkg/health on NODE_CHECK.
type spec struct {
	Image       string
	CPULimit    float64
	MemoryLimit int64
	Env         []string
	Mounts      []specs.Mount
	HealthCheck *healthCheckSpec
}

type healthCheckSpec struct {
	Type    health.CheckType
	Target  string // URL for http, host:port for tcp
	Timeout time.Duration
}

// Driver implements internal/profile.Driver over a containerd socket.
type Driver struct {
	client    *containerd.Client
	namespace string
	spec      spec
}

// Factory builds a profile.Driver bound to one profile's spec, connecting
// to the containerd socket lazily on first use so that Validate (called at
// Profile-creation time, possibly on an engine with no local containerd)
// never needs a live connection.
func Factory(socketPath string) func(map[string]any) (Driver, error) {
	if socketPath == "" {
		socketPath = "/run/containerd/containerd.sock"
	}
	return func(raw map[string]any) (Driver, error) {
		s, err := parseSpec(raw)
		if err != nil {
			return Driver{}, err
		}
		return Driver{namespace: DefaultNamespace, spec: s}, nil
	}
}

func parseSpec(raw map[string]any) (spec, error) {
	image, _ := raw["image"].(string)
	if image == "" {
		return spec{}, apierror.Validation("container profile spec requires a non-empty 'image'")
	}
	s := spec{Image: image}
	if v, ok := raw["cpu_limit"].(float64); ok {
		s.CPULimit = v
	}
	if v, ok := raw["memory_limit"].(float64); ok {
		s.MemoryLimit = int64(v)
	}
	if envs, ok := raw["env"].([]any); ok {
		for _, e := range envs {
			if str, ok := e.(string); ok {
				s.Env = append(s.Env, str)
			}
		}
	}
	if mounts, ok := raw["mounts"].([]any); ok {
		for _, m := range mounts {
			mm, ok := m.(map[string]any)
			if !ok {
				continue
			}
			src, _ := mm["source"].(string)
			dst, _ := mm["destination"].(string)
			if src == "" || dst == "" {
				return spec{}, apierror.Validation("mounts entries require 'source' and 'destination'")
			}
			s.Mounts = append(s.Mounts, specs.Mount{
				Source:      src,
				Destination: dst,
				Type:        "bind",
				Options:     []string{"rbind", "ro"},
			})
		}
	}
	if hc, ok := raw["health_check"].(map[string]any); ok {
		parsed, err := parseHealthCheck(hc)
		if err != nil {
			return spec{}, err
		}
		s.HealthCheck = parsed
	}
	return s, nil
}

func parseHealthCheck(raw map[string]any) (*healthCheckSpec, error) {
	typ, _ := raw["type"].(string)
	target, _ := raw["target"].(string)
	if typ == "" || target == "" {
		return nil, apierror.Validation("health_check requires 'type' and 'target'")
	}
	timeout := 5 * time.Second
	if t, ok := raw["timeout_s"].(float64); ok && t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	switch health.CheckType(typ) {
	case health.CheckTypeHTTP, health.CheckTypeTCP, health.CheckTypeExec:
	default:
		return nil, apierror.Validation(fmt.Sprintf("unknown health_check type %q", typ))
	}
	if health.CheckType(typ) == health.CheckTypeHTTP {
		if _, err := url.ParseRequestURI(target); err != nil {
			return nil, apierror.Validation(fmt.Sprintf("invalid health_check target url: %v", err))
		}
	}
	return &healthCheckSpec{Type: health.CheckType(typ), Target: target, Timeout: timeout}, nil
}

// Validate checks a raw spec map without needing a live containerd
// connection, matching internal/profile.Driver's contract (§3 "Spec is
// schema-validated ... Profile.Validate checks spec before a Profile
// record is created").
func (d Driver) Validate(raw map[string]any) error {
	_, err := parseSpec(raw)
	return err
}

func (d Driver) connect() (*containerd.Client, error) {
	if d.client != nil {
		return d.client, nil
	}
	client, err := containerd.New("/run/containerd/containerd.sock")
	if err != nil {
		return nil, fmt.Errorf("connect to containerd: %w", err)
	}
	return client, nil
}

// Create provisions a new container for node n and starts its task,
// grounded on the teacher's CreateContainer + StartContainer sequence.
func (d Driver) Create(ctx context.Context, n *types.Node, raw map[string]any) (string, map[string]any, error) {
	s, err := parseSpec(raw)
	if err != nil {
		return "", nil, err
	}
	client, err := d.connect()
	if err != nil {
		return "", nil, err
	}
	defer client.Close()
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	image, err := client.Pull(ctx, s.Image, containerd.WithPullUnpack)
	if err != nil {
		return "", nil, fmt.Errorf("pull image %s: %w", s.Image, err)
	}

	opts := []oci.SpecOpts{oci.WithImageConfig(image), oci.WithEnv(s.Env)}
	if s.CPULimit > 0 {
		shares := uint64(s.CPULimit * 1024)
		quota := int64(s.CPULimit * 100000)
		opts = append(opts, oci.WithCPUShares(shares), oci.WithCPUCFS(quota, 100000))
	}
	if s.MemoryLimit > 0 {
		opts = append(opts, oci.WithMemoryLimit(uint64(s.MemoryLimit)))
	}
	if len(s.Mounts) > 0 {
		opts = append(opts, oci.WithMounts(s.Mounts))
	}

	ctr, err := client.NewContainer(
		ctx, n.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(n.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", err)
	}

	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return "", nil, fmt.Errorf("create task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return "", nil, fmt.Errorf("start task: %w", err)
	}

	return ctr.ID(), map[string]any{"image": s.Image, "pid": task.Pid()}, nil
}

// Update is a no-op resource adjustment: a container's spec is immutable
// after creation (the profile itself is immutable per §3); only
// name/metadata updates reach here, which the NODE_UPDATE executor already
// applies directly to the node record.
func (d Driver) Update(ctx context.Context, n *types.Node, raw map[string]any) error {
	return nil
}

// Delete stops the task (SIGTERM, falling back to SIGKILL on timeout) and
// removes the container, grounded on the teacher's StopContainer.
func (d Driver) Delete(ctx context.Context, n *types.Node) error {
	client, err := d.connect()
	if err != nil {
		return err
	}
	defer client.Close()
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	ctr, err := client.LoadContainer(ctx, n.ID)
	if err != nil {
		return nil // already gone
	}
	if task, err := ctr.Task(ctx, nil); err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_ = task.Kill(stopCtx, syscall.SIGTERM)
		exitCh, _ := task.Wait(stopCtx)
		select {
		case <-exitCh:
		case <-stopCtx.Done():
			_ = task.Kill(ctx, syscall.SIGKILL)
		}
		_, _ = task.Delete(ctx)
	}
	return ctr.Delete(ctx, containerd.WithSnapshotCleanup)
}

// Check runs the profile's declared health check (pkg/health), translating
// the result into the Node status NODE_CHECK persists (§4.4).
func (d Driver) Check(ctx context.Context, n *types.Node) (types.NodeStatus, string, error) {
	if d.spec.HealthCheck == nil {
		return types.NodeActive, "", nil
	}
	checker, err := d.buildChecker()
	if err != nil {
		return types.NodeError, err.Error(), nil
	}
	result := checker.Check(ctx)
	if result.Healthy {
		return types.NodeActive, "", nil
	}
	return types.NodeError, result.Message, nil
}

func (d Driver) buildChecker() (health.Checker, error) {
	hc := d.spec.HealthCheck
	switch hc.Type {
	case health.CheckTypeHTTP:
		checker := health.NewHTTPChecker(hc.Target)
		checker.Client.Timeout = hc.Timeout
		return checker, nil
	case health.CheckTypeTCP:
		checker := health.NewTCPChecker(hc.Target)
		checker.Timeout = hc.Timeout
		return checker, nil
	default:
		return nil, apierror.Validation(fmt.Sprintf("unsupported health check type %q for automated checking", hc.Type))
	}
}

// Recover deletes and recreates the container in place, grounded on the
// original Senlin recover operation's default RECREATE action.
func (d Driver) Recover(ctx context.Context, n *types.Node, params map[string]any) error {
	_ = d.Delete(ctx, n)
	_, data, err := d.Create(ctx, n, map[string]any{"image": d.spec.Image})
	if err != nil {
		return err
	}
	n.Data = data
	return nil
}

// Join adapts an already-running container into a cluster without
// re-provisioning it (§4.4 CLUSTER_ADD_NODES): a no-op for this driver
// since containerd containers carry no cluster membership state of their
// own (membership lives entirely in the Node record).
func (d Driver) Join(ctx context.Context, n *types.Node, clusterID string) error { return nil }

// Leave is the symmetric no-op for CLUSTER_DEL_NODES without destroy.
func (d Driver) Leave(ctx context.Context, n *types.Node) error { return nil }

// GetDetails returns live task information for the REST layer's node
// detail view.
func (d Driver) GetDetails(ctx context.Context, n *types.Node) (map[string]any, error) {
	client, err := d.connect()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	ctx = namespaces.WithNamespace(ctx, d.namespace)

	ctr, err := client.LoadContainer(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load container: %w", err)
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		return map[string]any{"running": false}, nil
	}
	status, err := task.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("task status: %w", err)
	}
	return map[string]any{
		"running": true,
		"pid":     strconv.Itoa(int(task.Pid())),
		"status":  string(status.Status),
	}, nil
}
