package container

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/pkg/health"
)

func TestParseSpec_RequiresImage(t *testing.T) {
	_, err := parseSpec(map[string]any{})
	assert.Error(t, err)
}

func TestParseSpec_PopulatesFields(t *testing.T) {
	s, err := parseSpec(map[string]any{
		"image":        "busybox:latest",
		"cpu_limit":    float64(2),
		"memory_limit": float64(1 << 20),
		"env":          []any{"FOO=bar", "BAZ=qux"},
		"mounts": []any{
			map[string]any{"source": "/host/data", "destination": "/data"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "busybox:latest", s.Image)
	assert.Equal(t, 2.0, s.CPULimit)
	assert.Equal(t, int64(1<<20), s.MemoryLimit)
	assert.Equal(t, []string{"FOO=bar", "BAZ=qux"}, s.Env)
	require.Len(t, s.Mounts, 1)
	assert.Equal(t, "/host/data", s.Mounts[0].Source)
	assert.Equal(t, "/data", s.Mounts[0].Destination)
}

func TestParseSpec_RejectsIncompleteMount(t *testing.T) {
	_, err := parseSpec(map[string]any{
		"image":  "busybox",
		"mounts": []any{map[string]any{"source": "/host/data"}},
	})
	assert.Error(t, err)
}

func TestParseSpec_HealthCheck(t *testing.T) {
	s, err := parseSpec(map[string]any{
		"image": "busybox",
		"health_check": map[string]any{
			"type":      "http",
			"target":    "http://127.0.0.1:8080/healthz",
			"timeout_s": float64(3),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, s.HealthCheck)
	assert.Equal(t, health.CheckTypeHTTP, s.HealthCheck.Type)
	assert.Equal(t, 3*time.Second, s.HealthCheck.Timeout)
}

func TestParseHealthCheck_RejectsUnknownType(t *testing.T) {
	_, err := parseHealthCheck(map[string]any{"type": "carrier-pigeon", "target": "x"})
	assert.Error(t, err)
}

func TestParseHealthCheck_RejectsInvalidHTTPTarget(t *testing.T) {
	_, err := parseHealthCheck(map[string]any{"type": "http", "target": "::not a url::"})
	assert.Error(t, err)
}

func TestParseHealthCheck_DefaultsTimeout(t *testing.T) {
	hc, err := parseHealthCheck(map[string]any{"type": "tcp", "target": "localhost:9000"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, hc.Timeout)
}

func TestDriver_Validate(t *testing.T) {
	d := Driver{}
	assert.NoError(t, d.Validate(map[string]any{"image": "busybox"}))
	assert.Error(t, d.Validate(map[string]any{}))
}

func TestFactory_BuildsDriverFromSpec(t *testing.T) {
	factory := Factory("")
	d, err := factory(map[string]any{"image": "nginx"})
	require.NoError(t, err)
	assert.Equal(t, DefaultNamespace, d.namespace)
	assert.Equal(t, "nginx", d.spec.Image)
}

func TestFactory_PropagatesValidationError(t *testing.T) {
	factory := Factory("/custom/socket")
	_, err := factory(map[string]any{})
	assert.Error(t, err)
}

func TestDriver_CheckWithoutHealthCheckIsActive(t *testing.T) {
	d := Driver{}
	status, reason, err := d.Check(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", string(status))
	assert.Empty(t, reason)
}
