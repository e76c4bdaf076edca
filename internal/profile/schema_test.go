package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
)

func containerSchema() *Schema {
	return &Schema{
		Kind: KindMap,
		Properties: map[string]*Schema{
			"image": {Kind: KindString, Required: true},
			"cpu_limit": {
				Kind:        KindNumber,
				Default:     1.0,
				Constraints: []Constraint{Range{Min: floatPtr(0.1), Max: floatPtr(8)}},
			},
			"replicas": {
				Kind:        KindInteger,
				Default:     1,
				Constraints: []Constraint{AllowedValues{Values: []any{1, 2, 3, 4, 5}}},
			},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestSpecValidate_RequiredMissing(t *testing.T) {
	sp := NewSpec(containerSchema(), map[string]any{}, "")
	err := sp.Validate()
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
}

func TestSpecValidate_DefaultsApplied(t *testing.T) {
	sp := NewSpec(containerSchema(), map[string]any{"image": "nginx:latest"}, "")
	require.NoError(t, sp.Validate())

	v, err := sp.Get("cpu_limit")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = sp.Get("replicas")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSpecValidate_ConstraintViolation(t *testing.T) {
	sp := NewSpec(containerSchema(), map[string]any{
		"image":    "nginx:latest",
		"replicas": 9,
	}, "")
	err := sp.Validate()
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
}

func TestSpecValidate_RejectsUnrecognizedKey(t *testing.T) {
	sp := NewSpec(containerSchema(), map[string]any{
		"image":   "nginx:latest",
		"bogus":   "nope",
	}, "")
	err := sp.Validate()
	require.Error(t, err)
}

func TestSchema_VersionGate(t *testing.T) {
	s := &Schema{Kind: KindString, MinVersion: "1.1", MaxVersion: "1.2"}
	assert.NoError(t, s.checkVersion("1.1"))
	assert.NoError(t, s.checkVersion("1.2"))
	assert.Error(t, s.checkVersion("1.0"))
	assert.Error(t, s.checkVersion("1.3"))
}

func TestSchema_ListResolve(t *testing.T) {
	s := &Schema{Kind: KindList, Element: &Schema{Kind: KindInteger}}
	resolved, err := s.Resolve([]any{"1", 2, 3.0})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, resolved)
}

func TestRegistry_BuildUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Build(&types.Profile{Type: "bogus"})
	require.Error(t, err)
	apiErr, ok := apierror.As(err)
	require.True(t, ok)
	assert.Equal(t, apierror.KindValidation, apiErr.Kind)
}

func TestRegistry_BuildKnownType(t *testing.T) {
	r := NewRegistry()
	r.Register("noop", func(spec map[string]any) (Driver, error) { return nil, nil })
	assert.Contains(t, r.Types(), "noop")
	_, err := r.Build(&types.Profile{Type: "noop", Spec: map[string]any{}})
	require.NoError(t, err)
}
