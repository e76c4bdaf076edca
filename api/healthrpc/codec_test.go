package healthrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_RoundTrip(t *testing.T) {
	c := jsonCodec{}
	assert.Equal(t, "json", c.Name())

	req := &ClusterRequest{ClusterID: "c1", CheckType: "http", IntervalS: 30, Params: map[string]any{"url": "http://x"}}
	data, err := c.Marshal(req)
	require.NoError(t, err)

	var got ClusterRequest
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, *req, got)
}
