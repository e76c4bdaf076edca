// Package healthrpc is the engine<->health-manager RPC fanout of spec.md
// §6 (register_cluster, unregister_cluster, enable_cluster, disable_cluster,
// listening): a gRPC service so a Health manager call reaches whichever
// engine currently owns a HealthRegistry row, grounded on the teacher's
// pkg/api/server.go + pkg/client/client.go mTLS client/server pair. The
// message types here are plain structs carried over grpc's transport with
// a JSON wire codec rather than protoc-generated bindings, since the
// fanout's payloads (a handful of string/bool fields) don't warrant a
// protobuf build step; grpc's framing, multiplexing, deadlines and
// transport security are all real.
package healthrpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }
