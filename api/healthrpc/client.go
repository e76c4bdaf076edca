package healthrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a thin wrapper over a grpc.ClientConn speaking the healthrpc
// service, used by one engine's Health manager to reach the peer engine
// that currently owns a given HealthRegistry row (spec.md §4.6's
// registry_claim only elects one owner; every other engine forwards here).
type Client struct {
	cc *grpc.ClientConn
}

// NewClient wraps an already-dialed connection (dialed with transport
// credentials from pkg/security.CertAuthority-issued certificates).
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, req, resp any) error {
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, resp, grpc.ForceCodec(jsonCodec{}))
}

func (c *Client) RegisterCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	resp := new(ClusterResponse)
	if err := c.call(ctx, "RegisterCluster", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UnregisterCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	resp := new(ClusterResponse)
	if err := c.call(ctx, "UnregisterCluster", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) EnableCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	resp := new(ClusterResponse)
	if err := c.call(ctx, "EnableCluster", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DisableCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	resp := new(ClusterResponse)
	if err := c.call(ctx, "DisableCluster", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Listening(ctx context.Context, req *ListeningRequest) (*ListeningResponse, error) {
	resp := new(ListeningResponse)
	if err := c.call(ctx, "Listening", req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
