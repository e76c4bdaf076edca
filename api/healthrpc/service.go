package healthrpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/apierror"
	"github.com/cuemby/fleetd/pkg/log"
)

// manager is the subset of internal/health.Manager this service needs,
// declared locally so tests can supply a fake without a storage adapter.
type manager interface {
	Register(clusterID string, checkType types.HealthCheckType, intervalS int, params map[string]any) error
	Unregister(clusterID string) error
	Enable(clusterID string)
	Disable(clusterID string)
	Listening() bool
}

// Server implements the healthrpc service against a local Health manager.
type Server struct {
	mgr    manager
	engine string
}

// NewServer builds a Server fronting mgr, identifying as engineID for
// "listening" queries addressed to a specific engine.
func NewServer(mgr manager, engineID string) *Server {
	return &Server{mgr: mgr, engine: engineID}
}

// Register attaches the healthrpc service to gs.
func (s *Server) Register(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

func (s *Server) registerCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	if req.ClusterID == "" {
		return nil, apierror.Validation("cluster_id is required")
	}
	if err := s.mgr.Register(req.ClusterID, types.HealthCheckType(req.CheckType), req.IntervalS, req.Params); err != nil {
		log.WithComponent("healthrpc").Error().Err(err).Str("cluster_id", req.ClusterID).Msg("register_cluster failed")
		return nil, err
	}
	return &ClusterResponse{}, nil
}

func (s *Server) unregisterCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	if err := s.mgr.Unregister(req.ClusterID); err != nil {
		return nil, err
	}
	return &ClusterResponse{}, nil
}

func (s *Server) enableCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	s.mgr.Enable(req.ClusterID)
	return &ClusterResponse{}, nil
}

func (s *Server) disableCluster(ctx context.Context, req *ClusterRequest) (*ClusterResponse, error) {
	s.mgr.Disable(req.ClusterID)
	return &ClusterResponse{}, nil
}

func (s *Server) listening(ctx context.Context, req *ListeningRequest) (*ListeningResponse, error) {
	if req.EngineID != "" && req.EngineID != s.engine {
		return &ListeningResponse{Listening: false}, nil
	}
	return &ListeningResponse{Listening: s.mgr.Listening()}, nil
}

// --- grpc.ServiceDesc wiring (hand-authored, no protoc step) --------------

const serviceName = "healthrpc.HealthRPC"

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterCluster", Handler: registerClusterHandler},
		{MethodName: "UnregisterCluster", Handler: unregisterClusterHandler},
		{MethodName: "EnableCluster", Handler: enableClusterHandler},
		{MethodName: "DisableCluster", Handler: disableClusterHandler},
		{MethodName: "Listening", Handler: listeningHandler},
	},
	Metadata: "healthrpc.proto",
}

func registerClusterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClusterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).registerCluster(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RegisterCluster"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).registerCluster(ctx, req.(*ClusterRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func unregisterClusterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClusterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).unregisterCluster(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/UnregisterCluster"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).unregisterCluster(ctx, req.(*ClusterRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func enableClusterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClusterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).enableCluster(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/EnableCluster"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).enableCluster(ctx, req.(*ClusterRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func disableClusterHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ClusterRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).disableCluster(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/DisableCluster"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).disableCluster(ctx, req.(*ClusterRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func listeningHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ListeningRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(*Server).listening(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Listening"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(*Server).listening(ctx, req.(*ListeningRequest))
	}
	return interceptor(ctx, req, info, handler)
}
