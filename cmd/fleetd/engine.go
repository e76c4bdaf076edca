package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/cuemby/fleetd/api/healthrpc"
	"github.com/cuemby/fleetd/api/restv1"
	"github.com/cuemby/fleetd/internal/engine"
	"github.com/cuemby/fleetd/internal/policy"
	"github.com/cuemby/fleetd/internal/profile"
	"github.com/cuemby/fleetd/internal/profiles/container"
	"github.com/cuemby/fleetd/pkg/config"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/metrics"
	"github.com/cuemby/fleetd/pkg/security"
)

func newEngineCmd() *cobra.Command {
	var join string
	var containerSocket string

	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Run the orchestrator engine process (Raft, dispatcher, REST v1, health RPC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, join, containerSocket)
		},
	}
	cmd.Flags().StringVar(&join, "join", "", "Address of an existing cluster member to join, empty to bootstrap")
	cmd.Flags().StringVar(&containerSocket, "container-socket", "/run/containerd/containerd.sock", "containerd socket for the container profile driver")
	return cmd
}

func runEngine(cmd *cobra.Command, join, containerSocket string) error {
	c := config.FromFlags(cmd.Root())
	logger := log.WithComponent("fleetd")

	e, err := engine.New(c)
	if err != nil {
		return err
	}

	e.Profiles.Register("container", func(spec map[string]any) (profile.Driver, error) {
		return container.Factory(containerSocket)(spec)
	})
	registerPolicyTypes(e)

	if join == "" {
		if err := e.Bootstrap(); err != nil {
			return err
		}
	} else {
		if err := e.Join(); err != nil {
			return err
		}
	}
	metrics.RegisterComponent("raft", true, "")
	e.Start()
	defer e.Stop()
	metrics.RegisterComponent("dispatcher", true, "")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	mux.Handle("/", restv1.Router(e))
	apiSrv := &http.Server{Addr: c.APIAddr, Handler: mux}
	metrics.RegisterComponent("rest_api", true, "")
	go func() {
		logger.Info().Str("addr", c.APIAddr).Msg("REST v1 listening")
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metrics.UpdateComponent("rest_api", false, err.Error())
			logger.Error().Err(err).Msg("REST v1 server failed")
		}
	}()

	ca := security.NewCertAuthority(e.Store())
	if err := ca.LoadFromStore(); err != nil {
		if err := ca.Initialize(); err != nil {
			return err
		}
		if err := ca.SaveToStore(); err != nil {
			return err
		}
	}
	if info, needsRotation := ca.RootCertInfo(); needsRotation {
		logger.Warn().Interface("root_ca", info).Msg("root CA certificate is within its rotation window")
	}
	serverCreds, err := healthrpc.ServerCredentials(ca, c.NodeID)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", c.RPCAddr)
	if err != nil {
		return err
	}
	grpcSrv := grpc.NewServer(grpc.Creds(serverCreds))
	healthrpc.NewServer(e.Health(), c.NodeID).Register(grpcSrv)
	go func() {
		logger.Info().Str("addr", c.RPCAddr).Msg("health RPC listening")
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("health RPC server failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info().Msg("shutting down")
	_ = apiSrv.Shutdown(context.Background())
	grpcSrv.GracefulStop()
	return nil
}
