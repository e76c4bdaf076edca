// Command fleetd is the engine process entry point and CLI client: a cobra
// command tree with an "engine" subcommand that runs the Raft/dispatcher/
// REST/RPC server, and cluster/node/profile/policy/action subcommands that
// are a thin HTTP client against a running engine's REST v1 API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/fleetd/pkg/config"
	"github.com/cuemby/fleetd/pkg/log"
)

var cfg config.Engine

func main() {
	root := &cobra.Command{
		Use:   "fleetd",
		Short: "Cluster orchestration engine",
	}
	config.BindFlags(root)
	cobra.OnInitialize(func() { initLogging(root) })

	root.AddCommand(
		newEngineCmd(),
		newClusterCmd(),
		newNodeCmd(),
		newProfileCmd(),
		newPolicyCmd(),
		newActionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initLogging(root *cobra.Command) {
	cfg = config.FromFlags(root)
	level := log.InfoLevel
	switch cfg.LogLevel {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}
	log.Init(log.Config{Level: level, JSONOutput: cfg.LogJSON})
}
