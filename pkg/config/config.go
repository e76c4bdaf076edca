// Package config surfaces the engine's tunables (§6 "Environment / config")
// the way the teacher's cmd/warren/main.go does: cobra persistent flags with
// an environment-variable fallback, bound once at process start.
package config

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// Engine holds every knob named in spec §6.
type Engine struct {
	// NodeID/BindAddr/DataDir are the teacher's manager.Config fields,
	// carried forward unchanged: Raft identity and storage location.
	NodeID   string
	BindAddr string
	APIAddr  string
	RPCAddr  string
	DataDir  string

	DefaultActionTimeoutS  int
	PeriodicInterval       int
	PeriodicIntervalMax    int
	WorkersPerEngine       int
	LockRetentionS         int
	EngineLifeCheckTimeout int
	MaxResponseSize        int
	MaxUpdateParallel      int

	LogLevel string
	LogJSON  bool
}

// Defaults returns the engine defaults named in spec §6 and §4.2.
func Defaults() Engine {
	return Engine{
		BindAddr:               "127.0.0.1:7946",
		APIAddr:                "127.0.0.1:8080",
		RPCAddr:                "127.0.0.1:8090",
		DataDir:                "./data",
		DefaultActionTimeoutS:  3600,
		PeriodicInterval:       60,
		PeriodicIntervalMax:    120,
		WorkersPerEngine:       16,
		LockRetentionS:         600,
		EngineLifeCheckTimeout: 60,
		MaxResponseSize:        1 << 20,
		MaxUpdateParallel:      5,
		LogLevel:               "info",
	}
}

// BindFlags registers the engine's persistent flags on cmd, mirroring the
// teacher's rootCmd.PersistentFlags() calls in cmd/warren/main.go.
func BindFlags(cmd *cobra.Command) {
	d := Defaults()
	cmd.PersistentFlags().String("node-id", "", "Engine (node) identifier; random if empty")
	cmd.PersistentFlags().String("bind-addr", d.BindAddr, "Raft transport bind address")
	cmd.PersistentFlags().String("api-addr", d.APIAddr, "REST v1 listen address")
	cmd.PersistentFlags().String("rpc-addr", d.RPCAddr, "Health-manager RPC listen address")
	cmd.PersistentFlags().String("data-dir", d.DataDir, "Storage directory")
	cmd.PersistentFlags().Int("default-action-timeout", d.DefaultActionTimeoutS, "Default action timeout in seconds")
	cmd.PersistentFlags().Int("periodic-interval", d.PeriodicInterval, "Base health-check polling interval in seconds")
	cmd.PersistentFlags().Int("periodic-interval-max", d.PeriodicIntervalMax, "Maximum jittered polling interval in seconds")
	cmd.PersistentFlags().Int("workers-per-engine", d.WorkersPerEngine, "Bounded worker pool size per engine")
	cmd.PersistentFlags().Int("lock-retention", d.LockRetentionS, "Seconds an engine may be absent before its locks are stealable")
	cmd.PersistentFlags().Int("engine-life-check-timeout", d.EngineLifeCheckTimeout, "Seconds before an engine is considered dead for registry_claim")
	cmd.PersistentFlags().Int("max-response-size", d.MaxResponseSize, "Maximum REST v1 response body size in bytes")
	cmd.PersistentFlags().Int("max-update-parallel", d.MaxUpdateParallel, "Maximum concurrent NODE_UPDATE batch size")
	cmd.PersistentFlags().String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
}

// FromFlags resolves an Engine config from cmd's bound flags, falling back
// to the FLEETD_-prefixed environment variable and then the default.
func FromFlags(cmd *cobra.Command) Engine {
	e := Defaults()

	e.NodeID = stringFlag(cmd, "node-id", "FLEETD_NODE_ID", e.NodeID)
	e.BindAddr = stringFlag(cmd, "bind-addr", "FLEETD_BIND_ADDR", e.BindAddr)
	e.APIAddr = stringFlag(cmd, "api-addr", "FLEETD_API_ADDR", e.APIAddr)
	e.RPCAddr = stringFlag(cmd, "rpc-addr", "FLEETD_RPC_ADDR", e.RPCAddr)
	e.DataDir = stringFlag(cmd, "data-dir", "FLEETD_DATA_DIR", e.DataDir)
	e.LogLevel = stringFlag(cmd, "log-level", "FLEETD_LOG_LEVEL", e.LogLevel)

	e.DefaultActionTimeoutS = intFlag(cmd, "default-action-timeout", "FLEETD_DEFAULT_ACTION_TIMEOUT", e.DefaultActionTimeoutS)
	e.PeriodicInterval = intFlag(cmd, "periodic-interval", "FLEETD_PERIODIC_INTERVAL", e.PeriodicInterval)
	e.PeriodicIntervalMax = intFlag(cmd, "periodic-interval-max", "FLEETD_PERIODIC_INTERVAL_MAX", e.PeriodicIntervalMax)
	e.WorkersPerEngine = intFlag(cmd, "workers-per-engine", "FLEETD_WORKERS_PER_ENGINE", e.WorkersPerEngine)
	e.LockRetentionS = intFlag(cmd, "lock-retention", "FLEETD_LOCK_RETENTION", e.LockRetentionS)
	e.EngineLifeCheckTimeout = intFlag(cmd, "engine-life-check-timeout", "FLEETD_ENGINE_LIFE_CHECK_TIMEOUT", e.EngineLifeCheckTimeout)
	e.MaxResponseSize = intFlag(cmd, "max-response-size", "FLEETD_MAX_RESPONSE_SIZE", e.MaxResponseSize)
	e.MaxUpdateParallel = intFlag(cmd, "max-update-parallel", "FLEETD_MAX_UPDATE_PARALLEL", e.MaxUpdateParallel)

	if v, _ := cmd.Flags().GetBool("log-json"); v {
		e.LogJSON = true
	}

	return e
}

func stringFlag(cmd *cobra.Command, flag, env, fallback string) string {
	if cmd.Flags().Changed(flag) {
		if v, err := cmd.Flags().GetString(flag); err == nil && v != "" {
			return v
		}
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

func intFlag(cmd *cobra.Command, flag, env string, fallback int) int {
	if cmd.Flags().Changed(flag) {
		if v, err := cmd.Flags().GetInt(flag); err == nil && v != 0 {
			return v
		}
	}
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
