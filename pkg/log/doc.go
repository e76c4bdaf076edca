/*
Package log provides structured logging for fleetd using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

fleetd's logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Component Loggers                   │          │
	│  │  - WithComponent("dispatcher")              │          │
	│  │  - WithEngineID("engine-abc123")            │          │
	│  │  - WithClusterID("cluster-xyz")             │          │
	│  │  - WithNodeID("node-def456")                │          │
	│  │  - WithActionID("action-123")               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "dispatcher",               │          │
	│  │    "time": "2026-07-31T10:30:00Z",          │          │
	│  │    "message": "action dispatched"           │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  2026-07-31T10:30:00Z INF action dispatched component=dispatcher │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all fleetd packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "dispatcher", "policy-engine")
  - WithEngineID: Add engine ID context
  - WithClusterID: Add cluster ID context
  - WithNodeID: Add node ID context
  - WithActionID: Add action ID context

# Log Levels

Debug Level:
  - Purpose: Detailed debugging information
  - Usage: Development and troubleshooting
  - Performance: Verbose, may impact production
  - Example: "Evaluating policy scaling_policy against cluster web-tier"

Info Level:
  - Purpose: General informational messages
  - Usage: Default production level
  - Performance: Moderate volume
  - Example: "Cluster created: web-tier (profile container)"

Warn Level:
  - Purpose: Potential issues or unexpected conditions
  - Usage: Situations that may require attention
  - Performance: Low volume
  - Example: "Node heartbeat missed (1 occurrence)"

Error Level:
  - Purpose: Operation failures that need investigation
  - Usage: Failed operations, exceptions
  - Performance: Low volume
  - Example: "Failed to dispatch action: lock held by another engine"

Fatal Level:
  - Purpose: Critical errors causing process termination
  - Usage: Unrecoverable errors only
  - Behavior: Logs message and exits process (os.Exit(1))
  - Example: "Failed to initialize Raft: %v"

# Usage

Initializing the Logger:

	import "github.com/cuemby/fleetd/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Custom output (file)
	file, _ := os.OpenFile("/var/log/fleetd.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     file,
	})

Simple Logging:

	log.Info("engine started")
	log.Debug("checking node status")
	log.Warn("high lock contention detected")
	log.Error("failed to dispatch action")
	log.Fatal("cannot start without a data directory") // Exits process

Structured Logging:

	log.Logger.Info().
		Str("cluster_id", "cluster-123").
		Int("desired_capacity", 3).
		Msg("cluster resize requested")

	log.Logger.Error().
		Err(err).
		Str("node_id", "node-abc").
		Msg("node health check failed")

Component Loggers:

	// Create component-specific logger
	dispatcherLog := log.WithComponent("dispatcher")
	dispatcherLog.Info().Msg("starting worker pool")
	dispatcherLog.Debug().Str("action_id", "action-123").Msg("acquired action")

	// Multiple context fields
	actionLog := log.WithComponent("executor").
		With().Str("cluster_id", "cluster-abc").
		Str("action_id", "action-123").Logger()
	actionLog.Info().Msg("starting cluster_create")
	actionLog.Error().Err(err).Msg("cluster_create failed")

Context Logger Helpers:

	// Engine-specific logs
	engineLog := log.WithEngineID("engine-abc123")
	engineLog.Info().Msg("engine joined Raft cluster")

	// Cluster-specific logs
	clusterLog := log.WithClusterID("cluster-xyz789")
	clusterLog.Info().Msg("cluster updated")

	// Node-specific logs
	nodeLog := log.WithNodeID("node-def456")
	nodeLog.Info().Msg("node recovered")

	// Action-specific logs
	actionLog := log.WithActionID("action-789")
	actionLog.Info().Msg("action completed")

Complete Example:

	package main

	import (
		"errors"
		"os"
		"github.com/cuemby/fleetd/pkg/log"
	)

	func main() {
		// Initialize logger
		log.Init(log.Config{
			Level:      log.InfoLevel,
			JSONOutput: true,
			Output:     os.Stdout,
		})

		log.Info("fleetd engine starting")

		// Component-specific logging
		dispatcherLog := log.WithComponent("dispatcher")
		dispatcherLog.Info().
			Str("node_id", "node-1").
			Int("actions_in_flight", 5).
			Msg("dispatching actions")

		// Error logging
		err := errors.New("lock held by another engine")
		log.Logger.Error().
			Err(err).
			Str("component", "executor").
			Msg("failed to acquire cluster lock")

		log.Info("fleetd engine stopped")
	}

# Integration Points

This package integrates with:

  - internal/engine: Logs engine lifecycle, Raft bootstrap/join and heartbeats
  - internal/dispatcher: Logs action acquisition and worker pool activity
  - internal/executor: Logs per-action-verb execution
  - internal/policy: Logs policy_check evaluation and cooldown decisions
  - internal/health: Logs node health transitions and recover escalation
  - api/restv1: Logs API requests and errors

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"engine","time":"2026-07-31T10:30:00Z","message":"engine started"}
	{"level":"info","component":"dispatcher","action_id":"action-123","time":"2026-07-31T10:30:01Z","message":"action dispatched"}
	{"level":"error","component":"executor","node_id":"node-abc","error":"image not found","time":"2026-07-31T10:30:02Z","message":"node_recover failed"}

Console Format (Development):

	2026-07-31T10:30:00Z INF engine started component=engine
	2026-07-31T10:30:01Z INF action dispatched component=dispatcher action_id=action-123
	2026-07-31T10:30:02Z ERR node_recover failed component=executor node_id=node-abc error="image not found"

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Structured Logging Pattern:
  - Use typed fields (.Str, .Int, .Err)
  - Enables log aggregation and querying
  - Better than string concatenation
  - Parseable by log analysis tools

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Performance Characteristics

Logging Overhead:
  - Disabled level: 0ns (compile-time optimization)
  - JSON encode: ~500ns per log line
  - Console format: ~1µs per log line
  - String field: +50ns per field
  - Int field: +30ns per field

Log Level Impact:
  - Debug: High volume, use in development only
  - Info: Moderate volume, suitable for production
  - Warn/Error: Low volume, minimal impact
  - Recommendation: Info level in production

# Troubleshooting

Common Issues:

No Log Output:
  - Symptom: No logs appearing
  - Check: log.Init() called before logging
  - Check: Log level set appropriately (Debug < Info < Warn < Error)
  - Solution: Initialize logger in main() before any logging

Excessive Log Volume:
  - Symptom: Disk space fills quickly
  - Cause: Debug level in production
  - Solution: Use Info level in production, rotate logs

Missing Context Fields:
  - Symptom: Logs missing component or ID fields
  - Cause: Using global Logger instead of a context logger
  - Solution: Use WithComponent() or create a child logger

Log Parsing Fails:
  - Symptom: Cannot parse JSON logs
  - Cause: Invalid JSON in message field
  - Solution: Use .Str() instead of string interpolation

# Log Rotation

File-Based Logging:

fleetd doesn't include built-in log rotation. Use external tools:

Logrotate (Linux):

	# /etc/logrotate.d/fleetd
	/var/log/fleetd/*.log {
	    daily
	    rotate 7
	    compress
	    delaycompress
	    missingok
	    notifempty
	    copytruncate
	}

Systemd Journal:

	# Automatic rotation by systemd
	journalctl -u fleetd -f

Docker/Kubernetes:

	# Use container runtime log drivers
	# JSON logs to stdout (already implemented)

# Log Aggregation

Recommended Tools:

Elasticsearch + Filebeat:
  - Filebeat ships logs to Elasticsearch
  - Kibana for visualization and search
  - Query: component:"dispatcher" AND level:"error"

Loki + Promtail:
  - Lightweight log aggregation
  - Grafana integration
  - Query: {component="executor"} |= "error"

CloudWatch Logs:
  - AWS native log aggregation
  - Metric filters for alerting
  - Query: fields @message | filter component = "dispatcher"

Datadog:
  - Full-stack observability
  - APM and log correlation
  - Query: service:fleetd component:executor status:error

# Monitoring

Log-Based Alerts:

High Error Rate:
  - Query: rate(log entries with level="error"[5m]) > 10
  - Description: More than 10 errors per second
  - Action: Check recent errors, investigate root cause

No Logs:
  - Query: absent(log entries[1m])
  - Description: No logs received in 1 minute
  - Action: Check the fleetd engine process, log pipeline

Specific Error Pattern:
  - Query: log entries containing "failed to acquire cluster lock"
  - Description: Lock contention issues
  - Action: Check internal/lock contention, engine count

# Security

Log Content:
  - Never log secrets or sensitive data
  - Redact tokens, passwords, API keys
  - Use log scrubbing for compliance (GDPR, PCI)
  - Review logs before sharing externally

Log Access:
  - Restrict log file permissions (0640)
  - Limit log aggregation access (RBAC)
  - Audit log access in production
  - Encrypt logs at rest and in transit

Log Injection:
  - Use structured logging (prevents injection)
  - Never concatenate user input into log messages
  - Use typed fields (.Str, .Int) for user data
  - Validate/sanitize before logging if necessary

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() for stack traces
  - Include context (engine ID, cluster ID, node ID, action ID)

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Log in tight loops (use sampling)
  - Concatenate strings (use .Str, .Int)
  - Block on log writes (use buffered output)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Structured logging: https://www.thoughtworks.com/radar/techniques/structured-logging
  - 12-Factor App Logs: https://12factor.net/logs
  - Log aggregation: https://www.elastic.co/what-is/log-aggregation
*/
package log
