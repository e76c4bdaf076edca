/*
Package health provides the health check primitives used to probe node
liveness: HTTP, TCP and exec checks, plus the consecutive-failure hysteresis
that turns individual check results into a stable health Status.

This package is the low-level probing layer. Its caller in this tree is
internal/profiles/container: the driver's Check builds an HTTPChecker or
TCPChecker from the profile's health_check spec and runs it once.
internal/health.Manager does not call this package; its polling timers
raise CLUSTER_CHECK actions.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	  GET /    Connect     Run cmd
	  /health    :port      on node

## Health Check Flow

 1. internal/health.Manager claims a cluster's health registry row
 2. Every interval (plus jitter) it raises a CLUSTER_CHECK action
 3. Checking a node calls its profile driver's Check
 4. The container driver runs the profile's HTTP or TCP Checker once
    and maps the Result to a node status

Status, Config and StartPeriod implement consecutive-failure hysteresis
for a caller that polls a Checker itself; the engine's check path does
not use them.

# Health Check Types

## HTTP Health Checks

	Check Type: HTTP
	Configuration:
	├── URL: http://node-ip:8080/health
	├── Method: GET, POST, HEAD
	├── Headers: Custom HTTP headers
	├── Expected Status: 200-399 (configurable)
	└── Timeout: 10 seconds

Example responses:
  - 200 OK → Healthy
  - 503 Service Unavailable → Unhealthy
  - Connection timeout → Unhealthy
  - Connection refused → Unhealthy

## TCP Health Checks

	Check Type: TCP
	Configuration:
	├── Address: node-ip:6379
	├── Timeout: 5 seconds
	└── Connection test only (no data sent)

Use cases:
  - Database health (PostgreSQL, MySQL, Redis)
  - Message queue health (RabbitMQ, Kafka)
  - Any node workload with a TCP listener

## Exec Health Checks

	Check Type: Exec
	Configuration:
	├── Command: ["pg_isready", "-U", "postgres"]
	├── NodeID: the target node's PhysicalID, or "" to run on the engine host
	├── Timeout: 10 seconds
	├── Exit code 0 → Healthy
	└── Exit code != 0 → Unhealthy

Use cases:
  - Database-specific checks (pg_isready, mysqladmin ping)
  - Custom health scripts
  - Process checks against a running node's workload

# Core Components

## Checker Interface

All health checkers implement this interface:

	type Checker interface {
		Check(ctx context.Context) Result
		Type() CheckType
	}

This allows polymorphic health checking - a caller doesn't need to know
the check type, just call Check() and interpret the Result.

## Result Structure

All checks return a standardized Result:

	type Result struct {
		Healthy   bool          // Check passed?
		Message   string        // Human-readable message
		CheckedAt time.Time     // When check ran
		Duration  time.Duration // How long check took
	}

## Status Tracking

Status tracks health over time:

	type Status struct {
		ConsecutiveFailures  int    // Failure streak
		ConsecutiveSuccesses int    // Success streak
		LastCheck            time.Time
		LastResult           Result
		Healthy              bool   // Current health state
		StartedAt            time.Time
	}

The status implements hysteresis - multiple failures required before marking
unhealthy, preventing flapping from transient issues.

## Configuration

Config holds the settings a polling caller uses:

	type Config struct {
		Interval    time.Duration  // Time between checks (default: 30s)
		Timeout     time.Duration  // Max check duration (default: 10s)
		Retries     int            // Failures before unhealthy (default: 3)
		StartPeriod time.Duration  // Grace period for slow startup (default: 0)
	}

# Usage Examples

## HTTP Health Check

	import "github.com/cuemby/fleetd/pkg/health"

	// Create HTTP checker
	checker := health.NewHTTPChecker("http://192.168.1.10:8080/health")

	// Customize (optional)
	checker.WithMethod("GET").
		WithHeader("User-Agent", "fleetd-health/1.0").
		WithStatusRange(200, 299).  // Only 2xx is healthy
		WithTimeout(5 * time.Second)

	// Perform check
	ctx := context.Background()
	result := checker.Check(ctx)

	if result.Healthy {
		fmt.Printf("healthy: %s (took %v)\n", result.Message, result.Duration)
	} else {
		fmt.Printf("unhealthy: %s\n", result.Message)
	}

## TCP Health Check

	// Create TCP checker for Redis
	checker := health.NewTCPChecker("192.168.1.10:6379")
	checker.WithTimeout(3 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("redis is accepting connections")
	}

## Exec Health Check

	// Create exec checker for PostgreSQL, run on the engine host
	checker := health.NewExecChecker([]string{
		"pg_isready",
		"-U", "postgres",
		"-d", "mydb",
	})
	checker.WithTimeout(5 * time.Second)

	result := checker.Check(ctx)
	if result.Healthy {
		fmt.Println("postgresql is ready")
	}

## Health Status Tracking

	// Create status tracker
	status := health.NewStatus()

	config := health.Config{
		Interval:    10 * time.Second,
		Timeout:     5 * time.Second,
		Retries:     3,
		StartPeriod: 30 * time.Second,
	}

	checker := health.NewHTTPChecker("http://node:8080/health")

	for {
		if status.InStartPeriod(config) {
			time.Sleep(config.Interval)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
		result := checker.Check(ctx)
		cancel()

		status.Update(result, config)

		if !status.Healthy {
			// the node has failed Retries checks in a row
			break
		}

		time.Sleep(config.Interval)
	}

# Integration Points

## internal/health.Manager

The manager owns the poll loop and claims rows from the health registry,
but does not use this package: each tick raises a CLUSTER_CHECK action,
and LIFECYCLE_EVENTS registries raise NODE_RECOVER from broker events.

## internal/profiles/container

The container profile's Driver.Check builds an HTTPChecker or TCPChecker
from its HealthCheck spec and returns the resulting Result up through the
profile.Driver interface.

# Design Patterns

## Strategy Pattern

Different checkers implement the Checker interface:

	Checker (interface)
	├── HTTPChecker (HTTP strategy)
	├── TCPChecker (TCP strategy)
	└── ExecChecker (Exec strategy)

## Builder Pattern

Checkers use fluent builders for configuration:

	checker := NewHTTPChecker(url).
		WithMethod("POST").
		WithHeader("Auth", "token").
		WithTimeout(5 * time.Second)

## Hysteresis Pattern

Status tracking implements hysteresis to prevent flapping:

	Healthy → 1 failure → Still healthy
	Healthy → 2 failures → Still healthy
	Healthy → 3 failures → Unhealthy!

	Unhealthy → 1 success → Healthy!

## Context-Based Cancellation

All checks respect context deadlines:

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := checker.Check(ctx)  // Respects timeout

# Recommended Check Intervals

  - HTTP: 10-30 seconds
  - TCP: 5-15 seconds
  - Exec: 30-60 seconds

# Troubleshooting

## False Positive Failures

If healthy nodes are marked unhealthy:

 1. Check timeout settings - increase to 2x expected duration
 2. Check retry count - 3 is a reasonable default for flaky networks
 3. Check StartPeriod - set it above the profile's real startup time

## Health Checks Not Running

 1. Verify the node's profile has a HealthCheck configured
 2. Verify internal/health.Manager's poll loop is running
 3. Check network connectivity from the engine to the node

# Security Considerations

## HTTP Health Checks

  - Health endpoints should not require authentication
  - Don't expose sensitive information in health responses
  - Prefer internal networks over the public internet

## Exec Health Checks

  - Validate command arguments (prevent injection)
  - Limit command execution time

# See Also

  - internal/health - Owns the poll loop and node_recover escalation
  - internal/profiles/container - Builds Checkers from a profile spec
  - pkg/metrics - fleetd_health_checks_total and fleetd_recover_actions_total
*/
package health
