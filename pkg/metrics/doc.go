/*
Package metrics provides Prometheus metrics collection and exposition for the
fleetd orchestration engine.

The metrics package defines and registers every fleetd metric using the
Prometheus client library, giving observability into action throughput, lock
contention, policy-check outcomes, health-manager activity and Raft state.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (cluster/node count) │          │
	│  │  Counter: Monotonic increases (actions)     │          │
	│  │  Histogram: Distributions (action latency)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Action/Dispatcher: throughput, latency     │          │
	│  │  Lock: contention, steals                   │          │
	│  │  Policy: check duration, errors, cooldowns  │          │
	│  │  Health: registry claims, checks, recovers  │          │
	│  │  Collector: cluster/node snapshot counts    │          │
	│  │  Raft: leader status, apply duration        │          │
	│  │  API: request count, duration               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint               │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

Action / Dispatcher Metrics:

fleetd_actions_total{status}:
  - Type: Gauge (incremented like a counter from the dispatcher)
  - Description: Actions reaching a terminal result, by result status
  - Example: fleetd_actions_total{status="OK"} 42

fleetd_actions_created_total{action}:
  - Type: Counter
  - Description: Actions created, by verb (CLUSTER_CREATE, NODE_CHECK, ...)

fleetd_action_duration_seconds{action,result}:
  - Type: Histogram
  - Description: Wall-clock time from RUNNING to a terminal state

fleetd_dispatch_latency_seconds:
  - Type: Histogram
  - Description: Time between an action becoming READY and being acquired

fleetd_dispatcher_polls_total:
  - Type: Counter
  - Description: Dispatcher long-poll cycles completed

fleetd_worker_pool_in_use:
  - Type: Gauge
  - Description: Worker pool slots currently occupied

Lock Manager Metrics:

fleetd_lock_contention_total{scope}:
  - Type: Counter
  - Description: Lock acquisition attempts that hit contention, by scope (cluster/node)

fleetd_lock_steals_total{scope}:
  - Type: Counter
  - Description: Stale locks reclaimed via steal, by scope

Policy Engine Metrics:

fleetd_policy_check_duration_seconds{when}:
  - Type: Histogram
  - Description: Time spent evaluating one policy_check pipeline pass (before/after)

fleetd_policy_check_errors_total{policy_type,reason}:
  - Type: Counter
  - Description: Policy checks that short-circuited with CHECK_ERROR

fleetd_cooldown_skips_total{policy_type}:
  - Type: Counter
  - Description: Policy checks rejected for being inside a cooldown window

Health Manager Metrics:

fleetd_health_registry_claimed:
  - Type: Gauge
  - Description: HealthRegistry rows currently claimed by this engine

fleetd_health_checks_total{check_type}:
  - Type: Counter
  - Description: Health checks issued, by check type

fleetd_recover_actions_total:
  - Type: Counter
  - Description: node_recover actions raised by the health manager

Collector Snapshot Metrics:

fleetd_clusters_total{status}:
  - Type: Gauge
  - Description: Clusters currently in each status, refreshed every 15s by Collector
  - Example: fleetd_clusters_total{status="ACTIVE"} 7

fleetd_nodes_total{role,status}:
  - Type: Gauge
  - Description: Nodes currently in each role/status combination
  - Example: fleetd_nodes_total{role="worker",status="ACTIVE"} 12

Raft Metrics:

fleetd_raft_is_leader:
  - Type: Gauge
  - Description: Whether this engine is the Raft leader (1=leader, 0=follower)

fleetd_raft_apply_duration_seconds:
  - Type: Histogram
  - Description: Time to apply a Raft log entry

API Metrics:

fleetd_api_requests_total{method,status}:
  - Type: Counter
  - Description: REST v1 requests by method and status

fleetd_api_request_duration_seconds{method}:
  - Type: Histogram
  - Description: REST v1 request duration

# Usage

Updating Gauge Metrics:

	import "github.com/cuemby/fleetd/pkg/metrics"

	metrics.ClustersTotal.WithLabelValues("ACTIVE").Set(7)
	metrics.WorkerPoolInUse.Inc()
	metrics.WorkerPoolInUse.Dec()

Updating Counter Metrics:

	metrics.ActionsCreatedTotal.WithLabelValues("CLUSTER_CREATE").Inc()
	metrics.APIRequestsTotal.WithLabelValues("POST", "202").Add(1)

Recording Histogram Observations:

	timer := metrics.NewTimer()
	// ... perform the action ...
	timer.ObserveDurationVec(metrics.ActionDuration, "CLUSTER_CREATE", "OK")

Complete Example:

	package main

	import (
		"net/http"

		"github.com/cuemby/fleetd/pkg/metrics"
	)

	func main() {
		collector := metrics.NewCollector(store)
		collector.Start()
		defer collector.Stop()

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

# Integration Points

This package integrates with:

  - internal/engine: owns the Collector's Start/Stop lifecycle
  - internal/dispatcher: action throughput and latency
  - internal/lock: contention and steal counters
  - internal/policy: check duration, errors, cooldowns
  - internal/health: registry claims, checks, recover actions
  - api/restv1: request counters and latency
  - Prometheus: scrapes /metrics

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate registration

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (status, verb, scope)
  - Avoid high-cardinality labels (cluster/node/action IDs)

Timer Pattern:
  - Create a Timer at operation start, call ObserveDuration/ObserveDurationVec at completion

Global Metrics:
  - Package-level variables, safe for concurrent updates from any fleetd package

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
*/
package metrics
