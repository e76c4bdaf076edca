// Package metrics is the engine's prometheus/client_golang registry,
// grounded on the teacher's metrics.go: package-level vars registered in
// init(), a Timer helper, and an HTTP Handler. Vectors are re-pointed at
// actions, locks, policy checks and the health manager instead of warren's
// containers/services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Action / dispatcher metrics
	ActionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_actions_total",
			Help: "Total number of actions by status",
		},
		[]string{"status"},
	)

	ActionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_actions_created_total",
			Help: "Total number of actions created by verb",
		},
		[]string{"action"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_action_duration_seconds",
			Help:    "Wall-clock time from RUNNING to a terminal state, by verb",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "result"},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_dispatch_latency_seconds",
			Help:    "Time between an action becoming READY and being acquired",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatcherPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_dispatcher_polls_total",
			Help: "Total number of dispatcher long-poll cycles",
		},
	)

	WorkerPoolInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_worker_pool_in_use",
			Help: "Number of worker pool slots currently occupied",
		},
	)

	// Lock manager metrics
	LockContentionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_lock_contention_total",
			Help: "Total number of lock acquisition attempts that hit contention",
		},
		[]string{"scope"},
	)

	LockStealsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_lock_steals_total",
			Help: "Total number of stale locks reclaimed via steal",
		},
		[]string{"scope"},
	)

	// Policy engine metrics
	PolicyCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_policy_check_duration_seconds",
			Help:    "Time spent evaluating one policy_check pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"when"},
	)

	PolicyCheckErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_policy_check_errors_total",
			Help: "Total number of policy checks that short-circuited with CHECK_ERROR",
		},
		[]string{"policy_type", "reason"},
	)

	CooldownSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_cooldown_skips_total",
			Help: "Total number of policy checks rejected for being inside a cooldown window",
		},
		[]string{"policy_type"},
	)

	// Health manager metrics
	HealthRegistryClaimedTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_health_registry_claimed",
			Help: "Number of HealthRegistry rows currently claimed by this engine",
		},
	)

	HealthChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_health_checks_total",
			Help: "Total number of health checks issued by check type",
		},
		[]string{"check_type"},
	)

	RecoverActionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetd_recover_actions_total",
			Help: "Total number of node_recover actions raised by the health manager",
		},
	)

	// Raft / storage metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetd_raft_is_leader",
			Help: "Whether this engine is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetd_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Collector snapshot metrics (periodic poll of the storage adapter,
	// mirroring the teacher's collector.go node/service counters)
	ClustersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_clusters_total",
			Help: "Number of clusters currently in each status",
		},
		[]string{"status"},
	)

	NodesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetd_nodes_total",
			Help: "Number of nodes currently in each role/status combination",
		},
		[]string{"role", "status"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetd_api_requests_total",
			Help: "Total number of REST v1 requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetd_api_request_duration_seconds",
			Help:    "REST v1 request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		ActionsTotal,
		ActionsCreatedTotal,
		ActionDuration,
		DispatchLatency,
		DispatcherPollsTotal,
		WorkerPoolInUse,
		LockContentionTotal,
		LockStealsTotal,
		PolicyCheckDuration,
		PolicyCheckErrorsTotal,
		CooldownSkipsTotal,
		HealthRegistryClaimedTotal,
		HealthChecksTotal,
		RecoverActionsTotal,
		ClustersTotal,
		NodesTotal,
		RaftLeader,
		RaftApplyDuration,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
