// Package dispatcher is the long-poll dispatch loop and bounded worker
// pool of §2/§5: each engine runs a fixed number of worker goroutines, and
// each worker repeatedly calls acquire_first_ready itself, looks up the
// winning action's Executor by verb and runs it to a terminal result.
// Grounded on the teacher's worker.Worker/scheduler loop shape (a fixed
// pool pulling from a shared source with backoff on empty polls), adapted
// from a container-placement loop to an action-queue drain loop.
package dispatcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/fleetd/internal/action"
	"github.com/cuemby/fleetd/internal/executor"
	"github.com/cuemby/fleetd/internal/storage"
	"github.com/cuemby/fleetd/internal/types"
	"github.com/cuemby/fleetd/pkg/log"
	"github.com/cuemby/fleetd/pkg/metrics"
	"github.com/rs/zerolog"
)

// Dispatcher drains the READY queue with a fixed-size worker pool.
type Dispatcher struct {
	rt           *executor.Runtime
	engineID     string
	workers      int
	pollInterval time.Duration
	maxBackoff   time.Duration
	logger       zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Dispatcher. workers is workers_per_engine (§5, default 16).
func New(rt *executor.Runtime, engineID string, workers int, pollInterval time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 16
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Dispatcher{
		rt:           rt,
		engineID:     engineID,
		workers:      workers,
		pollInterval: pollInterval,
		maxBackoff:   5 * time.Second,
		logger:       log.WithComponent("dispatcher").With().Str("engine_id", engineID).Logger(),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the worker pool; it returns immediately.
func (d *Dispatcher) Start() {
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.runWorker(i)
	}
}

// Stop signals every worker to exit and waits for them to drain.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(id int) {
	defer d.wg.Done()
	backoff := d.pollInterval
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}

		a, err := d.rt.Store.AcquireFirstReady(d.engineID, time.Now().UTC())
		if err == storage.ErrNoReadyAction {
			d.sleep(backoff)
			backoff = nextBackoff(backoff, d.maxBackoff)
			continue
		}
		if err != nil {
			d.logger.Error().Err(err).Msg("acquire_first_ready failed")
			d.sleep(backoff)
			backoff = nextBackoff(backoff, d.maxBackoff)
			continue
		}
		backoff = d.pollInterval

		metrics.DispatcherPollsTotal.Inc()
		metrics.WorkerPoolInUse.Inc()
		d.execute(a)
		metrics.WorkerPoolInUse.Dec()
	}
}

// execute runs one action's Executor and applies the terminal transition
// its Result implies (§4.3/§7). A panic inside Execute is converted to
// ResultError, matching "the worker frame catches everything."
func (d *Dispatcher) execute(a *types.Action) {
	start := time.Now()
	result, reason := d.safeExecute(a)
	metrics.ActionDuration.WithLabelValues(a.Action, string(result)).Observe(time.Since(start).Seconds())
	metrics.ActionsTotal.WithLabelValues(string(result)).Inc()

	switch result {
	case action.ResultOK:
		_ = d.rt.Actions.Succeed(a.ID, a.Outputs)
		_ = d.rt.Locks.ReleaseAll(a.ID)
	case action.ResultCancel:
		_ = d.rt.Actions.Cancel(a.ID, reason)
		_ = d.rt.Locks.ReleaseAll(a.ID)
	case action.ResultTimeout:
		_ = d.rt.Actions.Fail(a.ID, "TIMEOUT")
		_ = d.rt.Locks.ReleaseAll(a.ID)
	case action.ResultRetry:
		_ = d.rt.Locks.ReleaseAll(a.ID)
		_ = d.rt.Actions.Retry(a.ID)
	default: // ResultError
		_ = d.rt.Actions.Fail(a.ID, reason)
		_ = d.rt.Locks.ReleaseAll(a.ID)
	}
}

func (d *Dispatcher) safeExecute(a *types.Action) (result action.Result, reason string) {
	defer func() {
		if r := recover(); r != nil {
			result, reason = action.ResultError, "panic in executor"
			d.logger.Error().Interface("panic", r).Str("action_id", a.ID).Str("verb", a.Action).Msg("recovered panic")
		}
	}()

	exec, err := executor.New(a.Action)
	if err != nil {
		return action.ResultError, err.Error()
	}
	if action.IsTimeout(a, time.Now().UTC()) {
		return action.ResultTimeout, "TIMEOUT"
	}
	return exec.Execute(context.Background(), d.rt, a)
}

func (d *Dispatcher) sleep(backoff time.Duration) {
	select {
	case <-d.stopCh:
	case <-time.After(backoff):
	}
}

// nextBackoff doubles up to max, adding jitter so many idle engines don't
// all poll in lockstep.
func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		next = max
	}
	jitter := time.Duration(rand.Int63n(int64(next) / 4 + 1))
	return next + jitter
}
