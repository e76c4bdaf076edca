package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTimer(t *testing.T) {
	timer := NewTimer()
	require.NotNil(t, timer)
	assert.False(t, timer.start.IsZero())
	assert.Less(t, time.Since(timer.start), time.Second)
}

func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	sleep := 50 * time.Millisecond
	time.Sleep(sleep)

	d := timer.Duration()
	assert.GreaterOrEqual(t, d, sleep)
	assert.Less(t, d, 2*sleep)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_fleetd_action_duration_seconds",
		Help:    "Test histogram mirroring ActionDuration",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	assert.NotPanics(t, func() { timer.ObserveDuration(histogram) })
	assert.NotZero(t, timer.Duration())
}

func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_fleetd_policy_check_duration_seconds",
			Help:    "Test histogram vec mirroring PolicyCheckDuration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"when"},
	)

	timer := NewTimer()
	time.Sleep(10 * time.Millisecond)
	assert.NotPanics(t, func() { timer.ObserveDurationVec(histogramVec, "before") })
	assert.NotZero(t, timer.Duration())
}

func TestTimerDurationIsMonotonic(t *testing.T) {
	timer := NewTimer()

	var last time.Duration
	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		d := timer.Duration()
		assert.Greater(t, d, last)
		last = d
	}
}

func TestMultipleTimersTrackIndependently(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(30 * time.Millisecond)
	timer2 := NewTimer()
	time.Sleep(30 * time.Millisecond)

	assert.Greater(t, timer1.Duration(), timer2.Duration())
}
