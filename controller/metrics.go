package controller

import (
	"sync"
	"time"
)

// Metrics is a snapshot of synchronisation statistics.
type Metrics struct {
	// Rounds counts completed loopUntil rounds, including timeouts.
	Rounds uint64
	// Timeouts counts rounds that reached the master policy deadline.
	Timeouts uint64
	// StaleSignals counts signals dropped for carrying an old generation.
	StaleSignals uint64
	// Dispatched counts messages the controller drained from the looper.
	Dispatched uint64
	// KeyInjections and MotionInjections count injection attempts.
	KeyInjections    uint64
	MotionInjections uint64

	// Round duration distribution (streaming estimates).
	RoundP50  time.Duration
	RoundP90  time.Duration
	RoundP99  time.Duration
	RoundMax  time.Duration
	RoundMean time.Duration
}

type metricsRecorder struct {
	p50, p90, p99 *quantile
	mu            sync.Mutex
	snapshot      Metrics
	roundSum      time.Duration
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{
		p50: newQuantile(0.50),
		p90: newQuantile(0.90),
		p99: newQuantile(0.99),
	}
}

func (x *metricsRecorder) round(d time.Duration, dispatched uint64, timedOut bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.snapshot.Rounds++
	x.snapshot.Dispatched += dispatched
	if timedOut {
		x.snapshot.Timeouts++
	}
	x.roundSum += d
	x.snapshot.RoundMax = max(x.snapshot.RoundMax, d)
	for _, q := range [...]*quantile{x.p50, x.p90, x.p99} {
		q.observe(float64(d))
	}
}

func (x *metricsRecorder) staleSignal() {
	x.mu.Lock()
	x.snapshot.StaleSignals++
	x.mu.Unlock()
}

func (x *metricsRecorder) injection(c Condition) {
	x.mu.Lock()
	if c == KeyInjected {
		x.snapshot.KeyInjections++
	} else {
		x.snapshot.MotionInjections++
	}
	x.mu.Unlock()
}

func (x *metricsRecorder) get() Metrics {
	x.mu.Lock()
	defer x.mu.Unlock()
	m := x.snapshot
	m.RoundP50 = time.Duration(x.p50.value())
	m.RoundP90 = time.Duration(x.p90.value())
	m.RoundP99 = time.Duration(x.p99.value())
	if m.Rounds != 0 {
		m.RoundMean = x.roundSum / time.Duration(m.Rounds)
	}
	return m
}
