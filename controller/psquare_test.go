package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantile_smallSamples(t *testing.T) {
	q := newQuantile(0.5)
	assert.Zero(t, q.value())
	for _, v := range []float64{30, 10, 20} {
		q.observe(v)
	}
	assert.Equal(t, 20.0, q.value())
}

func TestQuantile_estimates(t *testing.T) {
	for _, tc := range [...]struct {
		p    float64
		want float64
	}{
		{0.5, 5000},
		{0.9, 9000},
		{0.99, 9900},
	} {
		q := newQuantile(tc.p)
		// a permutation of 0..9999, so the input is not sorted
		for i := range 10000 {
			q.observe(float64(i * 7919 % 10000))
		}
		assert.InDelta(t, tc.want, q.value(), 250, "p=%v", tc.p)
	}
}

func TestMetricsRecorder(t *testing.T) {
	r := newMetricsRecorder()
	assert.Equal(t, Metrics{}, r.get())

	r.round(10, 3, false)
	r.round(30, 1, true)
	r.staleSignal()
	r.injection(KeyInjected)
	r.injection(MotionInjected)
	r.injection(MotionInjected)

	m := r.get()
	assert.Equal(t, uint64(2), m.Rounds)
	assert.Equal(t, uint64(1), m.Timeouts)
	assert.Equal(t, uint64(4), m.Dispatched)
	assert.Equal(t, uint64(1), m.StaleSignals)
	assert.Equal(t, uint64(1), m.KeyInjections)
	assert.Equal(t, uint64(2), m.MotionInjections)
	assert.EqualValues(t, 30, m.RoundMax)
	assert.EqualValues(t, 20, m.RoundMean)
}
