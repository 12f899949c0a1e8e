package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolMetric records the activity of a store worker pool.
type PoolMetric struct {
	store string
}

func NewPoolMetric(store string) *PoolMetric {
	return &PoolMetric{store: store}
}

func (m *PoolMetric) batches(status string) prometheus.Counter {
	return PoolBatches.With(prometheus.Labels{"store": m.store, "status": status})
}

func (m *PoolMetric) Submitted() {
	m.batches("submitted").Inc()
}

func (m *PoolMetric) Dropped() {
	m.batches("dropped").Inc()
}

func (m *PoolMetric) Committed(rows int, elapsed time.Duration) {
	m.batches("committed").Inc()
	PoolRows.With(prometheus.Labels{"store": m.store}).Add(float64(rows))
	PoolWriteTime.With(prometheus.Labels{"store": m.store}).Observe(elapsed.Seconds())
}

// Failed counts a failed attempt at stage connect or write.
func (m *PoolMetric) Failed(stage string) {
	PoolWriteErrors.With(prometheus.Labels{"store": m.store, "stage": stage}).Inc()
}

func (m *PoolMetric) QueueDepth(depth int) {
	PoolQueueDepth.With(prometheus.Labels{"store": m.store}).Set(float64(depth))
}
