package scheduler

import (
	"sync"

	"github.com/influxdata/tdigest"
)

// durationTracker keeps a streaming sketch of probe durations for one
// stream. TDigest keeps the tail quantiles accurate at constant memory, so
// long-running exporters do not accumulate per-probe samples.
type durationTracker struct {
	mu sync.Mutex
	td *tdigest.TDigest
}

func newDurationTracker() *durationTracker {
	return &durationTracker{
		td: tdigest.NewWithCompression(100),
	}
}

// Observe records one probe duration in seconds.
func (d *durationTracker) Observe(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.td.Add(seconds, 1)
}

// Quantile returns the q-th quantile of observed durations, NaN before the
// first observation.
func (d *durationTracker) Quantile(q float64) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.td.Quantile(q)
}
