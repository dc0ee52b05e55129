package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/config"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/mapper"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/sampler"
)

// Metric names owned by the scheduling layer.
const (
	MetricTicksSkipped        = "probe_ticks_skipped_total"
	MetricBitrateSampleErrors = "bitrate_sample_errors_total"
	MetricDurationP50         = "probe_duration_p50_seconds"
	MetricDurationP95         = "probe_duration_p95_seconds"
	MetricDurationP99         = "probe_duration_p99_seconds"
)

// worker drives the probe loop for one stream. Each worker owns its target's
// metric series exclusively, so streams never contend on state.
type worker struct {
	target   config.Target
	interval time.Duration
	jitter   time.Duration

	prober       Prober
	sampler      BitrateSampler // nil when sampling is disabled
	sampleEveryN int

	reg    *registry.Registry
	logger *slog.Logger

	// inflight guards against overlapping probes: a tick that fires while
	// the previous probe is still running is skipped, never queued.
	inflight atomic.Bool

	// Mutated only inside runProbe; the inflight CAS orders the accesses.
	consecutiveFailures int
	probeCount          int

	durations *durationTracker
}

// run is the worker's main loop: jittered start, then a fixed-rate ticker.
// Tick spacing is start-to-start; a slow probe eats into its own interval
// rather than delaying the next tick. loopCtx stops the ticker, probeCtx
// kills in-flight probes; keeping them separate lets shutdown drain probes
// instead of tearing them down.
func (w *worker) run(loopCtx, probeCtx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	select {
	case <-time.After(w.jitter):
	case <-loopCtx.Done():
		return
	}

	// First probe fires immediately after the jitter delay.
	w.tick(probeCtx, wg)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(probeCtx, wg)
		case <-loopCtx.Done():
			return
		}
	}
}

func (w *worker) tick(ctx context.Context, wg *sync.WaitGroup) {
	if !w.inflight.CompareAndSwap(false, true) {
		w.logger.Warn("probe_tick_skipped",
			"stream", w.target.Label(),
			"interval", w.interval)
		w.reg.AddCounter(MetricTicksSkipped,
			"Probe ticks skipped because the previous probe was still running.",
			map[string]string{"stream": w.target.Label()}, 1)
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer w.inflight.Store(false)
		w.runProbe(ctx)
	}()
}

func (w *worker) runProbe(ctx context.Context) {
	label := w.target.Label()
	w.probeCount++

	res := w.prober.Probe(ctx, w.target.URL)
	if ctx.Err() != nil {
		// The probe was killed after the shutdown grace period; whatever
		// came back is an artifact of the kill, not the stream.
		return
	}

	if res.OK() {
		w.consecutiveFailures = 0
	} else {
		w.consecutiveFailures++
		w.logger.Warn("probe_failed",
			"stream", label,
			"kind", string(res.Failure.Kind),
			"reason", res.Failure.Reason,
			"detail", res.Failure.Message,
			"consecutive_failures", w.consecutiveFailures,
			"elapsed", res.Elapsed)
	}

	// Sampling is the fallback for encoders whose headers report no
	// bitrate; a header-reported value makes the sample redundant.
	var sampled *int64
	if res.OK() && res.Description.BitrateBPS == nil &&
		w.sampler != nil && w.probeCount%w.sampleEveryN == 0 {
		if bps, err := w.sampler.Sample(ctx, w.target.URL); err != nil {
			w.recordSampleError(label, err)
		} else {
			sampled = &bps
		}
	}

	w.reg.Apply(mapper.Map(mapper.Input{
		Stream:              label,
		Result:              res,
		SampledBitrate:      sampled,
		ConsecutiveFailures: w.consecutiveFailures,
		Now:                 time.Now(),
	}))

	w.durations.Observe(res.Elapsed.Seconds())
	w.publishDurationQuantiles(label)

	if res.OK() {
		w.logger.Debug("probe_ok", "stream", label, "elapsed", res.Elapsed)
	}
}

// recordSampleError counts a failed bitrate sample. Sampling is best-effort:
// the failure never touches stream_up or the media gauges.
func (w *worker) recordSampleError(label string, err error) {
	reason := "other"
	var serr *sampler.Error
	if errors.As(err, &serr) {
		reason = serr.Reason
	}
	w.logger.Debug("bitrate_sample_failed", "stream", label, "reason", reason, "error", err)
	w.reg.AddCounter(MetricBitrateSampleErrors,
		"Failed bitrate sampling attempts by reason.",
		map[string]string{"stream": label, "reason": reason}, 1)
}

func (w *worker) publishDurationQuantiles(label string) {
	labels := map[string]string{"stream": label}
	for _, pq := range []struct {
		name string
		q    float64
	}{
		{MetricDurationP50, 0.50},
		{MetricDurationP95, 0.95},
		{MetricDurationP99, 0.99},
	} {
		v := w.durations.Quantile(pq.q)
		if math.IsNaN(v) {
			continue
		}
		w.reg.SetGauge(pq.name, "Probe duration quantile in seconds.", labels, v)
	}
}
