// Package scheduler runs the per-stream probe loops.
//
// One goroutine per target, each on its own jittered ticker. Workers share
// nothing but the registry, so a wedged camera can only ever stall its own
// series.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/config"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/probe"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
)

// Prober probes one RTSP URL. Satisfied by *probe.Prober.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Result
}

// BitrateSampler measures a stream's bitrate over a short window.
// Satisfied by *sampler.Sampler.
type BitrateSampler interface {
	Sample(ctx context.Context, url string) (int64, error)
}

// Config holds scheduling parameters.
type Config struct {
	Interval     time.Duration // default per-target probe interval
	StartJitter  time.Duration // max start stagger across workers
	SampleEveryN int           // bitrate-sample every Nth successful probe
	JitterSeed   int64         // 0 seeds from the clock
}

// Scheduler owns the probe workers.
type Scheduler struct {
	cfg     Config
	prober  Prober
	sampler BitrateSampler
	reg     *registry.Registry
	logger  *slog.Logger

	workers []*worker
	wg      sync.WaitGroup
	stop    context.CancelFunc // stops the tick loops
	kill    context.CancelFunc // kills in-flight probes once the grace period is spent
}

// New creates a Scheduler for the given targets. sampler may be nil to
// disable bitrate sampling.
func New(cfg Config, targets []config.Target, prober Prober, sampler BitrateSampler,
	reg *registry.Registry, logger *slog.Logger) *Scheduler {

	if cfg.SampleEveryN < 1 {
		cfg.SampleEveryN = 1
	}

	jitter := NewJitterSource(cfg.JitterSeed)
	if cfg.JitterSeed == 0 {
		jitter = NewJitterSourceFromTime()
	}

	s := &Scheduler{
		cfg:     cfg,
		prober:  prober,
		sampler: sampler,
		reg:     reg,
		logger:  logger,
	}

	for _, t := range targets {
		interval := t.Interval
		if interval <= 0 {
			interval = cfg.Interval
		}
		s.workers = append(s.workers, &worker{
			target:       t,
			interval:     interval,
			jitter:       jitter.StreamJitter(t.Label(), cfg.StartJitter),
			prober:       prober,
			sampler:      sampler,
			sampleEveryN: cfg.SampleEveryN,
			reg:          reg,
			logger:       logger,
			durations:    newDurationTracker(),
		})
	}

	return s
}

// Start launches one worker per target. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	loopCtx, stop := context.WithCancel(ctx)

	// Probes live on a context detached from the loop context, so stopping
	// the loops never kills a probe mid-flight. The probe context is
	// cancelled only when the shutdown grace period is spent.
	probeCtx, kill := context.WithCancel(context.WithoutCancel(ctx))

	s.stop, s.kill = stop, kill

	s.logger.Info("scheduler_starting",
		"targets", len(s.workers),
		"interval", s.cfg.Interval,
		"start_jitter", s.cfg.StartJitter)

	for _, w := range s.workers {
		s.wg.Add(1)
		go w.run(loopCtx, probeCtx, &s.wg)
	}
}

// Shutdown stops the tick loops and waits up to grace for in-flight probes
// to finish; results that land inside the grace period are applied as usual.
// Only probes still running when the grace period expires are killed, along
// with their subprocesses.
func (s *Scheduler) Shutdown(grace time.Duration) {
	if s.stop == nil {
		return
	}
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler_stopped")
	case <-time.After(grace):
		s.logger.Warn("scheduler_shutdown_grace_exceeded", "grace", grace)
		s.kill()
		<-done
	}
	s.kill()
}
