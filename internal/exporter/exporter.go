// Package exporter wires the probe scheduler, bitrate sampler, metric
// registry and HTTP exposition into a running service.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/config"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/metrics"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/preflight"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/probe"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/sampler"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/scheduler"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/tui"
)

// Exporter is the assembled service.
type Exporter struct {
	cfg    *config.Config
	logger *slog.Logger

	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	server    *metrics.Server
}

// New assembles an Exporter from validated configuration.
func New(cfg *config.Config, logger *slog.Logger) *Exporter {
	reg := registry.New()

	prober := probe.New(probe.Config{
		FFprobePath: cfg.FFprobePath,
		Transport:   cfg.RTSPTransport,
		Timeout:     cfg.ProbeTimeout,
	}, logger)

	var smp scheduler.BitrateSampler
	if cfg.BitrateSampleSeconds > 0 {
		smp = sampler.New(sampler.Config{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			Transport:   cfg.RTSPTransport,
			Window:      cfg.BitrateSampleSeconds,
			Method:      cfg.BitrateMethod,
		}, logger)
	}

	sched := scheduler.New(scheduler.Config{
		Interval:     cfg.ProbeInterval,
		StartJitter:  cfg.StartJitter,
		SampleEveryN: cfg.BitrateSampleEveryN,
	}, cfg.Targets, prober, smp, reg, logger)

	return &Exporter{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		scheduler: sched,
		server:    metrics.NewServer(cfg.MetricsAddr, reg, logger),
	}
}

// Registry exposes the metric registry, for tests and the dashboard.
func (e *Exporter) Registry() *registry.Registry {
	return e.registry
}

// Run starts the service and blocks until ctx is cancelled or a signal
// arrives. Shutdown drains probes first so the final scrape still sees a
// consistent registry, then stops the HTTP server.
func (e *Exporter) Run(ctx context.Context) error {
	if !e.cfg.SkipPreflight {
		ffmpeg := ""
		if e.cfg.BitrateSampleSeconds > 0 {
			ffmpeg = e.cfg.FFmpegPath
		}
		result := preflight.RunAll(len(e.cfg.Targets), e.cfg.FFprobePath, ffmpeg)
		if !result.Passed {
			preflight.PrintResults(result)
			return fmt.Errorf("preflight checks failed")
		}
		for _, c := range result.Checks {
			e.logger.Debug("preflight_check", "name", c.Name, "message", c.Message)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.server.Start(); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	e.scheduler.Start(ctx)
	e.logger.Info("exporter_started",
		"targets", len(e.cfg.Targets),
		"metrics_addr", e.cfg.MetricsAddr,
		"interval", e.cfg.ProbeInterval)

	if e.cfg.TUIEnabled {
		e.runTUI(ctx, stop)
	} else {
		<-ctx.Done()
	}

	e.logger.Info("shutting_down", "grace", e.cfg.ShutdownGrace)
	e.scheduler.Shutdown(e.cfg.ShutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.logger.Warn("metrics_server_shutdown_failed", "error", err)
	}

	return nil
}

// runTUI blocks on the dashboard. Quitting the dashboard stops the
// exporter; a signal stops the dashboard.
func (e *Exporter) runTUI(ctx context.Context, stop context.CancelFunc) {
	streams := make([]string, 0, len(e.cfg.Targets))
	for _, t := range e.cfg.Targets {
		streams = append(streams, t.Label())
	}

	p := tea.NewProgram(tui.New(tui.Config{
		MetricsAddr: e.cfg.MetricsAddr,
		Source:      e.registry,
		Streams:     streams,
	}), tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		tui.SendQuit(p)
	}()

	if _, err := p.Run(); err != nil {
		e.logger.Error("tui_failed", "error", err)
	}
	stop()
}
