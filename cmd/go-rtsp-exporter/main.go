// Package main provides the go-rtsp-exporter CLI entry point.
//
// go-rtsp-exporter periodically probes RTSP streams with ffprobe and
// publishes their health and media properties as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/config"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/exporter"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/logging"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/probe"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-rtsp-exporter
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-rtsp-exporter %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI is enabled, suppress logs so they do not fight the
	// dashboard for the terminal.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	if cfg.PrintCmd {
		printProbeCommands(cfg)
		return 0
	}

	logger.Info("starting",
		"version", version,
		"targets", len(cfg.Targets),
		"interval", cfg.ProbeInterval,
		"transport", cfg.RTSPTransport,
		"metrics_addr", cfg.MetricsAddr,
	)

	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	exp := exporter.New(cfg, logger)
	if err := exp.Run(context.Background()); err != nil {
		logger.Error("exporter_failed", "error", err)
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                       go-rtsp-exporter                            ║")
	fmt.Println("║        RTSP Stream Health Probing for Prometheus                  ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Streams:     %d every %v (%s)\n", len(cfg.Targets), cfg.ProbeInterval, cfg.RTSPTransport)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	if cfg.BitrateSampleSeconds > 0 {
		fmt.Printf("  Sampling:    %v window every %d probes (%s)\n",
			cfg.BitrateSampleSeconds, cfg.BitrateSampleEveryN, cfg.BitrateMethod)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}

// printProbeCommands prints the ffprobe command line for each target.
func printProbeCommands(cfg *config.Config) {
	prober := probe.New(probe.Config{
		FFprobePath: cfg.FFprobePath,
		Transport:   cfg.RTSPTransport,
		Timeout:     cfg.ProbeTimeout,
	}, slog.Default())

	fmt.Println("# ffprobe command that would be run for each stream:")
	fmt.Println()
	if len(cfg.Targets) == 0 {
		fmt.Println(prober.CommandString("rtsp://<host>:<port>/<path>"))
		return
	}
	for _, t := range cfg.Targets {
		fmt.Println(prober.CommandString(t.URL))
	}
}
