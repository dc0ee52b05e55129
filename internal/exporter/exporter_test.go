package exporter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/config"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/mapper"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubFFprobe answers -version for preflight and emits a fixed stream
// description for probes.
func stubFFprobe(t *testing.T) string {
	t.Helper()
	script := `#!/bin/sh
case "$1" in
-version)
  echo "ffprobe version 6.1.1 Copyright (c) 2007 the FFmpeg developers"
  exit 0
  ;;
esac
cat <<'EOF'
{"streams":[{"codec_type":"video","codec_name":"h264","width":1280,"height":720,"avg_frame_rate":"25/1"}],"format":{"bit_rate":"1000000"}}
EOF`
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.FFprobePath = stubFFprobe(t)
	cfg.Targets = []config.Target{{Name: "cam", URL: "rtsp://cam:8554/live"}}
	cfg.ProbeInterval = 50 * time.Millisecond
	cfg.ProbeTimeout = 2 * time.Second
	cfg.StartJitter = 0
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShutdownGrace = 2 * time.Second
	return cfg
}

func TestRun_ProbesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	e := New(cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	// Give the scheduler a few cycles, then stop.
	time.Sleep(300 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	samples, err := e.Registry().Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	var up, fps float64
	var seen bool
	for _, s := range samples {
		if s.Labels["stream"] != "cam" {
			continue
		}
		switch s.Name {
		case mapper.MetricStreamUp:
			up, seen = s.Value, true
		case mapper.MetricFrameRate:
			fps = s.Value
		}
	}
	if !seen {
		t.Fatal("no samples for the configured stream")
	}
	if up != 1 {
		t.Errorf("stream_up = %v, want 1", up)
	}
	if fps != 25 {
		t.Errorf("stream_frame_rate = %v, want 25", fps)
	}
}

func TestRun_PreflightFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFprobePath = "/nonexistent/ffprobe"

	e := New(cfg, testLogger())
	if err := e.Run(context.Background()); err == nil {
		t.Error("expected a preflight error")
	}
}

func TestRun_SkipPreflight(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFprobePath = "/nonexistent/ffprobe"
	cfg.SkipPreflight = true

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	e := New(cfg, testLogger())
	go func() { done <- e.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	// Probes fail fast against the missing binary; the failure shows up
	// in the registry instead of crashing the exporter.
	samples, err := e.Registry().Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range samples {
		if s.Name == mapper.MetricStreamUp && s.Labels["stream"] == "cam" && s.Value == 0 {
			return
		}
	}
	t.Error("stream_up=0 sample missing for the unreachable stream")
}
