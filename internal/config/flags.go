package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// streamList is a custom flag type for repeatable -stream flags.
type streamList []string

func (s *streamList) String() string {
	return strings.Join(*s, ", ")
}

func (s *streamList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// ParseFlags parses command-line flags on top of the environment and returns
// a Config. Positional arguments are treated as additional stream URLs.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()
	FromEnv(cfg)

	var streams streamList

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-rtsp-exporter - RTSP stream health probing with Prometheus export

Usage:
  go-rtsp-exporter [flags] [RTSP_URL ...]

Probing Flags:
`)
		printFlagCategory([]string{"stream", "targets", "interval", "timeout", "transport", "jitter"})

		fmt.Fprintf(os.Stderr, "\nBitrate Sampling:\n")
		printFlagCategory([]string{"sample-seconds", "sample-every", "sample-method"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "v", "log-format", "tui"})

		fmt.Fprintf(os.Stderr, "\nTools:\n")
		printFlagCategory([]string{"ffprobe", "ffmpeg"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"print-cmd", "skip-preflight", "grace"})

		fmt.Fprintf(os.Stderr, `
Environment:
  RTSP_STREAMS            Comma-separated RTSP URLs
  RTSP_TARGETS_FILE       YAML targets file (see -targets)
  PROBE_INTERVAL          Probe interval in seconds (default 30)
  PROBE_TIMEOUT           ffprobe I/O timeout in seconds (default 15)
  RTSP_TRANSPORT          "tcp" (reliable) or "udp" (lossy, lower latency)
  BITRATE_SAMPLE_SECONDS  Sampling window in seconds; 0 disables
  METRICS_ADDR            Exposition listen address (default 0.0.0.0:8001)

Examples:
  # Probe one stream every 10 seconds
  go-rtsp-exporter -interval 10s rtsp://mediamtx:8554/obs/mystream

  # Multiple streams with bitrate sampling
  RTSP_STREAMS=rtsp://cam1/live,rtsp://cam2/live go-rtsp-exporter -sample-seconds 3s

`)
	}

	// Probing
	flag.Var(&streams, "stream", "RTSP URL to probe (can repeat)")
	flag.StringVar(&cfg.TargetsFile, "targets", cfg.TargetsFile, "YAML file of named targets with per-stream intervals")
	flag.DurationVar(&cfg.ProbeInterval, "interval", cfg.ProbeInterval, "Probe interval per stream")
	flag.DurationVar(&cfg.ProbeTimeout, "timeout", cfg.ProbeTimeout, "ffprobe I/O timeout")
	flag.StringVar(&cfg.RTSPTransport, "transport", cfg.RTSPTransport, `RTSP transport: "tcp" or "udp"`)
	flag.DurationVar(&cfg.StartJitter, "jitter", cfg.StartJitter, "Random stagger applied to each worker's first probe")

	// Bitrate sampling
	flag.DurationVar(&cfg.BitrateSampleSeconds, "sample-seconds", cfg.BitrateSampleSeconds, "Bitrate sampling window (0 = disabled)")
	flag.IntVar(&cfg.BitrateSampleEveryN, "sample-every", cfg.BitrateSampleEveryN, "Sample bitrate every N probes per stream")
	flag.StringVar(&cfg.BitrateMethod, "sample-method", cfg.BitrateMethod, `Sampling method: "auto", "ffmpeg_pipe", "ffprobe_packets"`)

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard")

	// Tools
	flag.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "Path to ffprobe binary")
	flag.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "Path to ffmpeg binary (bitrate sampling)")

	// Diagnostics
	flag.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the ffprobe command and exit")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")
	flag.DurationVar(&cfg.ShutdownGrace, "grace", cfg.ShutdownGrace, "Grace period for in-flight probes on shutdown")

	flag.Parse()

	cfg.Streams = append(cfg.Streams, streams...)
	cfg.Streams = append(cfg.Streams, flag.Args()...)

	if err := ResolveTargets(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}
