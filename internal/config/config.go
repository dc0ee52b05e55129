// Package config provides configuration management for go-rtsp-exporter.
//
// Configuration is environment-first (the exporter normally runs as a
// container next to the media server), with command-line flags overriding
// the environment for interactive use.
package config

import "time"

// Config holds all configuration options for the exporter.
type Config struct {
	// Probe targets
	Streams     []string `json:"streams"`      // RTSP URLs to probe
	TargetsFile string   `json:"targets_file"` // optional YAML file with named targets
	Targets     []Target `json:"targets"`      // resolved target list (streams + file)

	// Probing
	ProbeInterval time.Duration `json:"probe_interval"`
	ProbeTimeout  time.Duration `json:"probe_timeout"`
	RTSPTransport string        `json:"rtsp_transport"` // "tcp" or "udp"
	FFprobePath   string        `json:"ffprobe_path"`
	FFmpegPath    string        `json:"ffmpeg_path"`
	StartJitter   time.Duration `json:"start_jitter"` // worker start stagger

	// Bitrate sampling (optional, heavier)
	BitrateSampleSeconds time.Duration `json:"bitrate_sample_seconds"` // 0 = disabled
	BitrateSampleEveryN  int           `json:"bitrate_sample_every_n"` // sample every N probes
	BitrateMethod        string        `json:"bitrate_method"`         // auto, ffmpeg_pipe, ffprobe_packets

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text

	// Shutdown
	ShutdownGrace time.Duration `json:"shutdown_grace"`

	// Diagnostic modes
	PrintCmd      bool `json:"print_cmd"`
	SkipPreflight bool `json:"skip_preflight"`

	// Dashboard
	TUIEnabled bool `json:"tui"`
}

// Target is a single stream to probe. Immutable after startup.
type Target struct {
	Name     string        // stable identity label; defaults to the URL
	URL      string        // rtsp:// or rtsps:// address
	Interval time.Duration // per-target override; 0 = Config.ProbeInterval
}

// Label returns the stream identity label used on every metric.
func (t Target) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.URL
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Probing
		ProbeInterval: 30 * time.Second,
		ProbeTimeout:  15 * time.Second,
		RTSPTransport: "tcp",
		FFprobePath:   "ffprobe",
		FFmpegPath:    "ffmpeg",
		StartJitter:   500 * time.Millisecond,

		// Bitrate sampling
		BitrateSampleSeconds: 0, // disabled
		BitrateSampleEveryN:  4,
		BitrateMethod:        "auto",

		// Observability
		MetricsAddr: "0.0.0.0:8001",
		Verbose:     false,
		LogFormat:   "json",

		// Shutdown
		ShutdownGrace: 10 * time.Second,

		// Dashboard
		TUIEnabled: false,
	}
}
