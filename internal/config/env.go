package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables understood by the exporter. All are optional; flags
// override any value set here.
const (
	EnvStreams             = "RTSP_STREAMS"           // comma-separated RTSP URLs
	EnvTargetsFile         = "RTSP_TARGETS_FILE"      // YAML targets file
	EnvProbeInterval       = "PROBE_INTERVAL"         // seconds
	EnvProbeTimeout        = "PROBE_TIMEOUT"          // seconds
	EnvRTSPTransport       = "RTSP_TRANSPORT"         // tcp | udp
	EnvBitrateSampleSecs   = "BITRATE_SAMPLE_SECONDS" // 0 disables sampling
	EnvBitrateSampleEveryN = "BITRATE_SAMPLE_EVERY_N"
	EnvBitrateMethod       = "BITRATE_METHOD" // auto | ffmpeg_pipe | ffprobe_packets
	EnvMetricsAddr         = "METRICS_ADDR"
	EnvLogFormat           = "LOG_FORMAT" // json | text
)

// FromEnv applies environment variables on top of cfg. Unset or malformed
// values leave the existing value untouched.
func FromEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvStreams); ok {
		cfg.Streams = splitStreams(v)
	}
	if v, ok := os.LookupEnv(EnvTargetsFile); ok && v != "" {
		cfg.TargetsFile = v
	}
	if d, ok := envSeconds(EnvProbeInterval); ok {
		cfg.ProbeInterval = d
	}
	if d, ok := envSeconds(EnvProbeTimeout); ok {
		cfg.ProbeTimeout = d
	}
	if v, ok := os.LookupEnv(EnvRTSPTransport); ok && v != "" {
		cfg.RTSPTransport = strings.ToLower(v)
	}
	if d, ok := envSeconds(EnvBitrateSampleSecs); ok {
		cfg.BitrateSampleSeconds = d
	}
	if n, ok := envInt(EnvBitrateSampleEveryN); ok {
		cfg.BitrateSampleEveryN = n
	}
	if v, ok := os.LookupEnv(EnvBitrateMethod); ok && v != "" {
		cfg.BitrateMethod = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok && v != "" {
		cfg.MetricsAddr = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok && v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
}

// splitStreams splits a comma-separated URL list, dropping empty entries.
func splitStreams(s string) []string {
	parts := strings.Split(s, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			urls = append(urls, p)
		}
	}
	return urls
}

// envSeconds reads an integer environment variable expressed in seconds.
func envSeconds(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}
