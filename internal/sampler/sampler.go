// Package sampler measures actual stream bitrate by pulling media for a
// short window. It is the heavier fallback for encoders that do not report
// bit_rate in their headers; every failure is soft and only surfaces as a
// missing sample plus a counter increment.
package sampler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/process"
)

// Method selects how a sample is taken.
const (
	MethodAuto           = "auto"
	MethodFFmpegPipe     = "ffmpeg_pipe"
	MethodFFprobePackets = "ffprobe_packets"
)

// Error reasons recorded on bitrate_sample_errors_total.
const (
	ReasonSpawnFailed = "spawn_failed"
	ReasonTimeout     = "timeout"
	ReasonNoData      = "no_data"
	ReasonParseError  = "parse_error"
	ReasonExitError   = "exit_error"
)

// Error is a failed sampling attempt with a compact reason key for metrics.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bitrate sample failed (%s): %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds configuration for the bitrate sampler.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Transport   string // "tcp" or "udp"
	Window      time.Duration
	Method      string // auto, ffmpeg_pipe, ffprobe_packets
}

// Sampler takes bitrate samples from RTSP streams.
type Sampler struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Sampler.
func New(cfg Config, logger *slog.Logger) *Sampler {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.Method == "" {
		cfg.Method = MethodAuto
	}
	return &Sampler{cfg: cfg, logger: logger}
}

// spawnHeadroom covers connection setup before media starts flowing.
const spawnHeadroom = 10 * time.Second

// Sample measures the stream's bitrate in bits per second over the
// configured window. With MethodAuto the pipe method is tried first and the
// packet method covers for it on failure.
func (s *Sampler) Sample(ctx context.Context, url string) (int64, error) {
	switch s.cfg.Method {
	case MethodFFmpegPipe:
		return s.sampleFFmpegPipe(ctx, url)
	case MethodFFprobePackets:
		return s.sampleFFprobePackets(ctx, url)
	default:
		bps, err := s.sampleFFmpegPipe(ctx, url)
		if err == nil {
			return bps, nil
		}
		s.logger.Debug("bitrate_pipe_method_failed", "url", url, "error", err)
		return s.sampleFFprobePackets(ctx, url)
	}
}

// sampleFFmpegPipe remuxes the stream to a pipe for the window and counts
// output bytes. Codec copy keeps it cheap; -t makes ffmpeg stop on its own.
func (s *Sampler) sampleFFmpegPipe(ctx context.Context, url string) (int64, error) {
	secs := strconv.FormatFloat(s.cfg.Window.Seconds(), 'f', -1, 64)

	res := process.Run(ctx, s.cfg.Window+spawnHeadroom, s.cfg.FFmpegPath,
		"-v", "error",
		"-rtsp_transport", s.cfg.Transport,
		"-i", url,
		"-t", secs,
		"-map", "0",
		"-c", "copy",
		"-f", "mpegts",
		"pipe:1",
	)

	if err := runError(res); err != nil {
		return 0, err
	}

	if len(res.Stdout) == 0 {
		return 0, &Error{Reason: ReasonNoData, Err: fmt.Errorf("ffmpeg produced no output")}
	}

	return s.toBitsPerSecond(int64(len(res.Stdout))), nil
}

// packetsOutput mirrors `ffprobe -show_packets -of json`.
type packetsOutput struct {
	Packets []struct {
		Size string `json:"size"`
	} `json:"packets"`
}

// sampleFFprobePackets reads packet headers for the window and sums their
// sizes. No media is decoded or copied, so it is lighter on the wire than
// the pipe method but some servers refuse the interval request.
func (s *Sampler) sampleFFprobePackets(ctx context.Context, url string) (int64, error) {
	secs := strconv.FormatFloat(s.cfg.Window.Seconds(), 'f', -1, 64)

	res := process.Run(ctx, s.cfg.Window+spawnHeadroom, s.cfg.FFprobePath,
		"-v", "error",
		"-rtsp_transport", s.cfg.Transport,
		"-show_packets",
		"-read_intervals", "%+"+secs,
		"-of", "json",
		url,
	)

	if err := runError(res); err != nil {
		return 0, err
	}

	var out packetsOutput
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return 0, &Error{Reason: ReasonParseError, Err: fmt.Errorf("decode packet list: %w", err)}
	}
	if len(out.Packets) == 0 {
		return 0, &Error{Reason: ReasonNoData, Err: fmt.Errorf("no packets in the sample window")}
	}

	var totalBytes int64
	for _, p := range out.Packets {
		if n, err := strconv.ParseInt(p.Size, 10, 64); err == nil {
			totalBytes += n
		}
	}
	if totalBytes == 0 {
		return 0, &Error{Reason: ReasonNoData, Err: fmt.Errorf("packet sizes sum to zero")}
	}

	return s.toBitsPerSecond(totalBytes), nil
}

// toBitsPerSecond converts bytes read over the window to a bitrate. Float
// math keeps sub-second windows valid.
func (s *Sampler) toBitsPerSecond(bytes int64) int64 {
	secs := s.cfg.Window.Seconds()
	if secs <= 0 {
		return 0
	}
	return int64(float64(bytes) * 8 / secs)
}

// runError converts a process-level failure into a sampler Error, nil when
// the tool ran to a clean exit.
func runError(res process.Result) error {
	switch res.Status {
	case process.StatusTimedOut:
		return &Error{Reason: ReasonTimeout, Err: fmt.Errorf("sample window overran its deadline")}
	case process.StatusErrored:
		return &Error{Reason: ReasonSpawnFailed, Err: res.Err}
	}
	if res.ExitCode != 0 {
		return &Error{Reason: ReasonExitError, Err: fmt.Errorf("exit code %d: %s", res.ExitCode, firstLine(res.Stderr))}
	}
	return nil
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
