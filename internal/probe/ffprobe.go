// Package probe invokes ffprobe against RTSP streams and normalizes its
// JSON output into stream descriptions.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/process"
)

// Config holds configuration for the ffprobe prober.
type Config struct {
	// FFprobePath is the path to the ffprobe binary.
	FFprobePath string

	// Transport selects the RTSP transport: "tcp" or "udp".
	Transport string

	// Timeout is the I/O timeout for a single probe. It is passed to
	// ffprobe as -rw_timeout and enforced locally as a hard deadline.
	Timeout time.Duration
}

// Prober probes RTSP streams with ffprobe.
type Prober struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Prober.
func New(cfg Config, logger *slog.Logger) *Prober {
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	return &Prober{cfg: cfg, logger: logger}
}

// hardDeadlineHeadroom is added to ffprobe's own -rw_timeout before the
// process group is killed, so the tool's cleaner in-band error wins when it
// can. The local kill is the backstop against a wedged ffprobe.
const hardDeadlineHeadroom = 5 * time.Second

// Probe runs one ffprobe invocation against url and returns the outcome.
// A repeated probe may return a different result; nothing is cached.
func (p *Prober) Probe(ctx context.Context, url string) Result {
	res := process.Run(ctx, p.cfg.Timeout+hardDeadlineHeadroom,
		p.cfg.FFprobePath, p.buildArgs(url, true)...)

	// Some ffprobe builds predate -rw_timeout; retry once without it.
	if res.Status == process.StatusCompleted && res.ExitCode != 0 {
		stderr := strings.ToLower(string(res.Stderr))
		if strings.Contains(stderr, "unrecognized option") || strings.Contains(stderr, "option not found") {
			p.logger.Debug("ffprobe_rw_timeout_unsupported", "url", url)
			res = process.Run(ctx, p.cfg.Timeout+hardDeadlineHeadroom,
				p.cfg.FFprobePath, p.buildArgs(url, false)...)
		}
	}

	if f := failureFromRun(res); f != nil {
		return Result{Failure: f, ExitCode: res.ExitCode, Elapsed: res.Elapsed}
	}

	if res.ExitCode != 0 {
		kind, reason := classifyStderr(string(res.Stderr))
		return Result{
			Failure: &Failure{
				Kind:    kind,
				Reason:  reason,
				Message: shortMessage(res.Stderr),
			},
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed,
		}
	}

	desc, err := parseDescription(res.Stdout)
	if err != nil {
		return Result{
			Failure: &Failure{
				Kind:    KindParseError,
				Reason:  "bad_output",
				Message: err.Error(),
			},
			ExitCode: res.ExitCode,
			Elapsed:  res.Elapsed,
		}
	}

	return Result{Description: desc, ExitCode: res.ExitCode, Elapsed: res.Elapsed}
}

// buildArgs assembles the ffprobe command line. The timeout is also appended
// to the URL as a protocol option, a fallback hint for builds that only read
// options from the URL.
func (p *Prober) buildArgs(url string, useRWTimeout bool) []string {
	timeoutUS := strconv.FormatInt(p.cfg.Timeout.Microseconds(), 10)

	args := []string{
		"-v", "error",
		"-rtsp_transport", p.cfg.Transport,
	}
	if useRWTimeout {
		args = append(args, "-rw_timeout", timeoutUS)
	}
	args = append(args,
		"-show_streams",
		"-show_format",
		"-of", "json",
		probeURL(url, timeoutUS),
	)
	return args
}

// probeURL appends timeout=<µs> to the URL query.
func probeURL(url, timeoutUS string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "timeout=" + timeoutUS
}

// CommandString returns the ffprobe command for diagnostics (-print-cmd).
func (p *Prober) CommandString(url string) string {
	return p.cfg.FFprobePath + " " + strings.Join(p.buildArgs(url, true), " ")
}

// parseDescription decodes ffprobe JSON and extracts the normalized media
// properties. Output without a video or audio stream entry is a parse
// failure: it means ffprobe connected but saw no media.
func parseDescription(stdout []byte) (*StreamDescription, error) {
	if len(strings.TrimSpace(string(stdout))) == 0 {
		return nil, fmt.Errorf("ffprobe produced no output")
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	if len(out.Streams) == 0 {
		return nil, fmt.Errorf("ffprobe output has no stream entries")
	}

	desc := &StreamDescription{}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			desc.HasVideo = true
			desc.VideoCodec = codecName(s.CodecName)
			if rate, ok := parseFrameRate(s.AvgFrameRate); ok {
				desc.FrameRate = &rate
			}
			if s.Width > 0 {
				w := s.Width
				desc.Width = &w
			}
			if s.Height > 0 {
				h := s.Height
				desc.Height = &h
			}
		case "audio":
			desc.HasAudio = true
			desc.AudioCodec = codecName(s.CodecName)
			if sr, ok := parseNumeric(s.SampleRate); ok && sr > 0 {
				n := int(sr)
				desc.AudioSampleRate = &n
			}
			if s.Channels > 0 {
				ch := s.Channels
				desc.AudioChannels = &ch
			}
		}
	}

	// Entries of other codec types (data, subtitles) do not make a stream.
	if !desc.HasVideo && !desc.HasAudio {
		return nil, fmt.Errorf("ffprobe output has no video or audio stream")
	}

	// Bitrate: prefer the container-level value, then sum per-stream values.
	if br, ok := parseNumeric(out.Format.BitRate); ok && br > 0 {
		desc.BitrateBPS = &br
	} else if sum := sumStreamBitrates(out.Streams); sum > 0 {
		desc.BitrateBPS = &sum
	}

	return desc, nil
}

func codecName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

// parseFrameRate parses ffprobe's "num/den" rational frame rate.
func parseFrameRate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	n, err1 := strconv.ParseInt(num, 10, 64)
	d, err2 := strconv.ParseInt(den, 10, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, false
	}
	return float64(n) / float64(d), true
}

// parseNumeric parses a numeric string field, tolerating "" and "N/A".
func parseNumeric(s string) (int64, bool) {
	if s == "" || s == "N/A" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func sumStreamBitrates(streams []ffprobeStream) int64 {
	var total int64
	for _, s := range streams {
		if br, ok := parseNumeric(s.BitRate); ok && br > 0 {
			total += br
		}
	}
	return total
}
