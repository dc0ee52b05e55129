// Package mapper translates probe outcomes into metric observations.
//
// The translation is a pure function: no clocks, no registries, no I/O. The
// scheduler supplies the timestamp and failure streak, the registry applies
// the result. On failure only stream_up, the error counter and the probe
// bookkeeping series are written, so the media gauges keep their last good
// values and dashboards do not flap to zero on a single missed probe.
package mapper

import (
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/probe"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
)

// Metric names written by the exporter.
const (
	MetricStreamUp             = "stream_up"
	MetricFrameRate            = "stream_frame_rate"
	MetricResolutionWidth      = "stream_resolution_width"
	MetricResolutionHeight     = "stream_resolution_height"
	MetricBitrateBPS           = "stream_bitrate_bps"
	MetricVideoCodecInfo       = "stream_video_codec_info"
	MetricAudioCodecInfo       = "stream_audio_codec_info"
	MetricAudioChannels        = "stream_audio_channels"
	MetricAudioSampleRate      = "stream_audio_sample_rate_hz"
	MetricLastSuccessTimestamp = "stream_last_success_timestamp_seconds"
	MetricConsecutiveFailures  = "stream_consecutive_failures"
	MetricProbeErrors          = "probe_errors_total"
	MetricProbeDuration        = "probe_duration_seconds"
	MetricProbeExitCode        = "probe_exit_code"
)

// Input is everything one probe cycle produced for one stream.
type Input struct {
	Stream string // identity label on every series
	Result probe.Result

	// SampledBitrate carries a measured bitrate for streams whose headers
	// report none. A header-reported value always wins over it.
	SampledBitrate *int64

	// ConsecutiveFailures counts failed probes since the last success,
	// including this one when the result is a failure.
	ConsecutiveFailures int

	Now time.Time
}

// Map converts one probe cycle into ordered observations.
func Map(in Input) []registry.Observation {
	stream := map[string]string{"stream": in.Stream}

	obs := []registry.Observation{
		gauge(MetricProbeDuration,
			"Wall time of the last probe attempt in seconds.",
			stream, in.Result.Elapsed.Seconds()),
		gauge(MetricProbeExitCode,
			"Exit code of the last ffprobe invocation.",
			stream, float64(in.Result.ExitCode)),
	}

	if !in.Result.OK() {
		return append(obs,
			gauge(MetricStreamUp,
				"Whether the last probe of the stream succeeded.",
				stream, 0),
			gauge(MetricConsecutiveFailures,
				"Failed probes since the last success.",
				stream, float64(in.ConsecutiveFailures)),
			counter(MetricProbeErrors,
				"Probe failures by error class.",
				map[string]string{"stream": in.Stream, "error": string(in.Result.Failure.Kind)}, 1),
		)
	}

	desc := in.Result.Description
	obs = append(obs,
		gauge(MetricStreamUp,
			"Whether the last probe of the stream succeeded.",
			stream, 1),
		gauge(MetricConsecutiveFailures,
			"Failed probes since the last success.",
			stream, 0),
		gauge(MetricLastSuccessTimestamp,
			"Unix time of the last successful probe.",
			stream, float64(in.Now.Unix())),
	)

	if desc.FrameRate != nil {
		obs = append(obs, gauge(MetricFrameRate,
			"Video frame rate in frames per second.", stream, *desc.FrameRate))
	}
	if desc.Width != nil {
		obs = append(obs, gauge(MetricResolutionWidth,
			"Video width in pixels.", stream, float64(*desc.Width)))
	}
	if desc.Height != nil {
		obs = append(obs, gauge(MetricResolutionHeight,
			"Video height in pixels.", stream, float64(*desc.Height)))
	}

	if desc.BitrateBPS != nil {
		obs = append(obs, gauge(MetricBitrateBPS,
			"Stream bitrate in bits per second.", stream, float64(*desc.BitrateBPS)))
	} else if in.SampledBitrate != nil {
		obs = append(obs, gauge(MetricBitrateBPS,
			"Stream bitrate in bits per second.", stream, float64(*in.SampledBitrate)))
	}

	if desc.HasVideo {
		obs = append(obs, gauge(MetricVideoCodecInfo,
			"Video codec of the stream; the codec is a label.",
			map[string]string{"stream": in.Stream, "codec": desc.VideoCodec}, 1))
	}
	if desc.HasAudio {
		obs = append(obs, gauge(MetricAudioCodecInfo,
			"Audio codec of the stream; the codec is a label.",
			map[string]string{"stream": in.Stream, "codec": desc.AudioCodec}, 1))
	}
	if desc.AudioChannels != nil {
		obs = append(obs, gauge(MetricAudioChannels,
			"Audio channel count.", stream, float64(*desc.AudioChannels)))
	}
	if desc.AudioSampleRate != nil {
		obs = append(obs, gauge(MetricAudioSampleRate,
			"Audio sample rate in Hz.", stream, float64(*desc.AudioSampleRate)))
	}

	return obs
}

func gauge(name, help string, labels map[string]string, value float64) registry.Observation {
	return registry.Observation{Kind: registry.KindGauge, Name: name, Help: help, Labels: labels, Value: value}
}

func counter(name, help string, labels map[string]string, value float64) registry.Observation {
	return registry.Observation{Kind: registry.KindCounter, Name: name, Help: help, Labels: labels, Value: value}
}
