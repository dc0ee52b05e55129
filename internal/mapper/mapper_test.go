package mapper

import (
	"testing"
	"time"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/probe"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
)

func ptr[T any](v T) *T { return &v }

func successResult() probe.Result {
	return probe.Result{
		Description: &probe.StreamDescription{
			HasVideo:        true,
			HasAudio:        true,
			VideoCodec:      "h264",
			AudioCodec:      "aac",
			FrameRate:       ptr(29.97),
			Width:           ptr(1920),
			Height:          ptr(1080),
			BitrateBPS:      ptr(int64(2000000)),
			AudioChannels:   ptr(2),
			AudioSampleRate: ptr(48000),
		},
		ExitCode: 0,
		Elapsed:  750 * time.Millisecond,
	}
}

func find(obs []registry.Observation, name string) (registry.Observation, bool) {
	for _, o := range obs {
		if o.Name == name {
			return o, true
		}
	}
	return registry.Observation{}, false
}

func assertGauge(t *testing.T, obs []registry.Observation, name string, want float64) {
	t.Helper()
	o, ok := find(obs, name)
	if !ok {
		t.Errorf("observation %s missing", name)
		return
	}
	if o.Kind != registry.KindGauge {
		t.Errorf("%s is not a gauge", name)
	}
	if o.Value != want {
		t.Errorf("%s = %v, want %v", name, o.Value, want)
	}
}

func TestMap_Success(t *testing.T) {
	now := time.Unix(1700000000, 0)
	obs := Map(Input{
		Stream: "lobby",
		Result: successResult(),
		Now:    now,
	})

	assertGauge(t, obs, MetricStreamUp, 1)
	assertGauge(t, obs, MetricFrameRate, 29.97)
	assertGauge(t, obs, MetricResolutionWidth, 1920)
	assertGauge(t, obs, MetricResolutionHeight, 1080)
	assertGauge(t, obs, MetricBitrateBPS, 2000000)
	assertGauge(t, obs, MetricAudioChannels, 2)
	assertGauge(t, obs, MetricAudioSampleRate, 48000)
	assertGauge(t, obs, MetricConsecutiveFailures, 0)
	assertGauge(t, obs, MetricLastSuccessTimestamp, 1700000000)
	assertGauge(t, obs, MetricProbeDuration, 0.75)
	assertGauge(t, obs, MetricProbeExitCode, 0)

	video, ok := find(obs, MetricVideoCodecInfo)
	if !ok || video.Labels["codec"] != "h264" || video.Value != 1 {
		t.Errorf("video codec info = %+v", video)
	}
	audio, ok := find(obs, MetricAudioCodecInfo)
	if !ok || audio.Labels["codec"] != "aac" || audio.Value != 1 {
		t.Errorf("audio codec info = %+v", audio)
	}

	for _, o := range obs {
		if o.Labels["stream"] != "lobby" {
			t.Errorf("%s missing stream label: %v", o.Name, o.Labels)
		}
		if o.Name != MetricProbeErrors && o.Kind != registry.KindGauge {
			t.Errorf("%s should be a gauge", o.Name)
		}
	}
	if _, ok := find(obs, MetricProbeErrors); ok {
		t.Error("success must not touch the error counter")
	}
}

func TestMap_Failure(t *testing.T) {
	obs := Map(Input{
		Stream: "lobby",
		Result: probe.Result{
			Failure:  &probe.Failure{Kind: probe.KindTimeout, Reason: "proc_timeout"},
			ExitCode: -1,
			Elapsed:  15 * time.Second,
		},
		ConsecutiveFailures: 3,
		Now:                 time.Now(),
	})

	assertGauge(t, obs, MetricStreamUp, 0)
	assertGauge(t, obs, MetricConsecutiveFailures, 3)
	assertGauge(t, obs, MetricProbeDuration, 15)
	assertGauge(t, obs, MetricProbeExitCode, -1)

	errObs, ok := find(obs, MetricProbeErrors)
	if !ok {
		t.Fatal("probe_errors_total missing")
	}
	if errObs.Kind != registry.KindCounter || errObs.Value != 1 {
		t.Errorf("probe_errors_total = %+v, want a counter increment of 1", errObs)
	}
	if errObs.Labels["error"] != "timeout" {
		t.Errorf("error label = %q, want timeout", errObs.Labels["error"])
	}

	// Failure must never write media gauges: the last good values stay.
	for _, name := range []string{
		MetricFrameRate, MetricResolutionWidth, MetricResolutionHeight,
		MetricBitrateBPS, MetricVideoCodecInfo, MetricAudioCodecInfo,
		MetricLastSuccessTimestamp,
	} {
		if _, ok := find(obs, name); ok {
			t.Errorf("failure wrote %s", name)
		}
	}
}

func TestMap_HeaderBitrateWinsOverSampled(t *testing.T) {
	in := Input{
		Stream:         "lobby",
		Result:         successResult(),
		SampledBitrate: ptr(int64(1850000)),
		Now:            time.Now(),
	}

	assertGauge(t, Map(in), MetricBitrateBPS, 2000000)
}

func TestMap_SampledBitrateFillsMissingHeader(t *testing.T) {
	res := successResult()
	res.Description.BitrateBPS = nil

	in := Input{
		Stream:         "lobby",
		Result:         res,
		SampledBitrate: ptr(int64(1850000)),
		Now:            time.Now(),
	}

	assertGauge(t, Map(in), MetricBitrateBPS, 1850000)
}

func TestMap_NoBitrateAnywhere(t *testing.T) {
	res := successResult()
	res.Description.BitrateBPS = nil

	obs := Map(Input{Stream: "lobby", Result: res, Now: time.Now()})
	if _, ok := find(obs, MetricBitrateBPS); ok {
		t.Error("bitrate gauge written without a value")
	}
}

func TestMap_AudioOnlyStream(t *testing.T) {
	obs := Map(Input{
		Stream: "radio",
		Result: probe.Result{
			Description: &probe.StreamDescription{
				HasAudio:   true,
				AudioCodec: "mp3",
			},
		},
		Now: time.Now(),
	})

	assertGauge(t, obs, MetricStreamUp, 1)
	if _, ok := find(obs, MetricVideoCodecInfo); ok {
		t.Error("video codec info written for an audio-only stream")
	}
	if _, ok := find(obs, MetricFrameRate); ok {
		t.Error("frame rate written for an audio-only stream")
	}
	audio, ok := find(obs, MetricAudioCodecInfo)
	if !ok || audio.Labels["codec"] != "mp3" {
		t.Errorf("audio codec info = %+v", audio)
	}
}

func TestMap_Deterministic(t *testing.T) {
	in := Input{Stream: "lobby", Result: successResult(), Now: time.Unix(1700000000, 0)}

	a := Map(in)
	b := Map(in)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Value != b[i].Value {
			t.Errorf("observation %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
