package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStub(t *testing.T, name, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSample_FFmpegPipe(t *testing.T) {
	// 2500 bytes over a 2s window is 10000 bps.
	tool := writeStub(t, "ffmpeg", `head -c 2500 /dev/zero`)

	s := New(Config{
		FFmpegPath: tool,
		Window:     2 * time.Second,
		Method:     MethodFFmpegPipe,
	}, testLogger())

	bps, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if bps != 10000 {
		t.Errorf("bitrate = %d bps, want 10000", bps)
	}
}

func TestSample_FFmpegPipe_NoOutput(t *testing.T) {
	tool := writeStub(t, "ffmpeg", "exit 0")

	s := New(Config{
		FFmpegPath: tool,
		Window:     time.Second,
		Method:     MethodFFmpegPipe,
	}, testLogger())

	_, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	assertReason(t, err, ReasonNoData)
}

func TestSample_FFmpegPipe_ExitError(t *testing.T) {
	tool := writeStub(t, "ffmpeg", `echo "Connection refused" >&2; exit 1`)

	s := New(Config{
		FFmpegPath: tool,
		Window:     time.Second,
		Method:     MethodFFmpegPipe,
	}, testLogger())

	_, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	assertReason(t, err, ReasonExitError)
}

func TestSample_FFprobePackets(t *testing.T) {
	// 500 + 750 = 1250 bytes over 1s is 10000 bps.
	tool := writeStub(t, "ffprobe",
		`echo '{"packets":[{"size":"500"},{"size":"750"}]}'`)

	s := New(Config{
		FFprobePath: tool,
		Window:      time.Second,
		Method:      MethodFFprobePackets,
	}, testLogger())

	bps, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if bps != 10000 {
		t.Errorf("bitrate = %d bps, want 10000", bps)
	}
}

func TestSample_FFprobePackets_Empty(t *testing.T) {
	tool := writeStub(t, "ffprobe", `echo '{"packets":[]}'`)

	s := New(Config{
		FFprobePath: tool,
		Window:      time.Second,
		Method:      MethodFFprobePackets,
	}, testLogger())

	_, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	assertReason(t, err, ReasonNoData)
}

func TestSample_FFprobePackets_BadJSON(t *testing.T) {
	tool := writeStub(t, "ffprobe", `echo 'not json'`)

	s := New(Config{
		FFprobePath: tool,
		Window:      time.Second,
		Method:      MethodFFprobePackets,
	}, testLogger())

	_, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	assertReason(t, err, ReasonParseError)
}

func TestSample_AutoFallsBack(t *testing.T) {
	// The pipe method fails, the packet method covers.
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	ffprobe := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(ffmpeg, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ffprobe,
		[]byte("#!/bin/sh\necho '{\"packets\":[{\"size\":\"1250\"}]}'\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	s := New(Config{
		FFmpegPath:  ffmpeg,
		FFprobePath: ffprobe,
		Window:      time.Second,
		Method:      MethodAuto,
	}, testLogger())

	bps, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if bps != 10000 {
		t.Errorf("bitrate = %d bps, want 10000", bps)
	}
}

func TestSample_SpawnFailed(t *testing.T) {
	s := New(Config{
		FFmpegPath: "/nonexistent/ffmpeg",
		Window:     time.Second,
		Method:     MethodFFmpegPipe,
	}, testLogger())

	_, err := s.Sample(context.Background(), "rtsp://cam:8554/live")
	assertReason(t, err, ReasonSpawnFailed)
}

func assertReason(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var serr *Error
	if !errors.As(err, &serr) {
		t.Fatalf("error %T is not a sampler error", err)
	}
	if serr.Reason != want {
		t.Errorf("Reason = %q, want %q", serr.Reason, want)
	}
}
