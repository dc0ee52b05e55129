package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/mapper"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
)

func populatedRegistry() *registry.Registry {
	reg := registry.New()
	stream := map[string]string{"stream": "lobby"}
	reg.SetGauge(mapper.MetricStreamUp, "up", stream, 1)
	reg.SetGauge(mapper.MetricFrameRate, "fps", stream, 29.97)
	reg.SetGauge(mapper.MetricResolutionWidth, "w", stream, 1920)
	reg.SetGauge(mapper.MetricResolutionHeight, "h", stream, 1080)
	reg.SetGauge(mapper.MetricBitrateBPS, "bps", stream, 2000000)
	reg.SetGauge(mapper.MetricVideoCodecInfo, "codec",
		map[string]string{"stream": "lobby", "codec": "h264"}, 1)
	return reg
}

func TestUpdate_TickRefreshesRows(t *testing.T) {
	m := New(Config{MetricsAddr: ":8001", Source: populatedRegistry(), Streams: []string{"lobby"}})

	updated, cmd := m.Update(TickMsg(time.Now()))
	m = updated.(Model)

	if cmd == nil {
		t.Error("tick must schedule the next tick")
	}
	if len(m.rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(m.rows))
	}

	row := m.rows[0]
	if !row.Probed || !row.Up {
		t.Errorf("row = %+v, want probed and up", row)
	}
	if row.VideoCodec != "h264" || row.Width != 1920 || row.FrameRate != 29.97 {
		t.Errorf("row media fields = %+v", row)
	}
}

func TestUpdate_QuitKeys(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	}
	for _, key := range keys {
		m := New(Config{})
		updated, _ := m.Update(key)
		if !updated.(Model).quitting {
			t.Errorf("key %q did not quit", key.String())
		}
	}
}

func TestView_ShowsStreams(t *testing.T) {
	m := New(Config{MetricsAddr: ":8001", Source: populatedRegistry(), Streams: []string{"lobby"}})
	updated, _ := m.Update(TickMsg(time.Now()))
	m = updated.(Model)

	out := m.View()
	for _, want := range []string{"lobby", "h264", "1920x1080", "29.97", "2.00 Mbps"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Every cell of a stream stays on that stream's line; a wrapped row
	// would scatter them across lines.
	var row string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "lobby") {
			row = line
		}
	}
	for _, want := range []string{"h264", "1920x1080", "29.97", "2.00 Mbps"} {
		if !strings.Contains(row, want) {
			t.Errorf("stream row missing %q, row wrapped: %q", want, row)
		}
	}
}

func TestView_UnprobedStreamShowsPlaceholder(t *testing.T) {
	m := New(Config{Source: registry.New(), Streams: []string{"lobby"}})
	out := m.View()
	if !strings.Contains(out, "lobby") {
		t.Error("configured stream missing before the first probe")
	}
}

func TestView_EmptyAfterQuit(t *testing.T) {
	m := New(Config{})
	updated, _ := m.Update(QuitMsg{})
	if out := updated.(Model).View(); out != "" {
		t.Errorf("view after quit = %q, want empty", out)
	}
}

func TestFormatBitrate(t *testing.T) {
	cases := []struct {
		bps  int64
		want string
	}{
		{0, "-"},
		{500, "500 bps"},
		{128000, "128.0 kbps"},
		{2000000, "2.00 Mbps"},
	}
	for _, tc := range cases {
		if got := formatBitrate(tc.bps); got != tc.want {
			t.Errorf("formatBitrate(%d) = %q, want %q", tc.bps, got, tc.want)
		}
	}
}

func TestBuildRows_CountsErrorsAcrossClasses(t *testing.T) {
	reg := registry.New()
	reg.SetGauge(mapper.MetricStreamUp, "up", map[string]string{"stream": "a"}, 0)
	reg.AddCounter(mapper.MetricProbeErrors, "errs",
		map[string]string{"stream": "a", "error": "timeout"}, 2)
	reg.AddCounter(mapper.MetricProbeErrors, "errs",
		map[string]string{"stream": "a", "error": "parse_error"}, 1)

	samples, err := reg.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	rows := buildRows(nil, samples)
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Errors != 3 {
		t.Errorf("Errors = %v, want 3", rows[0].Errors)
	}
}
