package tui

import (
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-rtsp-exporter/internal/mapper"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/registry"
	"github.com/randomizedcoder/go-rtsp-exporter/internal/scheduler"
)

// TickMsg is sent periodically to refresh the display.
type TickMsg time.Time

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// SampleSource provides the current metric samples.
// Satisfied by *registry.Registry.
type SampleSource interface {
	Snapshot() ([]registry.Sample, error)
}

// streamRow is the per-stream view state, assembled from the snapshot.
type streamRow struct {
	Stream      string
	Up          bool
	Probed      bool // false until the first probe lands
	VideoCodec  string
	AudioCodec  string
	Width       int
	Height      int
	FrameRate   float64
	BitrateBPS  int64
	Failures    int
	Errors      float64 // cumulative probe_errors_total across classes
	DurationP95 float64
}

// Model represents the TUI state.
type Model struct {
	metricsAddr string
	source      SampleSource

	rows       []streamRow
	startTime  time.Time
	lastUpdate time.Time

	width  int
	height int

	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	MetricsAddr string
	Source      SampleSource
	Streams     []string // initial stream labels, shown before the first probe
}

// New creates a new TUI model.
func New(cfg Config) Model {
	rows := make([]streamRow, 0, len(cfg.Streams))
	for _, s := range cfg.Streams {
		rows = append(rows, streamRow{Stream: s})
	}
	return Model{
		metricsAddr: cfg.MetricsAddr,
		source:      cfg.Source,
		rows:        rows,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			if samples, err := m.source.Snapshot(); err == nil {
				m.rows = buildRows(m.rows, samples)
			}
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render()
}

// tickCmd returns a command that sends a tick after one second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// buildRows folds flat metric samples into per-stream rows. Streams already
// known keep their position; newly seen streams are appended sorted.
func buildRows(prev []streamRow, samples []registry.Sample) []streamRow {
	byStream := make(map[string]*streamRow, len(prev))
	order := make([]string, 0, len(prev))
	for _, r := range prev {
		r := r
		r.Errors = 0 // recomputed from the cumulative counters below
		byStream[r.Stream] = &r
		order = append(order, r.Stream)
	}

	for _, s := range samples {
		stream := s.Labels["stream"]
		if stream == "" {
			continue
		}
		row, ok := byStream[stream]
		if !ok {
			row = &streamRow{Stream: stream}
			byStream[stream] = row
			order = append(order, stream)
			sort.Strings(order)
		}

		switch s.Name {
		case mapper.MetricStreamUp:
			row.Probed = true
			row.Up = s.Value == 1
		case mapper.MetricVideoCodecInfo:
			if s.Value == 1 {
				row.VideoCodec = s.Labels["codec"]
			}
		case mapper.MetricAudioCodecInfo:
			if s.Value == 1 {
				row.AudioCodec = s.Labels["codec"]
			}
		case mapper.MetricResolutionWidth:
			row.Width = int(s.Value)
		case mapper.MetricResolutionHeight:
			row.Height = int(s.Value)
		case mapper.MetricFrameRate:
			row.FrameRate = s.Value
		case mapper.MetricBitrateBPS:
			row.BitrateBPS = int64(s.Value)
		case mapper.MetricConsecutiveFailures:
			row.Failures = int(s.Value)
		case mapper.MetricProbeErrors:
			row.Errors += s.Value
		case scheduler.MetricDurationP95:
			row.DurationP95 = s.Value
		}
	}

	rows := make([]streamRow, 0, len(order))
	for _, stream := range order {
		rows = append(rows, *byStream[stream])
	}
	return rows
}
