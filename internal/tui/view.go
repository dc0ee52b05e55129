package tui

import (
	"fmt"
	"strings"
	"time"
)

// render draws the full dashboard: header, stream table, footer.
func (m Model) render() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("RTSP Exporter"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  metrics on %s  up %s",
		m.metricsAddr, formatDuration(time.Since(m.startTime)))))
	b.WriteString("\n\n")

	// The box sizes itself to the table; forcing it to the terminal width
	// would make lipgloss wrap rows mid-cell on narrow terminals.
	b.WriteString(boxStyle.Render(m.renderTable()))
	b.WriteString("\n")

	b.WriteString(mutedStyle.Render("  q: quit   r: refresh"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderTable() string {
	var b strings.Builder

	header := fmt.Sprintf("   %-24s %-8s %-9s %6s %10s %4s %6s",
		"STREAM", "CODEC", "RES", "FPS", "BITRATE", "FAIL", "P95")
	b.WriteString(subtitleStyle.Render(header))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(mutedStyle.Render("  no streams configured"))
		return b.String()
	}

	for _, r := range m.rows {
		b.WriteString(renderRow(r))
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func renderRow(r streamRow) string {
	status := statusIndicator(r)

	codec := r.VideoCodec
	if codec == "" {
		codec = r.AudioCodec
	}
	if codec == "" {
		codec = "-"
	}

	res := "-"
	if r.Width > 0 && r.Height > 0 {
		res = fmt.Sprintf("%dx%d", r.Width, r.Height)
	}

	fps := "-"
	if r.FrameRate > 0 {
		fps = fmt.Sprintf("%.2f", r.FrameRate)
	}

	p95 := "-"
	if r.DurationP95 > 0 {
		p95 = fmt.Sprintf("%.2fs", r.DurationP95)
	}

	// The status glyph carries ANSI color codes, so it stays outside the
	// padded format string; %-*s would pad by byte count, not cells.
	return fmt.Sprintf("%s  %-24s %-8s %-9s %6s %10s %4d %6s",
		status,
		truncate(r.Stream, 24),
		truncate(codec, 8),
		res,
		fps,
		formatBitrate(r.BitrateBPS),
		r.Failures,
		p95)
}

// statusIndicator picks the colored status glyph for a row.
func statusIndicator(r streamRow) string {
	switch {
	case !r.Probed:
		return mutedStyle.Render("…")
	case r.Up && r.Errors > 0:
		return statusFlaky.Render("●")
	case r.Up:
		return statusUp.Render("●")
	default:
		return statusDown.Render("●")
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatBitrate formats bits per second with k/M suffixes.
func formatBitrate(bps int64) string {
	switch {
	case bps <= 0:
		return "-"
	case bps >= 1_000_000:
		return fmt.Sprintf("%.2f Mbps", float64(bps)/1_000_000)
	case bps >= 1_000:
		return fmt.Sprintf("%.1f kbps", float64(bps)/1_000)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}
