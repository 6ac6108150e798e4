package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var levels = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline is a one-line scrolling chart of the last Width samples.
type Sparkline struct {
	Label string
	Unit  string
	Width int
	Style lipgloss.Style

	data []float64
}

func NewSparkline(width int, label, unit string, style lipgloss.Style) Sparkline {
	return Sparkline{Label: label, Unit: unit, Width: width, Style: style}
}

func (s *Sparkline) Push(v float64) {
	if v < 0 {
		v = 0
	}
	s.data = append(s.data, v)
	if s.Width > 0 && len(s.data) > s.Width {
		s.data = s.data[len(s.data)-s.Width:]
	}
}

// Last is the most recent sample, 0 when empty.
func (s Sparkline) Last() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return s.data[len(s.data)-1]
}

// Graph renders just the bars, scaled to the visible window's maximum.
func (s Sparkline) Graph() string {
	data := s.data
	if s.Width > 0 && len(data) > s.Width {
		data = data[len(data)-s.Width:]
	}
	peak := 0.0
	for _, v := range data {
		peak = max(peak, v)
	}

	var b strings.Builder
	for _, v := range data {
		idx := 0
		if peak > 0 {
			idx = int(v / peak * float64(len(levels)-1))
		}
		b.WriteRune(levels[min(max(idx, 0), len(levels)-1)])
	}
	if pad := s.Width - len(data); pad > 0 {
		b.WriteString(strings.Repeat(" ", pad))
	}
	return b.String()
}

func (s Sparkline) View() string {
	if s.Width <= 0 {
		return ""
	}
	label := fmt.Sprintf("%s %.1f%s", s.Label, s.Last(), s.Unit)
	return s.Style.Render(label) + "\n" + s.Style.Render(s.Graph())
}
