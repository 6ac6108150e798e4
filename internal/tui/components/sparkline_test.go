package components

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestSparklineScalesToWindow(t *testing.T) {
	s := NewSparkline(4, "RPS", "/s", lipgloss.NewStyle())
	for _, v := range []float64{8, 0, 4, 8} {
		s.Push(v)
	}
	assert.Equal(t, "█ ▄█", s.Graph())

	s.Push(2)
	// the first sample scrolled out
	assert.Equal(t, " ▄█▂", s.Graph())
	assert.Equal(t, 2.0, s.Last())
}

func TestSparklinePadsAndClamps(t *testing.T) {
	s := NewSparkline(3, "p99", "ms", lipgloss.NewStyle())
	assert.Equal(t, "   ", s.Graph())
	s.Push(-5)
	assert.Equal(t, "   ", s.Graph())
	assert.Contains(t, s.View(), "p99 0.0ms")
}
