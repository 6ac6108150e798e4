package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
	"steadyrate/internal/tui/components"
	"steadyrate/internal/tui/styles"
)

// Model is the in-progress panel fed by runner.StatsSnapshot messages.
type Model struct {
	Cfg      config.Config
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	lastAt   time.Duration
	lastReqs uint64

	Width int
}

func NewModel(cfg config.Config) Model {
	return Model{
		Cfg:         cfg,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS", "/s", styles.Active),
		LatencyLine: components.NewSparkline(40, "P90", "ms", styles.Warn),
	}
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		// instantaneous rate between two updates
		if dt := (msg.Elapsed - m.lastAt).Seconds(); dt > 0 && msg.Requests >= m.lastReqs {
			m.RpsLine.Push(float64(msg.Requests-m.lastReqs) / dt)
		}
		m.LatencyLine.Push(msg.P90Ms)

		m.Stats = msg
		m.lastAt = msg.Elapsed
		m.lastReqs = msg.Requests
		return m, m.Progress.SetPercent(msg.Progress)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = max(msg.Width-4, 10)

		half := max(msg.Width/2-6, 10)
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder
	st := m.Stats
	sc := m.Cfg.Scenario

	s.WriteString(styles.Title.Render("🚀 steadyrate " + sc.Executor))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("%s %s | %d per %s | %s elapsed of %s",
		m.Cfg.Request.Method, m.Cfg.Request.URL, sc.Rate, sc.TimeUnit,
		st.Elapsed.Round(time.Second), sc.Duration)))
	s.WriteString("\n\n")

	failRate := 0.0
	if st.Requests > 0 {
		failRate = float64(st.Failed) / float64(st.Requests)
	}

	col1 := fmt.Sprintf("ITER: %d\nREQ:  %d", st.Iterations, st.Requests)
	col2 := styles.Rate(failRate).Render(fmt.Sprintf("FAIL: %.2f%%\nERR:  %d", failRate*100, st.Failed))
	dropStyle := styles.Active
	if st.Dropped > 0 {
		dropStyle = styles.Warn
	}
	col3 := fmt.Sprintf("VUS:  %d/%d\n%s", st.VUs, st.VUsMax, dropStyle.Render(fmt.Sprintf("DROP: %d", st.Dropped)))
	col4 := fmt.Sprintf("RPS:  %.1f\nRECV: %d KB", st.RPS, st.Bytes/1024)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
		styles.Box.Render(col4),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(styles.Box.Render(fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		st.P50Ms, st.P90Ms, st.P99Ms, st.MaxMs,
	)))
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	return s.String()
}
