package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
	"steadyrate/internal/tui/live"
	"steadyrate/internal/tui/result"
	"steadyrate/internal/tui/styles"
)

// FinishedMsg is sent by the caller once Runner.Run returned.
type FinishedMsg struct {
	Report *runner.Report
	Err    error
}

type Model struct {
	Live    live.Model
	Updates runner.StatsUpdateChan
	// Cancel stops scheduling early; the run still reports.
	Cancel func()

	Report   *runner.Report
	Err      error
	stopping bool
	Quitting bool
}

func NewModel(cfg config.Config, updates runner.StatsUpdateChan, cancel func()) Model {
	return Model{
		Live:    live.NewModel(cfg),
		Updates: updates,
		Cancel:  cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.Updates)
}

// waitForUpdate turns the next channel value into a message.
func waitForUpdate(ch runner.StatsUpdateChan) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return s
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.Report != nil || m.Err != nil || m.stopping {
				m.Quitting = true
				return m, tea.Quit
			}
			m.stopping = true
			if m.Cancel != nil {
				m.Cancel()
			}
			return m, nil
		}

	case runner.StatsSnapshot:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		if msg.Done {
			return m, cmd
		}
		return m, tea.Batch(cmd, waitForUpdate(m.Updates))

	case FinishedMsg:
		m.Report, m.Err = msg.Report, msg.Err
		if m.Err != nil {
			return m, tea.Quit
		}
		return m, nil

	default:
		var cmd tea.Cmd
		m.Live, cmd = m.Live.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return ""
	}
	var s strings.Builder
	switch {
	case m.Err != nil:
		s.WriteString(styles.Error.Render("run failed: " + m.Err.Error()))
	case m.Report != nil:
		s.WriteString(result.View(m.Report))
	default:
		s.WriteString(m.Live.View())
		if m.stopping {
			s.WriteString("\n")
			s.WriteString(styles.Warn.Render("stopping, draining in-flight iterations..."))
		}
	}
	s.WriteString("\n\n")
	s.WriteString(styles.RenderKey("q", "quit"))
	return s.String()
}
