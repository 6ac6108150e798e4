package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"steadyrate/internal/report"
	"steadyrate/internal/runner"
	"steadyrate/internal/tui"
)

// Headless runs r while drawing a one-line progress display on w, then
// prints the summary.
func Headless(ctx context.Context, r *runner.Runner, w io.Writer) (*runner.Report, error) {
	report.PrintHeader(w, r.Cfg)

	type result struct {
		rep *runner.Report
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := r.Run(ctx)
		done <- result{rep, err}
	}()

	total := r.Cfg.Scenario.Duration
	for {
		select {
		case s := <-r.Updates:
			fmt.Fprint(w, report.ProgressLine(s, total))
			if !s.Done && s.Progress >= 1 {
				fmt.Fprintf(w, "  | Draining: %d in flight...", s.VUs)
			}
		case res := <-done:
			if res.err != nil {
				fmt.Fprintln(w)
				return nil, res.err
			}
			report.PrintSummary(w, res.rep)
			return res.rep, nil
		}
	}
}

// Interactive runs r behind the bubbletea live view. Quitting the view
// early stops scheduling; the run still reports.
func Interactive(ctx context.Context, r *runner.Runner) (*runner.Report, error) {
	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	p := tea.NewProgram(tui.NewModel(r.Cfg, r.Updates, stopRun), tea.WithAltScreen(), tea.WithContext(ctx))

	var (
		rep    *runner.Report
		runErr error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		rep, runErr = r.Run(runCtx)
		p.Send(tui.FinishedMsg{Report: rep, Err: runErr})
	}()

	_, viewErr := p.Run()
	stopRun()
	<-finished
	if runErr != nil {
		return nil, runErr
	}
	if viewErr != nil && ctx.Err() == nil {
		return rep, fmt.Errorf("live view: %w", viewErr)
	}
	return rep, nil
}
