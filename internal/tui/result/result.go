package result

import (
	"fmt"
	"strings"

	"steadyrate/internal/report"
	"steadyrate/internal/runner"
	"steadyrate/internal/tui/styles"
)

// View renders the finished run with its threshold verdicts.
func View(rep *runner.Report) string {
	var s strings.Builder
	sum := report.Summarize(rep)

	s.WriteString(styles.Title.Render("📊 Test Complete"))
	s.WriteString("\n\n")

	s.WriteString(styles.Active.Render("Overview"))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(fmt.Sprintf(
		"Iterations:   %d\nDropped:      %d\nRequests:     %d\nFailed:       %d (%.2f%%)\nActual RPS:   %.2f\nElapsed:      %s",
		sum.Iterations, sum.Dropped, sum.Requests, sum.Failed, sum.FailedRate*100, sum.RPS, sum.Elapsed,
	)))
	s.WriteString("\n\n")

	l := sum.Latency
	s.WriteString(styles.Active.Render("http_req_duration"))
	s.WriteString("\n")
	s.WriteString(styles.Box.Render(fmt.Sprintf(
		"Avg: %.2f ms\nP50: %.2f ms\nP90: %.2f ms\nP95: %.2f ms\nP99: %.2f ms\nMax: %.2f ms",
		l.Avg, l.Med, l.P90, l.P95, l.P99, l.Max,
	)))
	s.WriteString("\n\n")

	if len(rep.Thresholds.Verdicts) > 0 {
		s.WriteString(styles.Active.Render("Thresholds"))
		s.WriteString("\n")
		lines := make([]string, 0, len(rep.Thresholds.Verdicts))
		for _, v := range rep.Thresholds.Verdicts {
			mark := styles.Success.Render("✓")
			if !v.Passed {
				mark = styles.Error.Render("✗")
			}
			lines = append(lines, fmt.Sprintf("%s %s %s (observed %.4g)", mark, v.Metric, v.Source, v.Observed))
		}
		s.WriteString(styles.Box.Render(strings.Join(lines, "\n")))
		s.WriteString("\n\n")
	}

	switch {
	case rep.Aborted != nil:
		s.WriteString(styles.Error.Render("ABORTED by " + rep.Aborted.Metric + " " + rep.Aborted.Source))
	case rep.Passed():
		s.WriteString(styles.Success.Render("PASS"))
	default:
		s.WriteString(styles.Error.Render("FAIL"))
	}
	return s.String()
}
