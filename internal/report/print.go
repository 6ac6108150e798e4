package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
	"steadyrate/internal/stats"
	"steadyrate/internal/threshold"
	"steadyrate/internal/tui/styles"
)

const rule = "======================================================================"

func PrintHeader(w io.Writer, cfg config.Config) {
	s := cfg.Scenario
	fmt.Fprintf(w, "\n🚀 STARTING STEADYRATE LOAD TEST\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Target URL : %s %s\n", cfg.Request.Method, cfg.Request.URL)
	fmt.Fprintf(w, "Executor   : %s\n", s.Executor)
	if s.Executor == config.ExecutorConstantVUs {
		fmt.Fprintf(w, "VUs        : %d\n", s.VUs)
	} else {
		fmt.Fprintf(w, "Rate       : %d per %s (every %s)\n", s.Rate, s.TimeUnit, s.Interval())
		fmt.Fprintf(w, "VUs        : %d pre-allocated, %d max\n", s.PreAllocatedVUs, s.MaxVUs)
	}
	fmt.Fprintf(w, "Duration   : %s (+%s graceful stop)\n", s.Duration, s.GracefulStop)
	fmt.Fprintf(w, "Timeout    : %s\n", cfg.Request.Timeout)
	fmt.Fprintf(w, "%s\n\n", rule)
}

// ProgressLine renders one live update for the headless progress display.
func ProgressLine(s runner.StatsSnapshot, total time.Duration) string {
	return fmt.Sprintf("\r%s %3.0f%% | %s/%s | VUs: %3d/%-3d | RPS: %.1f | OK: %d | Err: %d | Drop: %d",
		ProgressBar(s.Progress, 20), s.Progress*100,
		s.Elapsed.Round(time.Second), total,
		s.VUs, s.VUsMax,
		s.RPS,
		s.Requests-s.Failed,
		s.Failed,
		s.Dropped,
	)
}

func ProgressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// PrintSummary writes the end-of-run summary and the threshold verdicts.
func PrintSummary(w io.Writer, rep *runner.Report) {
	sum := Summarize(rep)

	fmt.Fprintf(w, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run ID         : %s\n", sum.ID)
	fmt.Fprintf(w, "Total Duration : %s\n", sum.Elapsed)
	fmt.Fprintf(w, "Iterations     : %d\n", sum.Iterations)
	fmt.Fprintf(w, "Dropped        : %d\n", sum.Dropped)
	if sum.Forced > 0 {
		fmt.Fprintf(w, "Force-stopped  : %d\n", sum.Forced)
	}
	fmt.Fprintf(w, "Requests Sent  : %d\n", sum.Requests)
	fmt.Fprintf(w, "Failures       : %d (%.2f%%)\n", sum.Failed, sum.FailedRate*100)
	fmt.Fprintf(w, "Actual RPS     : %.2f\n", sum.RPS)
	fmt.Fprintf(w, "Data Received  : %s\n", bytesHuman(sum.DataReceived))
	fmt.Fprintf(w, "VUs (max)      : %.0f\n", sum.VUsMax)

	fmt.Fprintf(w, "\n⏱️  RESPONSE TIMES (ms)\n")
	l := sum.Latency
	fmt.Fprintf(w, "   Avg : %.2f\n", l.Avg)
	fmt.Fprintf(w, "   Min : %.2f\n", l.Min)
	fmt.Fprintf(w, "   P50 : %.2f\n", l.Med)
	fmt.Fprintf(w, "   P90 : %.2f\n", l.P90)
	fmt.Fprintf(w, "   P95 : %.2f\n", l.P95)
	fmt.Fprintf(w, "   P99 : %.2f\n", l.P99)
	fmt.Fprintf(w, "   Max : %.2f\n", l.Max)

	if len(sum.Checks) > 0 {
		fmt.Fprintf(w, "\n✅ CHECKS\n")
		for _, c := range sum.Checks {
			mark := styles.Success.Render("✓")
			if c.Fails > 0 {
				mark = styles.Error.Render("✗")
			}
			fmt.Fprintf(w, "   %s %s: %d passed, %d failed\n", mark, c.Name, c.Passes, c.Fails)
		}
	}

	if len(sum.Errors) > 0 {
		fmt.Fprintf(w, "\n❌ FAILURE SUMMARY\n")
		for _, e := range sum.Errors {
			fmt.Fprintf(w, "   %d x %s\n", e.Count, e.Message)
		}
	}

	PrintVerdict(w, rep)
	fmt.Fprintln(w, rule)
}

// PrintVerdict writes one line per threshold and the overall result.
func PrintVerdict(w io.Writer, rep *runner.Report) {
	if len(rep.Thresholds.Verdicts) > 0 {
		fmt.Fprintf(w, "\n🎯 THRESHOLDS\n")
		for _, v := range rep.Thresholds.Verdicts {
			mark := styles.Success.Render("✓")
			if !v.Passed {
				mark = styles.Error.Render("✗")
			}
			fmt.Fprintf(w, "   %s %s: %s (observed %s)\n", mark, v.Metric, v.Source, observed(v))
		}
	}

	fmt.Fprintln(w)
	switch {
	case rep.Aborted != nil:
		fmt.Fprintf(w, "VERDICT: %s (%s %s crossed after %s)\n",
			styles.Error.Render("ABORTED"), rep.Aborted.Metric, rep.Aborted.Source,
			rep.Snapshot.Elapsed.Round(time.Millisecond))
	case rep.Thresholds.Passed:
		fmt.Fprintf(w, "VERDICT: %s\n", styles.Success.Render("PASS"))
	default:
		fmt.Fprintf(w, "VERDICT: %s (%d of %d thresholds failed)\n",
			styles.Error.Render("FAIL"), len(rep.Thresholds.Failed()), len(rep.Thresholds.Verdicts))
	}
}

func observed(v threshold.Verdict) string {
	kind, _ := stats.Lookup(v.Metric)
	switch {
	case kind == stats.KindTrend && v.Threshold.Stat.Name != "count":
		return fmt.Sprintf("%.2fms", v.Observed)
	case kind == stats.KindRate && v.Threshold.Stat.Name == "rate":
		return fmt.Sprintf("%.2f%%", v.Observed*100)
	}
	return fmt.Sprintf("%g", v.Observed)
}

func bytesHuman(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
