package report

import (
	"time"

	"steadyrate/internal/runner"
	"steadyrate/internal/stats"
	"steadyrate/internal/threshold"
)

// Latency holds the request-duration statistics in milliseconds.
type Latency struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Med float64 `json:"med"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
	Max float64 `json:"max"`
}

// Summary is the serialisable digest of a finished run, written next to the
// exports and kept in the run history.
type Summary struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Elapsed  string    `json:"elapsed"`

	Executor string `json:"executor"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Rate     int    `json:"rate"`
	TimeUnit string `json:"time_unit"`
	Duration string `json:"duration"`

	Iterations   uint64  `json:"iterations"`
	Dropped      uint64  `json:"dropped_iterations"`
	Forced       int64   `json:"forced"`
	Requests     uint64  `json:"http_reqs"`
	Failed       uint64  `json:"http_req_failed"`
	FailedRate   float64 `json:"http_req_failed_rate"`
	RPS          float64 `json:"rps"`
	DataReceived uint64  `json:"data_received"`
	VUsMax       float64 `json:"vus_max"`

	Latency    Latency              `json:"http_req_duration_ms"`
	Iteration  Latency              `json:"iteration_duration_ms"`
	Checks     []stats.CheckSummary `json:"checks"`
	Errors     []stats.ErrorCount   `json:"errors"`
	Thresholds []threshold.Verdict  `json:"thresholds"`

	Passed  bool               `json:"passed"`
	Aborted *threshold.Verdict `json:"aborted,omitempty"`
}

// Summarize digests rep.
func Summarize(rep *runner.Report) Summary {
	snap := rep.Snapshot
	reqs := snap.Metrics[stats.MetricHTTPReqs]
	failed := snap.Metrics[stats.MetricHTTPReqFailed]
	sc := rep.Config.Scenario

	return Summary{
		ID:       rep.ID,
		Started:  rep.Started,
		Finished: rep.Finished,
		Elapsed:  snap.Elapsed.Round(time.Millisecond).String(),

		Executor: sc.Executor,
		Method:   rep.Config.Request.Method,
		URL:      rep.Config.Request.URL,
		Rate:     sc.Rate,
		TimeUnit: sc.TimeUnit.String(),
		Duration: sc.Duration.String(),

		Iterations:   snap.Metrics[stats.MetricIterations].Count,
		Dropped:      snap.Metrics[stats.MetricDroppedIterations].Count,
		Forced:       rep.Scheduler.Forced,
		Requests:     reqs.Count,
		Failed:       failed.NonZero,
		FailedRate:   failed.Rate(),
		RPS:          reqs.Rate(),
		DataReceived: snap.Metrics[stats.MetricDataReceived].Count,
		VUsMax:       snap.Metrics[stats.MetricVUsMax].Max(),

		Latency:    latency(snap.Metrics[stats.MetricHTTPReqDuration]),
		Iteration:  latency(snap.Metrics[stats.MetricIterationDuration]),
		Checks:     snap.Checks,
		Errors:     snap.TopErrors(10),
		Thresholds: rep.Thresholds.Verdicts,

		Passed:  rep.Passed(),
		Aborted: rep.Aborted,
	}
}

func latency(m stats.Metric) Latency {
	return Latency{
		Avg: m.Avg(),
		Min: m.Min(),
		Med: m.Med(),
		P90: m.Percentile(90),
		P95: m.Percentile(95),
		P99: m.Percentile(99),
		Max: m.Max(),
	}
}
