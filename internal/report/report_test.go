package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
	"steadyrate/internal/stats"
	"steadyrate/internal/threshold"
)

func buildReport(t *testing.T, exprs map[string]string) *runner.Report {
	t.Helper()
	agg := stats.NewAggregator(true)
	now := time.Now()
	agg.Start(now)
	for i := 0; i < 9; i++ {
		agg.Record(stats.Outcome{
			VU: i, Timestamp: now, Duration: 12 * time.Millisecond, Status: stats.StatusSuccess,
			Requested: true, StatusCode: 200, RequestDuration: 10 * time.Millisecond, Bytes: 100,
			Checks: []stats.CheckResult{{Name: "status is 200", Passed: true}},
		})
	}
	agg.Record(stats.Outcome{
		VU: 9, Timestamp: now, Status: stats.StatusFailure,
		Requested: true, StatusCode: 500, RequestFailed: true, RequestDuration: 30 * time.Millisecond,
		Checks: []stats.CheckResult{{Name: "status is 200", Passed: false}}, Error: "http 500",
	})
	agg.Record(stats.Dropped(now))

	var decls []threshold.Declaration
	for m, e := range exprs {
		decls = append(decls, threshold.Declaration{Metric: m, Expression: e})
	}
	set, err := threshold.NewSet(decls)
	require.NoError(t, err)

	snap := agg.SnapshotAt(now.Add(time.Second))
	return &runner.Report{
		ID:         "run-1",
		Config:     config.Default(),
		Started:    now,
		Finished:   now.Add(time.Second),
		Snapshot:   snap,
		Thresholds: set.Evaluate(snap),
		Samples:    agg.Samples(),
	}
}

func TestExitCode(t *testing.T) {
	pass := buildReport(t, map[string]string{"http_req_duration": "p(95)<100"})
	fail := buildReport(t, map[string]string{"http_req_failed": "rate<0.01"})
	aborted := buildReport(t, nil)
	aborted.Aborted = &threshold.Verdict{Metric: "http_req_failed"}

	tests := map[string]struct {
		rep  *runner.Report
		err  error
		want int
	}{
		"pass":           {rep: pass, want: ExitOK},
		"no thresholds":  {rep: buildReport(t, nil), want: ExitOK},
		"failed":         {rep: fail, want: ExitThresholdsFailed},
		"aborted":        {rep: aborted, want: ExitAborted},
		"invalid config": {err: fmt.Errorf("%w: rate", config.ErrInvalid), want: ExitInvalidConfig},
		"other error":    {err: errors.New("boom"), want: ExitError},
		"nil report":     {want: ExitError},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.rep, tc.err))
		})
	}
}

func TestSummarize(t *testing.T) {
	rep := buildReport(t, map[string]string{"http_req_failed": "rate<0.01"})
	sum := Summarize(rep)

	assert.Equal(t, "run-1", sum.ID)
	assert.Equal(t, uint64(10), sum.Iterations)
	assert.Equal(t, uint64(1), sum.Dropped)
	assert.Equal(t, uint64(10), sum.Requests)
	assert.Equal(t, uint64(1), sum.Failed)
	assert.InDelta(t, 0.1, sum.FailedRate, 1e-9)
	assert.Equal(t, uint64(900), sum.DataReceived)
	assert.InDelta(t, 10, sum.Latency.Med, 0.1)
	assert.InDelta(t, 30, sum.Latency.Max, 0.1)
	require.Len(t, sum.Checks, 1)
	assert.Equal(t, uint64(9), sum.Checks[0].Passes)
	assert.False(t, sum.Passed)
	require.Len(t, sum.Thresholds, 1)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, buildReport(t, map[string]string{
		"http_req_failed":   "rate<0.01",
		"http_req_duration": "p(95)<100",
	}))
	out := buf.String()

	assert.Contains(t, out, "LOAD TEST RESULTS")
	assert.Contains(t, out, "Dropped        : 1")
	assert.Contains(t, out, "status is 200: 9 passed, 1 failed")
	assert.Contains(t, out, "1 x http 500")
	assert.Contains(t, out, "http_req_duration: p(95)<100")
	assert.Contains(t, out, "http_req_failed: rate<0.01 (observed 10.00%)")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "1 of 2 thresholds failed")
	// verdicts come out sorted by metric
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("http_req_duration:")), bytes.Index(buf.Bytes(), []byte("http_req_failed:")))
}

func TestPrintVerdictAborted(t *testing.T) {
	rep := buildReport(t, nil)
	rep.Aborted = &threshold.Verdict{Metric: "http_req_failed", Source: "rate<0.01"}

	var buf bytes.Buffer
	PrintVerdict(&buf, rep)
	assert.Contains(t, buf.String(), "ABORTED")
	assert.Contains(t, buf.String(), "http_req_failed rate<0.01 crossed")
}

func TestProgressLine(t *testing.T) {
	line := ProgressLine(runner.StatsSnapshot{Progress: 0.5, Requests: 10, Failed: 2, Dropped: 1, VUs: 3, VUsMax: 5}, 10*time.Second)
	assert.Contains(t, line, "[██████████----------]")
	assert.Contains(t, line, " 50%")
	assert.Contains(t, line, "OK: 8 | Err: 2 | Drop: 1")

	assert.Equal(t, "[-----]", ProgressBar(-1, 5))
	assert.Equal(t, "[█████]", ProgressBar(2, 5))
}

func TestExportAll(t *testing.T) {
	rep := buildReport(t, map[string]string{"http_req_failed": "rate<0.01"})
	prefix := filepath.Join(t.TempDir(), "run")
	require.NoError(t, ExportAll(rep, prefix))

	f, err := os.Open(prefix + ".csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 12)
	assert.Equal(t, "timeStamp", rows[0][0])
	assert.Equal(t, "200", rows[1][3])
	assert.Equal(t, "OK", rows[1][4])
	assert.Equal(t, "VU-0", rows[1][5])
	assert.Equal(t, "dropped", rows[11][5])
	assert.Equal(t, "dropped", rows[11][12])

	raw, err := os.ReadFile(prefix + ".json")
	require.NoError(t, err)
	var outcomes []map[string]any
	require.NoError(t, json.Unmarshal(raw, &outcomes))
	assert.Len(t, outcomes, 11)
	assert.Equal(t, "success", outcomes[0]["status"])

	raw, err = os.ReadFile(prefix + "_summary.json")
	require.NoError(t, err)
	var sum Summary
	require.NoError(t, json.Unmarshal(raw, &sum))
	assert.Equal(t, "run-1", sum.ID)
	assert.False(t, sum.Passed)
}

func TestBytesHuman(t *testing.T) {
	assert.Equal(t, "512 B", bytesHuman(512))
	assert.Equal(t, "1.5 KB", bytesHuman(1536))
	assert.Equal(t, "2.0 MB", bytesHuman(2<<20))
}
