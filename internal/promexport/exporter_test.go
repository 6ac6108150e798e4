package promexport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steadyrate/internal/stats"
)

func TestObserve(t *testing.T) {
	e := New()
	e.Observe(stats.Outcome{
		Status: stats.StatusSuccess, Duration: 12 * time.Millisecond,
		Requested: true, StatusCode: 200, RequestDuration: 10 * time.Millisecond, Bytes: 42,
		Checks: []stats.CheckResult{{Name: "status is 200", Passed: true}},
	})
	e.Observe(stats.Outcome{
		Status: stats.StatusFailure, Requested: true, StatusCode: 500, RequestFailed: true,
		Checks: []stats.CheckResult{{Name: "status is 200", Passed: false}},
	})
	e.Observe(stats.Dropped(time.Now()))

	assert.Equal(t, 1.0, testutil.ToFloat64(e.iterations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.iterations.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.httpReqs.WithLabelValues("500")))
	assert.Equal(t, 42.0, testutil.ToFloat64(e.dataReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.checks.WithLabelValues("status is 200", "fail")))
	assert.Equal(t, 1, testutil.CollectAndCount(e.reqDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	e := New()
	e.Observe(stats.Outcome{Status: stats.StatusSuccess, Requested: true, StatusCode: 200})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `steadyrate_http_reqs_total{code="200"} 1`)
	assert.Contains(t, string(body), "steadyrate_iterations_total")
}
