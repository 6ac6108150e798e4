package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
)

func TestHeadless(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Request.URL = srv.URL
	cfg.Scenario.Rate = 50
	cfg.Scenario.Duration = 300 * time.Millisecond
	cfg.Scenario.PreAllocatedVUs = 5
	cfg.Scenario.MaxVUs = 5
	cfg.Thresholds = map[string][]any{"http_req_failed": {"rate<0.01"}}

	r, err := runner.NewRunner(cfg, make(runner.StatsUpdateChan, 100), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	rep, err := Headless(context.Background(), r, &buf)
	require.NoError(t, err)
	require.NotNil(t, rep)
	assert.True(t, rep.Passed())

	out := buf.String()
	assert.Contains(t, out, "STARTING STEADYRATE LOAD TEST")
	assert.Contains(t, out, "Rate       : 50 per 1s (every 20ms)")
	assert.Contains(t, out, "LOAD TEST RESULTS")
	assert.Contains(t, out, "Iterations     : 15")
	assert.Contains(t, out, "PASS")
}
