package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steadyrate/internal/threshold"
)

const scenarioYAML = `
scenario:
  executor: constant-arrival-rate
  rate: 1000
  timeUnit: 1s
  duration: 10s
  preAllocatedVUs: 1000
  maxVUs: 1000
request:
  method: get
  url: http://localhost:8080/api/info
  headers:
    Authorization: "Bearer ${TEST_STEADYRATE_TOKEN}"
checks:
  - name: status is 200
    status: 200
sleep: 1ms
thresholds:
  http_req_duration: ["p(95)<50"]
  http_req_failed:
    - rate<0.0001
    - threshold: rate<0.01
      abortOnFail: true
      delayAbortEval: 1s
`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenarioFile(t *testing.T) {
	v := NewViper()
	require.NoError(t, ReadFile(v, writeScenario(t, scenarioYAML)))

	cfg, err := Load(v)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	s := cfg.Scenario
	assert.Equal(t, 1000, s.Rate)
	assert.Equal(t, time.Second, s.TimeUnit)
	assert.Equal(t, 10*time.Second, s.Duration)
	assert.Equal(t, 1000, s.PreAllocatedVUs)
	assert.Equal(t, 1000, s.MaxVUs)
	assert.Equal(t, 30*time.Second, s.GracefulStop)
	assert.Equal(t, time.Millisecond, s.Interval())
	assert.Equal(t, int64(10000), s.ExpectedIterations())
	assert.Equal(t, "GET", cfg.Request.Method)
	assert.Equal(t, time.Millisecond, cfg.Sleep)
	require.Len(t, cfg.Checks, 1)
	assert.Equal(t, 200, cfg.Checks[0].Status)

	decls, err := cfg.Declarations()
	require.NoError(t, err)
	require.Len(t, decls, 3)
	assert.Equal(t, threshold.Declaration{Metric: "http_req_duration", Expression: "p(95)<50"}, decls[0])
	assert.Equal(t, "http_req_failed", decls[2].Metric)
	assert.True(t, decls[2].AbortOnFail)
	assert.Equal(t, time.Second, decls[2].DelayAbortEval)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("STEADYRATE_SCENARIO_RATE", "250")
	v := NewViper()
	require.NoError(t, ReadFile(v, writeScenario(t, scenarioYAML)))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Scenario.Rate)
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Default().Scenario, cfg.Scenario)
	assert.Equal(t, Default().Checks, cfg.Checks)
}

func TestReadFileMissing(t *testing.T) {
	err := ReadFile(NewViper(), "/nope/scenario.yaml")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidateCollectsEverything(t *testing.T) {
	cfg := Default()
	cfg.Scenario.Rate = 0
	cfg.Scenario.Duration = 0
	cfg.Scenario.PreAllocatedVUs = 10
	cfg.Scenario.MaxVUs = 5
	cfg.Request.Method = "BREW"
	cfg.Request.URL = "localhost:8080"
	cfg.Checks = append(cfg.Checks, Check{Name: "empty"})
	cfg.Thresholds = map[string][]any{"http_req_nope": {"p(95)<50"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, threshold.ErrUnknownMetric)
	for _, frag := range []string{
		"scenario.rate", "scenario.duration", "maxVUs", "request.method",
		"request.url", "no predicate", "http_req_nope",
	} {
		assert.Contains(t, err.Error(), frag)
	}
}

func TestValidateExecutors(t *testing.T) {
	cfg := Default()
	cfg.Scenario.Executor = "ramping-nope"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Scenario.Executor = ExecutorConstantVUs
	assert.Error(t, cfg.Validate())
	cfg.Scenario.VUs = 4
	assert.NoError(t, cfg.Validate())
}

func TestValidateTemplates(t *testing.T) {
	cfg := Default()
	cfg.Request.URL = "http://localhost:8080/api/{{"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)

	cfg.Request.URL = "http://localhost:8080/api/info?i={{iteration}}"
	assert.NoError(t, cfg.Validate())
}

func TestThresholdFlags(t *testing.T) {
	cfg := Default()
	cfg.ThresholdFlags = []string{"http_req_duration: p(99)<100", "garbage"}
	_, err := cfg.Declarations()
	assert.ErrorIs(t, err, threshold.ErrMalformed)

	cfg.ThresholdFlags = []string{"http_req_duration: p(99)<100"}
	set, err := cfg.ThresholdSet()
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, 99.0, set[0].Stat.Arg)
}

func TestBadThresholdEntries(t *testing.T) {
	cfg := Default()
	cfg.Thresholds = map[string][]any{
		"http_req_failed": {map[string]any{"threshold": "rate<0.1", "abortOnFail": "yes"}},
	}
	assert.Error(t, cfg.Validate())

	cfg.Thresholds = map[string][]any{"http_req_failed": {42}}
	assert.Error(t, cfg.Validate())
}

func TestExpandEnv(t *testing.T) {
	cfg := Default()
	cfg.Request.URL = "http://${TARGET_HOST}/api/info"
	cfg.Request.Headers = map[string]string{
		"Authorization": "Bearer ${TOKEN}",
		"X-Missing":     "${NOT_SET}",
		"X-Placeholder": "Bearer  <your_jwt_token>",
	}
	env := map[string]string{"TARGET_HOST": "svc:8080", "TOKEN": "abc"}
	warnings := cfg.ExpandEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "http://svc:8080/api/info", cfg.Request.URL)
	assert.Equal(t, "Bearer abc", cfg.Request.Headers["Authorization"])
	assert.Equal(t, "${NOT_SET}", cfg.Request.Headers["X-Missing"])
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "NOT_SET")
	assert.Contains(t, warnings[1], "<your_jwt_token>")
}

func TestExpandEnvLeavesCopiesAlone(t *testing.T) {
	orig := Default()
	orig.Request.Headers = map[string]string{"Authorization": "Bearer ${TOKEN}"}

	cp := orig
	cp.ExpandEnv(func(string) (string, bool) { return "abc", true })

	assert.Equal(t, "Bearer abc", cp.Request.Headers["Authorization"])
	assert.Equal(t, "Bearer ${TOKEN}", orig.Request.Headers["Authorization"])
}

func TestParseHeaders(t *testing.T) {
	h, err := ParseHeaders([]string{"Authorization: Bearer x:y", "Accept:application/json"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer x:y", h["Authorization"])
	assert.Equal(t, "application/json", h["Accept"])

	_, err = ParseHeaders([]string{"no-colon"})
	assert.ErrorIs(t, err, ErrInvalid)
}
