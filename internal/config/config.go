package config

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"steadyrate/internal/templating"
	"steadyrate/internal/threshold"
)

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

const (
	ExecutorConstantArrivalRate = "constant-arrival-rate"
	ExecutorConstantVUs         = "constant-vus"
)

type Scenario struct {
	Executor        string        `mapstructure:"executor" json:"executor"`
	Rate            int           `mapstructure:"rate" json:"rate"`
	TimeUnit        time.Duration `mapstructure:"timeUnit" json:"time_unit"`
	Duration        time.Duration `mapstructure:"duration" json:"duration"`
	PreAllocatedVUs int           `mapstructure:"preAllocatedVUs" json:"pre_allocated_vus"`
	MaxVUs          int           `mapstructure:"maxVUs" json:"max_vus"`
	VUs             int           `mapstructure:"vus" json:"vus"`
	GracefulStop    time.Duration `mapstructure:"gracefulStop" json:"graceful_stop"`
}

// Interval is the gap between two arrivals, rounded down to the nanosecond.
// Scheduling computes deadlines from Rate and TimeUnit directly.
func (s Scenario) Interval() time.Duration {
	if s.Rate <= 0 {
		return 0
	}
	return s.TimeUnit / time.Duration(s.Rate)
}

// ExpectedIterations is R·(D/T) rounded down.
func (s Scenario) ExpectedIterations() int64 {
	if s.TimeUnit <= 0 {
		return 0
	}
	return int64(float64(s.Rate) * float64(s.Duration) / float64(s.TimeUnit))
}

type Request struct {
	Method             string            `mapstructure:"method" json:"method"`
	URL                string            `mapstructure:"url" json:"url"`
	Headers            map[string]string `mapstructure:"headers" json:"-"`
	Body               string            `mapstructure:"body" json:"body,omitempty"`
	Timeout            time.Duration     `mapstructure:"timeout" json:"timeout"`
	InsecureSkipVerify bool              `mapstructure:"insecureSkipVerify" json:"insecure_skip_verify"`
}

// Check declares a named assertion against each response.
type Check struct {
	Name         string        `mapstructure:"name" json:"name"`
	Status       int           `mapstructure:"status" json:"status,omitempty"`
	BodyContains string        `mapstructure:"bodyContains" json:"body_contains,omitempty"`
	MaxDuration  time.Duration `mapstructure:"maxDuration" json:"max_duration,omitempty"`
}

type Config struct {
	Scenario Scenario `mapstructure:"scenario" json:"scenario"`
	Request  Request  `mapstructure:"request" json:"request"`
	Checks   []Check  `mapstructure:"checks" json:"checks"`
	// Sleep is the pacing pause after each iteration.
	Sleep time.Duration `mapstructure:"sleep" json:"sleep"`
	// Thresholds maps a metric to expressions; an entry is either a string
	// or {threshold, abortOnFail, delayAbortEval}.
	Thresholds         map[string][]any `mapstructure:"thresholds" json:"-"`
	EvaluationInterval time.Duration    `mapstructure:"evaluationInterval" json:"evaluation_interval"`

	// ThresholdFlags holds "metric:expression" pairs given on the command line.
	ThresholdFlags []string `mapstructure:"-" json:"-"`
	// KeepSamples retains every outcome for export.
	KeepSamples bool `mapstructure:"-" json:"-"`
}

// Default mirrors the stock scenario: 1000 req/s for 10s against /api/info.
func Default() Config {
	return Config{
		Scenario: Scenario{
			Executor:        ExecutorConstantArrivalRate,
			Rate:            1000,
			TimeUnit:        time.Second,
			Duration:        10 * time.Second,
			PreAllocatedVUs: 1000,
			MaxVUs:          1000,
			GracefulStop:    30 * time.Second,
		},
		Request: Request{
			Method:  http.MethodGet,
			URL:     "http://localhost:8080/api/info",
			Headers: map[string]string{},
			Timeout: 60 * time.Second,
		},
		Checks:             []Check{{Name: "status is 200", Status: http.StatusOK}},
		Sleep:              time.Millisecond,
		Thresholds:         map[string][]any{},
		EvaluationInterval: 2 * time.Second,
	}
}

// Declarations flattens file and flag thresholds, sorted by metric so
// errors and verdicts come out in a stable order.
func (c Config) Declarations() ([]threshold.Declaration, error) {
	var result *multierror.Error
	var decls []threshold.Declaration

	metrics := make([]string, 0, len(c.Thresholds))
	for m := range c.Thresholds {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		for _, raw := range c.Thresholds[metric] {
			d, err := declaration(metric, raw)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			decls = append(decls, d)
		}
	}

	for _, f := range c.ThresholdFlags {
		metric, expr, ok := strings.Cut(f, ":")
		if !ok {
			result = multierror.Append(result, fmt.Errorf("%w: threshold flag %q, want metric:expression", threshold.ErrMalformed, f))
			continue
		}
		decls = append(decls, threshold.Declaration{Metric: strings.TrimSpace(metric), Expression: strings.TrimSpace(expr)})
	}
	return decls, result.ErrorOrNil()
}

func declaration(metric string, raw any) (threshold.Declaration, error) {
	d := threshold.Declaration{Metric: metric}
	switch v := raw.(type) {
	case string:
		d.Expression = v
	case map[string]any:
		for k, val := range v {
			switch strings.ToLower(k) {
			case "threshold":
				s, ok := val.(string)
				if !ok {
					return d, fmt.Errorf("%w: %s: threshold must be a string", threshold.ErrMalformed, metric)
				}
				d.Expression = s
			case "abortonfail":
				b, ok := val.(bool)
				if !ok {
					return d, fmt.Errorf("%w: %s: abortOnFail must be a bool", threshold.ErrMalformed, metric)
				}
				d.AbortOnFail = b
			case "delayabortevaluation", "delayaborteval":
				s, ok := val.(string)
				if !ok {
					return d, fmt.Errorf("%w: %s: delayAbortEval must be a duration string", threshold.ErrMalformed, metric)
				}
				dur, err := time.ParseDuration(s)
				if err != nil {
					return d, fmt.Errorf("%w: %s: delayAbortEval: %v", threshold.ErrMalformed, metric, err)
				}
				d.DelayAbortEval = dur
			default:
				return d, fmt.Errorf("%w: %s: unknown key %q", threshold.ErrMalformed, metric, k)
			}
		}
	default:
		return d, fmt.Errorf("%w: %s: unsupported entry %v", threshold.ErrMalformed, metric, raw)
	}
	return d, nil
}

// ThresholdSet parses every declaration.
func (c Config) ThresholdSet() (threshold.Set, error) {
	decls, err := c.Declarations()
	if err != nil {
		return nil, err
	}
	return threshold.NewSet(decls)
}

var methods = map[string]bool{
	http.MethodGet: true, http.MethodHead: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodOptions: true,
}

// Validate reports every configuration error at once. The returned error
// matches ErrInvalid.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	s := c.Scenario
	switch s.Executor {
	case ExecutorConstantArrivalRate:
		if s.Rate <= 0 {
			add("scenario.rate must be > 0, got %d", s.Rate)
		}
		if s.TimeUnit <= 0 {
			add("scenario.timeUnit must be > 0, got %s", s.TimeUnit)
		}
		if s.Rate > 0 && s.TimeUnit > 0 && s.Interval() <= 0 {
			add("scenario.rate %d per %s is finer than 1ns", s.Rate, s.TimeUnit)
		}
		if s.PreAllocatedVUs < 1 {
			add("scenario.preAllocatedVUs must be >= 1, got %d", s.PreAllocatedVUs)
		}
		if s.MaxVUs < s.PreAllocatedVUs {
			add("scenario.maxVUs (%d) must be >= preAllocatedVUs (%d)", s.MaxVUs, s.PreAllocatedVUs)
		}
	case ExecutorConstantVUs:
		if s.VUs < 1 {
			add("scenario.vus must be >= 1 for %s, got %d", ExecutorConstantVUs, s.VUs)
		}
	default:
		add("scenario.executor %q unknown (want %s or %s)", s.Executor, ExecutorConstantArrivalRate, ExecutorConstantVUs)
	}
	if s.Duration <= 0 {
		add("scenario.duration must be > 0, got %s", s.Duration)
	}
	if s.GracefulStop < 0 {
		add("scenario.gracefulStop must be >= 0, got %s", s.GracefulStop)
	}
	if c.Sleep < 0 {
		add("sleep must be >= 0, got %s", c.Sleep)
	}
	if c.EvaluationInterval < 0 {
		add("evaluationInterval must be >= 0, got %s", c.EvaluationInterval)
	}

	r := c.Request
	if !methods[strings.ToUpper(r.Method)] {
		add("request.method %q not supported", r.Method)
	}
	if r.Timeout < 0 {
		add("request.timeout must be >= 0, got %s", r.Timeout)
	}
	if !strings.Contains(r.URL, "{{") {
		if u, err := url.Parse(r.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add("request.url %q must be an absolute http(s) URL", r.URL)
		}
	}
	engine := templating.NewEngine()
	if _, err := engine.Compile("url", r.URL); err != nil {
		add("request.url: %v", err)
	}
	if _, err := engine.Compile("body", r.Body); err != nil {
		add("request.body: %v", err)
	}
	for k, v := range r.Headers {
		if _, err := engine.Compile("header "+k, v); err != nil {
			add("request.headers.%s: %v", k, err)
		}
	}

	for i, ch := range c.Checks {
		if strings.TrimSpace(ch.Name) == "" {
			add("checks[%d] needs a name", i)
		}
		if ch.Status == 0 && ch.BodyContains == "" && ch.MaxDuration == 0 {
			add("checks[%d] %q has no predicate (status, bodyContains or maxDuration)", i, ch.Name)
		}
	}

	if _, err := c.ThresholdSet(); err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				add("thresholds: %w", e)
			}
		} else {
			add("thresholds: %w", err)
		}
	}

	return result.ErrorOrNil()
}

var (
	envRefRe      = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	placeholderRe = regexp.MustCompile(`<[^<>\s][^<>]*>`)
)

// ExpandEnv substitutes ${VAR} references in the request from the
// environment and returns warnings for unset variables and leftover
// placeholder credentials.
func (c *Config) ExpandEnv(lookup func(string) (string, bool)) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var warnings []string
	expand := func(where, s string) string {
		return envRefRe.ReplaceAllStringFunc(s, func(ref string) string {
			name := envRefRe.FindStringSubmatch(ref)[1]
			if v, ok := lookup(name); ok {
				return v
			}
			warnings = append(warnings, fmt.Sprintf("%s: environment variable %s is not set", where, name))
			return ref
		})
	}

	c.Request.URL = expand("request.url", c.Request.URL)
	c.Request.Body = expand("request.body", c.Request.Body)

	// the map may be shared with copies of c
	c.Request.Headers = maps.Clone(c.Request.Headers)
	keys := make([]string, 0, len(c.Request.Headers))
	for k := range c.Request.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := expand("request.headers."+k, c.Request.Headers[k])
		c.Request.Headers[k] = v
		if placeholderRe.MatchString(v) {
			warnings = append(warnings, fmt.Sprintf("request.headers.%s still holds a placeholder value %q", k, placeholderRe.FindString(v)))
		}
	}
	return warnings
}

// ParseHeaders turns "Key: Value" flags into a map.
func ParseHeaders(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, h := range flags {
		k, v, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: header %q, want \"Key: Value\"", ErrInvalid, h)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}
