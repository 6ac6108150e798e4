package stats

import (
	"sort"
	"time"
)

// Kind is the shape of a metric and decides which statistics it exposes.
type Kind int

const (
	KindCounter Kind = iota
	KindRate
	KindTrend
	KindGauge
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindRate:
		return "rate"
	case KindTrend:
		return "trend"
	case KindGauge:
		return "gauge"
	}
	return "unknown"
}

// Built-in metric names.
const (
	MetricIterations        = "iterations"
	MetricIterationDuration = "iteration_duration"
	MetricDroppedIterations = "dropped_iterations"
	MetricHTTPReqs          = "http_reqs"
	MetricHTTPReqDuration   = "http_req_duration"
	MetricHTTPReqFailed     = "http_req_failed"
	MetricChecks            = "checks"
	MetricDataReceived      = "data_received"
	MetricVUs               = "vus"
	MetricVUsMax            = "vus_max"
)

var builtins = map[string]Kind{
	MetricIterations:        KindCounter,
	MetricIterationDuration: KindTrend,
	MetricDroppedIterations: KindCounter,
	MetricHTTPReqs:          KindCounter,
	MetricHTTPReqDuration:   KindTrend,
	MetricHTTPReqFailed:     KindRate,
	MetricChecks:            KindRate,
	MetricDataReceived:      KindCounter,
	MetricVUs:               KindGauge,
	MetricVUsMax:            KindGauge,
}

// Lookup reports the kind of a known metric.
func Lookup(name string) (Kind, bool) {
	k, ok := builtins[name]
	return k, ok
}

// Names returns the known metric names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Metric is a read-only view of one metric inside a Snapshot.
type Metric struct {
	Name string
	Kind Kind

	// Count is the counter total, the rate denominator or the trend sample count.
	Count uint64
	// NonZero is the rate numerator.
	NonZero uint64

	// gauge state
	Value    float64
	GaugeMin float64
	GaugeMax float64

	trend   *Trend
	elapsed time.Duration
}

// Rate returns NonZero/Count for rate metrics and events per second for counters.
func (m Metric) Rate() float64 {
	switch m.Kind {
	case KindRate:
		if m.Count == 0 {
			return 0
		}
		return float64(m.NonZero) / float64(m.Count)
	case KindCounter:
		secs := m.elapsed.Seconds()
		if secs <= 0 {
			return 0
		}
		return float64(m.Count) / secs
	}
	return 0
}

func (m Metric) Percentile(p float64) float64 {
	if m.trend == nil {
		return 0
	}
	return m.trend.PercentileMs(p)
}

func (m Metric) Avg() float64 {
	if m.trend == nil {
		return 0
	}
	return m.trend.MeanMs()
}

func (m Metric) Min() float64 {
	if m.Kind == KindGauge {
		return m.GaugeMin
	}
	if m.trend == nil {
		return 0
	}
	return m.trend.MinMs()
}

func (m Metric) Max() float64 {
	if m.Kind == KindGauge {
		return m.GaugeMax
	}
	if m.trend == nil {
		return 0
	}
	return m.trend.MaxMs()
}

func (m Metric) Med() float64 {
	return m.Percentile(50)
}

// CheckSummary counts passes and fails of one named check.
type CheckSummary struct {
	Name   string `json:"name"`
	Passes uint64 `json:"passes"`
	Fails  uint64 `json:"fails"`
}

// Snapshot is a frozen copy of aggregate state. Evaluating it twice yields
// the same numbers.
type Snapshot struct {
	Elapsed  time.Duration
	Outcomes uint64
	ByStatus map[Status]uint64
	Metrics  map[string]Metric
	Checks   []CheckSummary
	Errors   map[string]uint64
}

// Metric returns the named metric; ok is false for names never registered.
func (s Snapshot) Metric(name string) (Metric, bool) {
	m, ok := s.Metrics[name]
	return m, ok
}
