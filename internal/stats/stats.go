package stats

import (
	"sort"
	"sync"
	"time"
)

// Observer is notified after every recorded outcome, outside the lock.
type Observer interface {
	Observe(Outcome)
}

type gauge struct {
	value, min, max float64
	set             bool
}

func (g *gauge) update(v float64) {
	g.value = v
	if !g.set || v < g.min {
		g.min = v
	}
	if !g.set || v > g.max {
		g.max = v
	}
	g.set = true
}

type checkCount struct {
	passes, fails uint64
}

// Aggregator holds the run-wide aggregate state. Record is atomic with
// respect to Snapshot: a snapshot sees every outcome either fully or not at all.
type Aggregator struct {
	mu    sync.Mutex
	start time.Time

	outcomes uint64
	byStatus map[Status]uint64

	iterations   uint64
	dropped      uint64
	httpReqs     uint64
	httpFailed   uint64
	checksTotal  uint64
	checksPassed uint64
	dataReceived uint64

	reqDuration  *Trend
	iterDuration *Trend
	gauges       map[string]*gauge

	checks     map[string]*checkCount
	checkOrder []string
	errors     map[string]uint64

	keep    bool
	samples []Outcome

	observers []Observer
}

// NewAggregator creates an empty aggregator. When keep is true every outcome
// is retained for export.
func NewAggregator(keep bool) *Aggregator {
	return &Aggregator{
		start:        time.Now(),
		byStatus:     make(map[Status]uint64),
		reqDuration:  NewTrend(),
		iterDuration: NewTrend(),
		gauges: map[string]*gauge{
			MetricVUs:    {},
			MetricVUsMax: {},
		},
		checks: make(map[string]*checkCount),
		errors: make(map[string]uint64),
		keep:   keep,
	}
}

// AddObserver registers o. Not safe to call once recording started.
func (a *Aggregator) AddObserver(o Observer) {
	a.observers = append(a.observers, o)
}

// Start resets the clock used for per-second rates.
func (a *Aggregator) Start(t time.Time) {
	a.mu.Lock()
	a.start = t
	a.mu.Unlock()
}

func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	a.outcomes++
	a.byStatus[o.Status]++

	if o.Status == StatusDropped {
		a.dropped++
	} else {
		a.iterations++
		a.iterDuration.Add(o.Duration)
	}

	if o.Requested {
		a.httpReqs++
		if o.RequestFailed {
			a.httpFailed++
		}
		if o.StatusCode > 0 {
			a.reqDuration.Add(o.RequestDuration)
		}
		if o.Bytes > 0 {
			a.dataReceived += uint64(o.Bytes)
		}
	}

	for _, c := range o.Checks {
		cc, ok := a.checks[c.Name]
		if !ok {
			cc = &checkCount{}
			a.checks[c.Name] = cc
			a.checkOrder = append(a.checkOrder, c.Name)
		}
		a.checksTotal++
		if c.Passed {
			a.checksPassed++
			cc.passes++
		} else {
			cc.fails++
		}
	}

	if o.Error != "" {
		a.errors[o.Error]++
	}
	if a.keep {
		a.samples = append(a.samples, o)
	}
	a.mu.Unlock()

	for _, obs := range a.observers {
		obs.Observe(o)
	}
}

// SetGauge records a sampled gauge value. Unknown names are ignored.
func (a *Aggregator) SetGauge(name string, v float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if g, ok := a.gauges[name]; ok {
		g.update(v)
	}
}

// Outcomes returns the number of outcomes recorded so far.
func (a *Aggregator) Outcomes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcomes
}

// Samples returns a copy of the retained outcomes in recording order.
func (a *Aggregator) Samples() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Outcome, len(a.samples))
	copy(out, a.samples)
	return out
}

// Snapshot freezes the current aggregate state.
func (a *Aggregator) Snapshot() Snapshot {
	return a.SnapshotAt(time.Now())
}

func (a *Aggregator) SnapshotAt(now time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.start)
	if elapsed < 0 {
		elapsed = 0
	}

	counter := func(name string, v uint64) Metric {
		return Metric{Name: name, Kind: KindCounter, Count: v, elapsed: elapsed}
	}
	rate := func(name string, nonZero, total uint64) Metric {
		return Metric{Name: name, Kind: KindRate, Count: total, NonZero: nonZero}
	}
	trend := func(name string, t *Trend) Metric {
		c := t.Clone()
		return Metric{Name: name, Kind: KindTrend, Count: uint64(c.Count()), trend: c}
	}

	metrics := map[string]Metric{
		MetricIterations:        counter(MetricIterations, a.iterations),
		MetricDroppedIterations: counter(MetricDroppedIterations, a.dropped),
		MetricHTTPReqs:          counter(MetricHTTPReqs, a.httpReqs),
		MetricDataReceived:      counter(MetricDataReceived, a.dataReceived),
		MetricHTTPReqFailed:     rate(MetricHTTPReqFailed, a.httpFailed, a.httpReqs),
		MetricChecks:            rate(MetricChecks, a.checksPassed, a.checksTotal),
		MetricHTTPReqDuration:   trend(MetricHTTPReqDuration, a.reqDuration),
		MetricIterationDuration: trend(MetricIterationDuration, a.iterDuration),
	}
	for name, g := range a.gauges {
		metrics[name] = Metric{Name: name, Kind: KindGauge, Value: g.value, GaugeMin: g.min, GaugeMax: g.max}
	}

	byStatus := make(map[Status]uint64, len(a.byStatus))
	for k, v := range a.byStatus {
		byStatus[k] = v
	}

	checks := make([]CheckSummary, 0, len(a.checkOrder))
	for _, name := range a.checkOrder {
		cc := a.checks[name]
		checks = append(checks, CheckSummary{Name: name, Passes: cc.passes, Fails: cc.fails})
	}

	errs := make(map[string]uint64, len(a.errors))
	for k, v := range a.errors {
		errs[k] = v
	}

	return Snapshot{
		Elapsed:  elapsed,
		Outcomes: a.outcomes,
		ByStatus: byStatus,
		Metrics:  metrics,
		Checks:   checks,
		Errors:   errs,
	}
}

// TopErrors returns up to n error messages ordered by frequency.
func (s Snapshot) TopErrors(n int) []ErrorCount {
	out := make([]ErrorCount, 0, len(s.Errors))
	for msg, c := range s.Errors {
		out = append(out, ErrorCount{Message: msg, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type ErrorCount struct {
	Message string `json:"message"`
	Count   uint64 `json:"count"`
}
