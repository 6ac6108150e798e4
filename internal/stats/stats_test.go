package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okOutcome(d time.Duration) Outcome {
	return Outcome{
		Requested:       true,
		StatusCode:      200,
		Duration:        d,
		RequestDuration: d,
		Bytes:           10,
		Status:          StatusSuccess,
		Checks:          []CheckResult{{Name: "status is 200", Passed: true}},
	}
}

func TestAggregatorConcurrentRecordLosesNothing(t *testing.T) {
	a := NewAggregator(true)

	const writers, perWriter = 50, 400
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if i%10 == 0 {
					a.Record(Dropped(time.Now()))
					continue
				}
				a.Record(okOutcome(time.Millisecond))
			}
		}(w)
	}
	wg.Wait()

	snap := a.Snapshot()
	total := uint64(writers * perWriter)
	drops := uint64(writers * perWriter / 10)

	assert.Equal(t, total, snap.Outcomes)
	assert.Equal(t, total, a.Outcomes())
	assert.Len(t, a.Samples(), int(total))
	assert.Equal(t, drops, snap.Metrics[MetricDroppedIterations].Count)
	assert.Equal(t, total-drops, snap.Metrics[MetricIterations].Count)
	assert.Equal(t, total-drops, snap.Metrics[MetricHTTPReqs].Count)
	assert.Equal(t, total-drops, snap.Metrics[MetricHTTPReqDuration].Count)
	assert.Equal(t, (total-drops)*10, snap.Metrics[MetricDataReceived].Count)
	assert.Equal(t, drops, snap.ByStatus[StatusDropped])
	assert.Equal(t, 1.0, snap.Metrics[MetricChecks].Rate())
	assert.Equal(t, drops, snap.Errors["no free virtual caller"])
}

func TestTrendPercentiles(t *testing.T) {
	a := NewAggregator(false)
	for i := 0; i < 96; i++ {
		a.Record(okOutcome(10 * time.Millisecond))
	}
	for i := 0; i < 4; i++ {
		a.Record(okOutcome(200 * time.Millisecond))
	}

	m := a.Snapshot().Metrics[MetricHTTPReqDuration]
	assert.InDelta(t, 10, m.Percentile(95), 0.1)
	assert.InDelta(t, 200, m.Percentile(97), 0.5)
	assert.InDelta(t, 10, m.Med(), 0.1)
	assert.InDelta(t, 10, m.Min(), 0.1)
	assert.InDelta(t, 200, m.Max(), 0.5)
	assert.InDelta(t, 17.6, m.Avg(), 0.2)
}

func TestRequestFailedRate(t *testing.T) {
	a := NewAggregator(false)
	for i := 0; i < 3; i++ {
		a.Record(okOutcome(time.Millisecond))
	}
	a.Record(Outcome{Requested: true, RequestFailed: true, Status: StatusError, Error: "dial tcp: refused"})

	snap := a.Snapshot()
	failed := snap.Metrics[MetricHTTPReqFailed]
	assert.Equal(t, uint64(4), failed.Count)
	assert.Equal(t, uint64(1), failed.NonZero)
	assert.InDelta(t, 0.25, failed.Rate(), 1e-9)
	// no response, no duration sample
	assert.Equal(t, uint64(3), snap.Metrics[MetricHTTPReqDuration].Count)
	require.Len(t, snap.TopErrors(5), 1)
	assert.Equal(t, "dial tcp: refused", snap.TopErrors(5)[0].Message)
}

func TestSnapshotIsFrozen(t *testing.T) {
	a := NewAggregator(false)
	a.Record(okOutcome(5 * time.Millisecond))
	snap := a.Snapshot()

	a.Record(okOutcome(500 * time.Millisecond))

	m := snap.Metrics[MetricHTTPReqDuration]
	assert.Equal(t, uint64(1), m.Count)
	assert.InDelta(t, 5, m.Max(), 0.1)
	assert.Equal(t, uint64(1), snap.Outcomes)
}

func TestCounterRatePerSecond(t *testing.T) {
	a := NewAggregator(false)
	start := time.Now()
	a.Start(start)
	for i := 0; i < 20; i++ {
		a.Record(okOutcome(time.Millisecond))
	}

	snap := a.SnapshotAt(start.Add(2 * time.Second))
	assert.InDelta(t, 10, snap.Metrics[MetricHTTPReqs].Rate(), 1e-9)
}

func TestGauges(t *testing.T) {
	a := NewAggregator(false)
	a.SetGauge(MetricVUs, 3)
	a.SetGauge(MetricVUs, 9)
	a.SetGauge(MetricVUs, 5)
	a.SetGauge("nope", 1)

	m := a.Snapshot().Metrics[MetricVUs]
	assert.Equal(t, 5.0, m.Value)
	assert.Equal(t, 3.0, m.Min())
	assert.Equal(t, 9.0, m.Max())
	_, ok := a.Snapshot().Metric("nope")
	assert.False(t, ok)
}

func TestCheckSummariesKeepFirstSeenOrder(t *testing.T) {
	a := NewAggregator(false)
	a.Record(Outcome{Checks: []CheckResult{{"b", true}, {"a", false}}})
	a.Record(Outcome{Checks: []CheckResult{{"b", false}, {"a", false}}})

	checks := a.Snapshot().Checks
	require.Len(t, checks, 2)
	assert.Equal(t, CheckSummary{Name: "b", Passes: 1, Fails: 1}, checks[0])
	assert.Equal(t, CheckSummary{Name: "a", Passes: 0, Fails: 2}, checks[1])
}

type countingObserver struct {
	mu sync.Mutex
	n  int
}

func (c *countingObserver) Observe(Outcome) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestObserversSeeEveryOutcome(t *testing.T) {
	a := NewAggregator(false)
	obs := &countingObserver{}
	a.AddObserver(obs)
	for i := 0; i < 7; i++ {
		a.Record(okOutcome(time.Millisecond))
	}
	assert.Equal(t, 7, obs.n)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "dropped", StatusDropped.String())
	assert.Equal(t, "unknown", Status(42).String())
	b, err := StatusCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(b))
}

func TestLookup(t *testing.T) {
	k, ok := Lookup(MetricHTTPReqDuration)
	require.True(t, ok)
	assert.Equal(t, KindTrend, k)
	_, ok = Lookup("http_req_nope")
	assert.False(t, ok)
	assert.Contains(t, Names(), MetricChecks)
}
