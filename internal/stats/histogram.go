package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	trendLowest  = 1
	trendHighest = int64(10 * time.Minute / time.Microsecond)
)

// Trend is a latency distribution stored in microseconds.
// It is not synchronized; the Aggregator owns the lock.
type Trend struct {
	hist *hdrhistogram.Histogram
}

func NewTrend() *Trend {
	// 1us to 10min, 3 significant figures
	return &Trend{hist: hdrhistogram.New(trendLowest, trendHighest, 3)}
}

// Add records d, clamped into the trackable range.
func (t *Trend) Add(d time.Duration) {
	us := d.Microseconds()
	if us < trendLowest {
		us = trendLowest
	}
	if us > trendHighest {
		us = trendHighest
	}
	// clamped above, RecordValue cannot fail
	_ = t.hist.RecordValue(us)
}

func (t *Trend) Count() int64 {
	return t.hist.TotalCount()
}

// Clone returns an independent copy for snapshots.
func (t *Trend) Clone() *Trend {
	return &Trend{hist: hdrhistogram.Import(t.hist.Export())}
}

// PercentileMs returns the value at percentile p (0-100) in milliseconds.
func (t *Trend) PercentileMs(p float64) float64 {
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return float64(t.hist.ValueAtQuantile(p)) / 1000.0
}

func (t *Trend) MeanMs() float64 {
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return t.hist.Mean() / 1000.0
}

func (t *Trend) MinMs() float64 {
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return float64(t.hist.Min()) / 1000.0
}

func (t *Trend) MaxMs() float64 {
	if t.hist.TotalCount() == 0 {
		return 0
	}
	return float64(t.hist.Max()) / 1000.0
}
