package runner

import (
	"time"

	"steadyrate/internal/config"
	"steadyrate/internal/scheduler"
	"steadyrate/internal/stats"
	"steadyrate/internal/threshold"
)

// StatsSnapshot is sent over the updates channel while a run is in progress.
type StatsSnapshot struct {
	Elapsed  time.Duration
	Progress float64 // 0..1 of the scenario duration

	Iterations uint64
	Dropped    uint64
	Requests   uint64
	Failed     uint64
	Bytes      uint64
	RPS        float64

	VUs    int
	VUsMax int

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs float64

	Done bool
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Report is everything a finished run produced.
type Report struct {
	ID       string        `json:"id"`
	Config   config.Config `json:"config"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`

	Snapshot   stats.Snapshot   `json:"-"`
	Thresholds threshold.Result `json:"thresholds"`
	Scheduler  scheduler.Result `json:"scheduler"`

	// Aborted holds the verdict that stopped the run early, if one did.
	Aborted *threshold.Verdict `json:"aborted,omitempty"`
	// Samples is only filled when Config.KeepSamples is set.
	Samples []stats.Outcome `json:"-"`
}

// Passed reports whether every threshold held and nothing aborted the run.
func (r *Report) Passed() bool {
	return r.Aborted == nil && r.Thresholds.Passed
}
