package workload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"steadyrate/internal/pool"
	"steadyrate/internal/stats"
)

// Recorder receives exactly one outcome per executed iteration.
type Recorder interface {
	Record(stats.Outcome)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(stats.Outcome)

func (f RecorderFunc) Record(o stats.Outcome) { f(o) }

// Executor runs an iteration on a caller, records its outcome, then paces.
type Executor struct {
	Workload Workload
	Recorder Recorder
	// Pacing is the pause after each iteration, before the caller is freed.
	Pacing time.Duration
	Logger *slog.Logger
}

// Run always records one outcome, even when the workload panics.
func (e *Executor) Run(ctx context.Context, c *pool.Caller, scheduledAt time.Time) {
	start := time.Now()
	out := e.iterate(ctx, c)

	out.VU = c.ID
	out.ScheduledAt = scheduledAt
	if out.Timestamp.IsZero() {
		out.Timestamp = start
	}
	if out.Duration == 0 {
		out.Duration = time.Since(start)
	}
	if !scheduledAt.IsZero() {
		if wait := out.Timestamp.Sub(scheduledAt); wait > 0 {
			out.QueueWait = wait
		}
	}
	e.Recorder.Record(out)

	Sleep(ctx, e.Pacing)
}

func (e *Executor) iterate(ctx context.Context, c *pool.Caller) (out stats.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger := e.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.ErrorContext(ctx, "iteration recovered from panic", "vu", c.ID, "error", r)
			out = stats.Outcome{
				VU:     c.ID,
				Status: stats.StatusError,
				Error:  fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return e.Workload.Iterate(ctx, c)
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
