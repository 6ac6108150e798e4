package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"steadyrate/internal/pool"
	"steadyrate/internal/stats"
)

// Executor runs one iteration on an acquired caller. It must record exactly
// one outcome before returning.
type Executor interface {
	Run(ctx context.Context, c *pool.Caller, scheduledAt time.Time)
}

// Recorder receives saturation samples.
type Recorder interface {
	Record(stats.Outcome)
}

// Result summarises one scheduling run.
type Result struct {
	Started time.Time
	// Stopped is when the scheduler stopped issuing iterations.
	Stopped time.Time
	// Finished is when the last in-flight iteration returned.
	Finished time.Time

	Ticks      int64
	Dispatched int64
	Dropped    int64
	// Forced counts iterations still running when the grace period ran out.
	Forced int64
	// Interrupted is set when ctx ended scheduling before the duration elapsed.
	Interrupted bool
}

// inflight tracks running iterations so teardown can wait on them.
type inflight struct {
	wg    sync.WaitGroup
	count atomic.Int64
}

func (f *inflight) spawn(fn func()) {
	f.wg.Add(1)
	f.count.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.count.Add(-1)
		fn()
	}()
}

// drain waits up to grace for in-flight iterations, then calls forceStop and
// waits for them to notice. It returns how many had to be forced.
func (f *inflight) drain(grace time.Duration, forceStop context.CancelFunc, logger *slog.Logger) int64 {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		forceStop()
		return 0
	case <-timer.C:
	}

	forced := f.count.Load()
	logger.Warn("graceful stop expired, cancelling iterations", "in_flight", forced, "grace", grace)
	forceStop()
	<-done
	return forced
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
