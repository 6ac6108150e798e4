package scheduler

import (
	"context"
	"log/slog"
	"math/bits"
	"time"

	"steadyrate/internal/pool"
	"steadyrate/internal/stats"
)

// ArrivalRate starts iterations at a constant rate, independent of how long
// they take. Tick k fires at start + k*TimeUnit/Rate, computed exactly; a
// late tick fires immediately so the count never drifts.
type ArrivalRate struct {
	Rate         int64
	TimeUnit     time.Duration
	Duration     time.Duration
	GracefulStop time.Duration

	Pool     *pool.Pool
	Executor Executor
	Recorder Recorder
	Logger   *slog.Logger

	// OnTick, when set, observes every tick's scheduled and actual time.
	OnTick func(scheduled, fired time.Time)
}

// Run blocks until scheduling stopped and every in-flight iteration returned.
// Cancelling ctx stops scheduling; iterations still get the grace period.
func (a *ArrivalRate) Run(ctx context.Context) Result {
	logger := loggerOr(a.Logger)

	// iterations outlive the scheduling ctx until the grace period expires
	iterCtx, forceStop := context.WithCancel(context.WithoutCancel(ctx))
	defer forceStop()

	var (
		res   Result
		group inflight
	)
	res.Started = time.Now()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

loop:
	for k := int64(0); ; k++ {
		off := a.Offset(k)
		if off >= a.Duration {
			break
		}
		at := res.Started.Add(off)
		if wait := time.Until(at); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				res.Interrupted = true
				break loop
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		res.Ticks++
		if a.OnTick != nil {
			a.OnTick(at, time.Now())
		}

		c, err := a.Pool.Acquire()
		if err != nil {
			res.Dropped++
			a.Recorder.Record(stats.Dropped(at))
			continue
		}

		res.Dispatched++
		scheduled := at
		group.spawn(func() {
			a.Executor.Run(iterCtx, c, scheduled)
			if err := a.Pool.Release(c); err != nil {
				logger.Error("release caller", "vu", c.ID, "err", err)
			}
		})
	}
	res.Stopped = time.Now()

	logger.Debug("arrival scheduling stopped",
		"ticks", res.Ticks, "dispatched", res.Dispatched, "dropped", res.Dropped, "interrupted", res.Interrupted)

	res.Forced = group.drain(a.GracefulStop, forceStop, logger)
	res.Finished = time.Now()
	return res
}

// Offset is how long after the start tick k is due: k*TimeUnit/Rate rounded
// down to the nanosecond, without overflowing for long runs.
func (a *ArrivalRate) Offset(k int64) time.Duration {
	if a.Rate <= 0 || k <= 0 {
		return 0
	}
	unit, rate := uint64(a.TimeUnit), uint64(a.Rate)
	hi, lo := bits.Mul64(uint64(k), unit)
	if hi >= rate {
		return time.Duration(1<<63 - 1)
	}
	q, _ := bits.Div64(hi, lo, rate)
	if q > 1<<63-1 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(q)
}
