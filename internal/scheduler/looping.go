package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"steadyrate/internal/pool"
)

// ConstantVUs is the closed-loop executor: each caller starts its next
// iteration as soon as the previous one (and its pacing) finished.
type ConstantVUs struct {
	VUs          int
	Duration     time.Duration
	GracefulStop time.Duration

	Pool     *pool.Pool
	Executor Executor
	Logger   *slog.Logger
}

func (v *ConstantVUs) Run(ctx context.Context) Result {
	logger := loggerOr(v.Logger)

	iterCtx, forceStop := context.WithCancel(context.WithoutCancel(ctx))
	defer forceStop()

	var (
		res               Result
		group             inflight
		ticks, dispatched atomic.Int64
	)
	res.Started = time.Now()
	end := res.Started.Add(v.Duration)

	stopCtx, stop := context.WithDeadline(ctx, end)
	defer stop()

	for i := 0; i < v.VUs; i++ {
		c, err := v.Pool.Acquire()
		if err != nil {
			logger.Error("acquire caller for constant-vus", "vu", i, "err", err)
			break
		}
		group.spawn(func() {
			defer func() {
				if err := v.Pool.Release(c); err != nil {
					logger.Error("release caller", "vu", c.ID, "err", err)
				}
			}()
			for stopCtx.Err() == nil {
				ticks.Add(1)
				dispatched.Add(1)
				v.Executor.Run(iterCtx, c, time.Now())
			}
		})
	}

	<-stopCtx.Done()
	res.Stopped = time.Now()
	res.Interrupted = ctx.Err() != nil && res.Stopped.Before(end)

	res.Forced = group.drain(v.GracefulStop, forceStop, logger)
	res.Finished = time.Now()
	res.Ticks = ticks.Load()
	res.Dispatched = dispatched.Load()
	return res
}
