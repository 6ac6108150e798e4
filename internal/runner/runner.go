package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"steadyrate/internal/config"
	"steadyrate/internal/pool"
	"steadyrate/internal/scheduler"
	"steadyrate/internal/stats"
	"steadyrate/internal/threshold"
	"steadyrate/internal/workload"
)

// UpdateInterval is how often live snapshots are pushed to Updates.
const UpdateInterval = 200 * time.Millisecond

// Runner owns everything one run needs: the aggregator, the caller pool,
// the workload and the parsed thresholds.
type Runner struct {
	Cfg   config.Config
	Stats *stats.Aggregator
	Pool  *pool.Pool

	// Workload defaults to the configured HTTP request.
	Workload workload.Workload

	// Event Channel
	Updates StatsUpdateChan
	Logger  *slog.Logger

	thresholds threshold.Set
}

// NewRunner resolves environment references, validates cfg and builds the
// run. A config error means nothing was dispatched.
func NewRunner(cfg config.Config, updates StatsUpdateChan, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range cfg.ExpandEnv(nil) {
		logger.Warn(w)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := cfg.ThresholdSet()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	wl, err := workload.NewHTTP(cfg.Request, cfg.Checks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	opts := pool.ClientOptions{Timeout: cfg.Request.Timeout, InsecureSkipVerify: cfg.Request.InsecureSkipVerify}
	pre, max := cfg.Scenario.PreAllocatedVUs, cfg.Scenario.MaxVUs
	if cfg.Scenario.Executor == config.ExecutorConstantVUs {
		pre, max = cfg.Scenario.VUs, cfg.Scenario.VUs
	}
	p, err := pool.New(pre, max, func(id int) *pool.Caller { return pool.NewHTTPCaller(id, opts) })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	return &Runner{
		Cfg:        cfg,
		Stats:      stats.NewAggregator(cfg.KeepSamples),
		Pool:       p,
		Workload:   wl,
		Updates:    updates,
		Logger:     logger,
		thresholds: set,
	}, nil
}

// Thresholds returns the parsed threshold set.
func (r *Runner) Thresholds() threshold.Set {
	return r.thresholds
}

// Run executes the scenario and evaluates thresholds against the final
// snapshot. Cancelling ctx stops scheduling early; the report is still built.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	defer r.Pool.Close()

	rep := &Report{ID: uuid.NewString(), Config: r.Cfg, Started: time.Now()}
	r.Stats.Start(rep.Started)
	r.sampleGauges()

	schedCtx, stopScheduling := context.WithCancel(ctx)
	defer stopScheduling()
	// the monitor and the tick loop live exactly as long as scheduling
	auxCtx, stopAux := context.WithCancel(context.WithoutCancel(ctx))
	defer stopAux()

	mon := &threshold.Monitor{
		Set:      r.thresholds,
		Source:   r.Stats,
		Interval: r.Cfg.EvaluationInterval,
		Logger:   r.Logger,
		OnAbort:  func(threshold.Verdict) { stopScheduling() },
	}

	r.Logger.Info("run started",
		"id", rep.ID, "executor", r.Cfg.Scenario.Executor, "url", r.Cfg.Request.URL,
		"rate", r.Cfg.Scenario.Rate, "time_unit", r.Cfg.Scenario.TimeUnit, "duration", r.Cfg.Scenario.Duration)

	var g errgroup.Group
	g.Go(func() error {
		defer stopAux()
		rep.Scheduler = r.schedule(schedCtx)
		return nil
	})
	g.Go(func() error {
		v, err := mon.Run(auxCtx)
		rep.Aborted = v
		return err
	})
	g.Go(func() error {
		r.tickLoop(auxCtx, UpdateInterval)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.sampleGauges()
	rep.Finished = time.Now()
	rep.Snapshot = r.Stats.SnapshotAt(rep.Finished)
	rep.Thresholds = r.thresholds.Evaluate(rep.Snapshot)
	if r.Cfg.KeepSamples {
		rep.Samples = r.Stats.Samples()
	}
	r.send(true)

	r.Logger.Info("run finished",
		"id", rep.ID, "iterations", rep.Scheduler.Dispatched, "dropped", rep.Scheduler.Dropped,
		"forced", rep.Scheduler.Forced, "passed", rep.Passed())
	return rep, nil
}

func (r *Runner) schedule(ctx context.Context) scheduler.Result {
	exec := &workload.Executor{
		Workload: r.Workload,
		Recorder: r.Stats,
		Pacing:   r.Cfg.Sleep,
		Logger:   r.Logger,
	}
	s := r.Cfg.Scenario
	if s.Executor == config.ExecutorConstantVUs {
		v := &scheduler.ConstantVUs{
			VUs: s.VUs, Duration: s.Duration, GracefulStop: s.GracefulStop,
			Pool: r.Pool, Executor: exec, Logger: r.Logger,
		}
		return v.Run(ctx)
	}
	a := &scheduler.ArrivalRate{
		Rate: int64(s.Rate), TimeUnit: s.TimeUnit, Duration: s.Duration, GracefulStop: s.GracefulStop,
		Pool: r.Pool, Executor: exec, Recorder: r.Stats, Logger: r.Logger,
	}
	return a.Run(ctx)
}

// tickLoop pushes stats updates until ctx is done.
func (r *Runner) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sampleGauges()
			r.send(false)
		}
	}
}

func (r *Runner) sampleGauges() {
	r.Stats.SetGauge(stats.MetricVUs, float64(r.Pool.Busy()))
	r.Stats.SetGauge(stats.MetricVUsMax, float64(r.Pool.Size()))
}

func (r *Runner) send(done bool) {
	snap := r.Stats.Snapshot()
	s := StatsSnapshot{
		Elapsed:    snap.Elapsed,
		Iterations: snap.Metrics[stats.MetricIterations].Count,
		Dropped:    snap.Metrics[stats.MetricDroppedIterations].Count,
		Requests:   snap.Metrics[stats.MetricHTTPReqs].Count,
		Failed:     snap.Metrics[stats.MetricHTTPReqFailed].NonZero,
		Bytes:      snap.Metrics[stats.MetricDataReceived].Count,
		RPS:        snap.Metrics[stats.MetricHTTPReqs].Rate(),
		VUs:        r.Pool.Busy(),
		VUsMax:     r.Pool.Size(),
		Done:       done,
	}
	if d := r.Cfg.Scenario.Duration; d > 0 {
		s.Progress = min(float64(snap.Elapsed)/float64(d), 1)
	}
	if done {
		s.Progress = 1
	}
	lat := snap.Metrics[stats.MetricHTTPReqDuration]
	s.P50Ms, s.P90Ms, s.P99Ms, s.MaxMs = lat.Percentile(50), lat.Percentile(90), lat.Percentile(99), lat.Max()

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
