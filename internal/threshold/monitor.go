package threshold

import (
	"context"
	"log/slog"
	"time"

	"steadyrate/internal/stats"
)

// SnapshotSource is anything that can freeze aggregate state.
type SnapshotSource interface {
	Snapshot() stats.Snapshot
}

// Monitor evaluates abortOnFail thresholds while the run is in progress.
type Monitor struct {
	Set      Set
	Source   SnapshotSource
	Interval time.Duration
	Logger   *slog.Logger

	// OnAbort is called at most once with the verdict that tripped.
	OnAbort func(Verdict)
}

// Run ticks until ctx is done or an abort fires. It returns the tripping
// verdict, if any.
func (m *Monitor) Run(ctx context.Context) (*Verdict, error) {
	if !m.Set.HasAbort() || m.Interval <= 0 {
		<-ctx.Done()
		return nil, nil
	}
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case <-ticker.C:
			if v := m.evaluate(); v != nil {
				logger.Warn("threshold crossed, aborting run",
					"metric", v.Metric, "threshold", v.Source, "observed", v.Observed)
				if m.OnAbort != nil {
					m.OnAbort(*v)
				}
				return v, nil
			}
		}
	}
}

func (m *Monitor) evaluate() *Verdict {
	snap := m.Source.Snapshot()
	for _, t := range m.Set {
		if !t.AbortOnFail || snap.Elapsed < t.DelayAbortEval {
			continue
		}
		if v := Check(t, snap); !v.Passed {
			return &v
		}
	}
	return nil
}
