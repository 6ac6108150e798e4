package threshold

import (
	"sort"

	"steadyrate/internal/stats"
)

// Verdict is the result of one threshold against one snapshot.
type Verdict struct {
	Threshold Threshold `json:"-"`
	Metric    string    `json:"metric"`
	Source    string    `json:"threshold"`
	Observed  float64   `json:"observed"`
	Passed    bool      `json:"passed"`
}

// Result holds every verdict plus the overall AND.
type Result struct {
	Verdicts []Verdict `json:"verdicts"`
	Passed   bool      `json:"passed"`
}

// Failed returns the verdicts that did not pass.
func (r Result) Failed() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if !v.Passed {
			out = append(out, v)
		}
	}
	return out
}

// Observe reads the statistic t refers to from snap.
func Observe(t Threshold, snap stats.Snapshot) float64 {
	m, ok := snap.Metric(t.Metric)
	if !ok {
		return 0
	}
	switch t.Stat.Name {
	case "count":
		return float64(m.Count)
	case "rate":
		return m.Rate()
	case "avg":
		return m.Avg()
	case "min":
		return m.Min()
	case "max":
		return m.Max()
	case "med":
		return m.Med()
	case "p":
		return m.Percentile(t.Stat.Arg)
	case "value":
		return m.Value
	}
	return 0
}

// Check evaluates a single threshold.
func Check(t Threshold, snap stats.Snapshot) Verdict {
	observed := Observe(t, snap)
	return Verdict{
		Threshold: t,
		Metric:    t.Metric,
		Source:    t.Source,
		Observed:  observed,
		Passed:    t.Op.compare(observed, t.Bound),
	}
}

// Evaluate checks every threshold against snap. It only reads snap, so the
// same snapshot always gives the same Result. Verdicts are ordered by metric
// name, then declaration order.
func (s Set) Evaluate(snap stats.Snapshot) Result {
	res := Result{Passed: true, Verdicts: make([]Verdict, 0, len(s))}
	for _, t := range s {
		v := Check(t, snap)
		res.Passed = res.Passed && v.Passed
		res.Verdicts = append(res.Verdicts, v)
	}
	sort.SliceStable(res.Verdicts, func(i, j int) bool {
		return res.Verdicts[i].Metric < res.Verdicts[j].Metric
	})
	return res
}
