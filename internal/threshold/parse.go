package threshold

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"steadyrate/internal/stats"
)

var (
	ErrUnknownMetric = errors.New("unknown metric")
	ErrMalformed     = errors.New("malformed threshold expression")
)

// Operator compares an observed statistic with a bound.
type Operator string

const (
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
)

func (o Operator) compare(observed, bound float64) bool {
	switch o {
	case OpLess:
		return observed < bound
	case OpLessEqual:
		return observed <= bound
	case OpGreater:
		return observed > bound
	case OpGreaterEqual:
		return observed >= bound
	case OpEqual:
		return observed == bound
	case OpNotEqual:
		return observed != bound
	}
	return false
}

// Statistic names the aggregate a threshold reads. Arg is the percentile for "p".
type Statistic struct {
	Name string
	Arg  float64
}

func (s Statistic) String() string {
	if s.Name == "p" {
		return "p(" + strconv.FormatFloat(s.Arg, 'f', -1, 64) + ")"
	}
	return s.Name
}

var allowed = map[stats.Kind][]string{
	stats.KindCounter: {"count", "rate"},
	stats.KindRate:    {"rate"},
	stats.KindTrend:   {"avg", "min", "max", "med", "p"},
	stats.KindGauge:   {"value", "min", "max"},
}

// Declaration is a threshold as written in configuration.
type Declaration struct {
	Metric         string
	Expression     string
	AbortOnFail    bool
	DelayAbortEval time.Duration
}

// Threshold is a parsed, validated declaration.
type Threshold struct {
	Metric         string
	Source         string
	Stat           Statistic
	Op             Operator
	Bound          float64
	AbortOnFail    bool
	DelayAbortEval time.Duration
}

func (t Threshold) String() string {
	return t.Metric + ": " + t.Source
}

// operators longest first so "<=" wins over "<"
var exprRe = regexp.MustCompile(`^\s*([a-z]+(?:\(\s*[0-9.]+\s*\)|[0-9.]+)?)\s*(<=|>=|==|!=|<|>)\s*([^\s]+)\s*$`)

// Parse validates expr against the metric's kind.
func Parse(metric, expr string) (Threshold, error) {
	kind, ok := stats.Lookup(metric)
	if !ok {
		return Threshold{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownMetric, metric, strings.Join(stats.Names(), ", "))
	}

	m := exprRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("%w: %s: %q", ErrMalformed, metric, expr)
	}

	stat, err := parseStatistic(m[1])
	if err != nil {
		return Threshold{}, fmt.Errorf("%w: %s: %q: %v", ErrMalformed, metric, expr, err)
	}
	if !statAllowed(kind, stat.Name) {
		return Threshold{}, fmt.Errorf("%w: %s: %q: statistic %s not available on %s metrics",
			ErrMalformed, metric, expr, stat, kind)
	}

	bound, err := parseBound(kind, m[3])
	if err != nil {
		return Threshold{}, fmt.Errorf("%w: %s: %q: %v", ErrMalformed, metric, expr, err)
	}

	return Threshold{
		Metric: metric,
		Source: strings.TrimSpace(expr),
		Stat:   stat,
		Op:     Operator(m[2]),
		Bound:  bound,
	}, nil
}

var percentileRe = regexp.MustCompile(`^p\(?\s*([0-9.]+)\s*\)?$`)

func parseStatistic(s string) (Statistic, error) {
	if s == "p" {
		return Statistic{}, errors.New("percentile needs a value, e.g. p(95)")
	}
	m := percentileRe.FindStringSubmatch(s)
	if m == nil {
		return Statistic{Name: s}, nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Statistic{}, fmt.Errorf("bad percentile %q", s)
	}
	if v < 0 || v > 100 {
		return Statistic{}, fmt.Errorf("percentile %v out of range [0,100]", v)
	}
	return Statistic{Name: "p", Arg: v}, nil
}

func statAllowed(kind stats.Kind, name string) bool {
	for _, n := range allowed[kind] {
		if n == name {
			return true
		}
	}
	return false
}

// parseBound reads a number; trend bounds may carry a duration suffix and
// are normalised to milliseconds.
func parseBound(kind stats.Kind, s string) (float64, error) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	if kind != stats.KindTrend {
		return 0, fmt.Errorf("bound %q is not a number", s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bound %q is neither a number nor a duration", s)
	}
	return float64(d) / float64(time.Millisecond), nil
}

// Set is an ordered list of thresholds.
type Set []Threshold

// NewSet parses every declaration and reports all failures together.
func NewSet(decls []Declaration) (Set, error) {
	var result *multierror.Error
	set := make(Set, 0, len(decls))
	for _, d := range decls {
		t, err := Parse(d.Metric, d.Expression)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		t.AbortOnFail = d.AbortOnFail
		t.DelayAbortEval = d.DelayAbortEval
		set = append(set, t)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return set, nil
}

// HasAbort reports whether any threshold can abort a run.
func (s Set) HasAbort() bool {
	for _, t := range s {
		if t.AbortOnFail {
			return true
		}
	}
	return false
}
