package workload

import (
	"bytes"
	"time"

	"steadyrate/internal/config"
	"steadyrate/internal/stats"
)

// Response is what checks see of a completed request.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
}

// Check is a named boolean assertion.
type Check struct {
	Name string
	Fn   func(Response) bool
}

// StatusIs passes when the status code equals code.
func StatusIs(name string, code int) Check {
	return Check{Name: name, Fn: func(r Response) bool { return r.Status == code }}
}

// BodyContains passes when the body holds sub.
func BodyContains(name, sub string) Check {
	b := []byte(sub)
	return Check{Name: name, Fn: func(r Response) bool { return bytes.Contains(r.Body, b) }}
}

// FasterThan passes when the request took less than d.
func FasterThan(name string, d time.Duration) Check {
	return Check{Name: name, Fn: func(r Response) bool { return r.Duration < d }}
}

// ChecksFromConfig turns declared checks into predicates. A declaration with
// several predicates passes only when all of them hold.
func ChecksFromConfig(decls []config.Check) []Check {
	out := make([]Check, 0, len(decls))
	for _, d := range decls {
		var parts []Check
		if d.Status != 0 {
			parts = append(parts, StatusIs(d.Name, d.Status))
		}
		if d.BodyContains != "" {
			parts = append(parts, BodyContains(d.Name, d.BodyContains))
		}
		if d.MaxDuration > 0 {
			parts = append(parts, FasterThan(d.Name, d.MaxDuration))
		}
		if len(parts) == 1 {
			out = append(out, parts[0])
			continue
		}
		out = append(out, Check{Name: d.Name, Fn: func(r Response) bool {
			for _, p := range parts {
				if !p.Fn(r) {
					return false
				}
			}
			return true
		}})
	}
	return out
}

// needsBody reports whether any check reads the response body.
func needsBody(decls []config.Check) bool {
	for _, d := range decls {
		if d.BodyContains != "" {
			return true
		}
	}
	return false
}

func runChecks(checks []Check, r Response) ([]stats.CheckResult, bool) {
	if len(checks) == 0 {
		return nil, true
	}
	results := make([]stats.CheckResult, len(checks))
	all := true
	for i, c := range checks {
		ok := c.Fn(r)
		results[i] = stats.CheckResult{Name: c.Name, Passed: ok}
		all = all && ok
	}
	return results, all
}
