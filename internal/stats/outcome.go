package stats

import (
	"time"
)

// Status classifies a recorded iteration.
type Status int

const (
	StatusSuccess Status = iota
	// StatusFailure means a response arrived but a check or the expected status did not match.
	StatusFailure
	// StatusError means the request never produced a response (dial, timeout, template).
	StatusError
	// StatusCancelled means the iteration was force-stopped at teardown.
	StatusCancelled
	// StatusDropped means the scheduler found no free caller for the tick.
	StatusDropped
)

var statusNames = [...]string{"success", "failure", "error", "cancelled", "dropped"}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult is one named boolean assertion evaluated against a response.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Outcome is the immutable record of one scheduled iteration.
type Outcome struct {
	VU          int           `json:"vu"`
	Iteration   uint64        `json:"iteration"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration"`
	QueueWait   time.Duration `json:"queue_wait"`

	// Request side. Requested is false for drops and for iterations that
	// failed before the request left (bad template).
	Requested       bool          `json:"requested"`
	RequestDuration time.Duration `json:"request_duration"`
	StatusCode      int           `json:"status_code"`
	RequestFailed   bool          `json:"request_failed"`
	Bytes           int64         `json:"bytes"`

	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// Dropped builds the saturation sample for a tick that found the pool exhausted.
func Dropped(scheduledAt time.Time) Outcome {
	return Outcome{
		VU:          -1,
		ScheduledAt: scheduledAt,
		Timestamp:   scheduledAt,
		Status:      StatusDropped,
		Error:       "no free virtual caller",
	}
}
