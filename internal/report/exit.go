package report

import (
	"errors"
	"strconv"

	"steadyrate/internal/config"
	"steadyrate/internal/runner"
)

// Process exit codes.
const (
	ExitOK               = 0
	ExitError            = 1
	ExitThresholdsFailed = 99
	ExitInvalidConfig    = 104
	ExitAborted          = 105
)

// ExitCode maps the outcome of a run to a process exit code.
func ExitCode(rep *runner.Report, err error) int {
	switch {
	case errors.Is(err, config.ErrInvalid):
		return ExitInvalidConfig
	case err != nil:
		return ExitError
	case rep == nil:
		return ExitError
	case rep.Aborted != nil:
		return ExitAborted
	case !rep.Thresholds.Passed:
		return ExitThresholdsFailed
	}
	return ExitOK
}

// ExitErr carries an exit code out of a cobra command.
type ExitErr struct {
	Code int
	Err  error
}

func (e *ExitErr) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitErr) Unwrap() error { return e.Err }
