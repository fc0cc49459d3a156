package explore

import (
	"errors"
	"fmt"

	"github.com/csheth/policypulse/internal/pulse"
)

var (
	// ErrAlreadyRunning is returned by Start while a job is starting or running.
	ErrAlreadyRunning = pulse.ErrAlreadyRunning
	// ErrEmptyInput is returned when an aggregation is requested with nothing selected.
	ErrEmptyInput = pulse.ErrEmptyInput
	// ErrAggregatePending rejects a second aggregation while one is unresolved.
	ErrAggregatePending = errors.New("aggregated quotes already loading")
	// ErrUnknownTheme rejects selecting a name that is not in the current report.
	ErrUnknownTheme = errors.New("theme not in current report")
	// ErrNoReport is returned when exporting before any report has been fetched.
	ErrNoReport = errors.New("no report loaded")
	// ErrJobFailed wraps the error text a backend reports for a finished job.
	ErrJobFailed = errors.New("analysis failed")
)

// SubtopicLoadError is a quote fetch failure scoped to one subtopic.
type SubtopicLoadError struct {
	Subtopic string
	Err      error
}

func (e *SubtopicLoadError) Error() string {
	return fmt.Sprintf("load quotes for %q: %v", e.Subtopic, e.Err)
}

func (e *SubtopicLoadError) Unwrap() error {
	return e.Err
}
