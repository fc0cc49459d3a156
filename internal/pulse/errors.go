package pulse

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks rejected requests and non-success responses.
	ErrNetwork = errors.New("network error")
	// ErrParse marks response bodies that could not be decoded.
	ErrParse = errors.New("malformed response")
	// ErrEmptyInput is returned before any request when the input is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrAlreadyRunning reports that an analysis job is already in progress.
	ErrAlreadyRunning = errors.New("analysis already running")
	// ErrPartialAggregate is returned when an aggregated response omits a requested theme.
	ErrPartialAggregate = fmt.Errorf("%w: aggregated response is missing themes", ErrParse)
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned %d (%s)", e.Op, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNetwork) match status failures.
func (e *StatusError) Is(target error) bool {
	return target == ErrNetwork
}
