package upstream

import (
	"errors"
	"fmt"
)

// Common errors returned by the upstream package.
var (
	// ErrUnavailable matches every failure to obtain a usable upstream response.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrNoUpstream is returned by the resolver when every candidate host failed.
	ErrNoUpstream = fmt.Errorf("%w: no upstream responded", ErrUnavailable)
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents any non-200 response.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassEmptyBody represents a 200 response without a body.
	ErrorClassEmptyBody ErrorClass = "empty_body"

	// ErrorClassOversized represents a body larger than the configured limit.
	ErrorClassOversized ErrorClass = "oversized_body"
)

// Error describes a failed request against a single upstream host.
type Error struct {
	Host       string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error from %s (status %d): %s: %v",
			e.Class, e.Host, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error from %s (status %d): %s",
		e.Class, e.Host, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports every host error as ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}
