package storyblok

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when the process-wide client is used
	// before Configure.
	ErrNotInitialized = errors.New("storyblok client not initialized")

	// ErrAlreadyInitialized is returned when Configure is called twice.
	// The client configuration is write-once for the process lifetime.
	ErrAlreadyInitialized = errors.New("storyblok client already initialized")
)

// TransportError reports that a call exhausted its retry budget. It carries
// the last observed status code (0 if the failure was network-level) and the
// last underlying error, if any.
type TransportError struct {
	Method     string
	Path       string
	Attempts   int
	LastStatus int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed after %d attempts: %v", e.Method, e.Path, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s %s failed after %d attempts: last status %d", e.Method, e.Path, e.Attempts, e.LastStatus)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a completed HTTP exchange with a non-2xx status. Callers
// decide whether a given status is fatal; every caller in this tool treats
// it as such.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// UnexpectedShapeError reports a response payload missing the collection
// field the caller asked for. The fields actually present are listed to make
// remote contract drift diagnosable.
type UnexpectedShapeError struct {
	Field   string
	Present []string
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("field %q not in response, possible fields: %s", e.Field, strings.Join(e.Present, ", "))
}
