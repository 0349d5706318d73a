package contract

import (
	"errors"
	"fmt"
)

// ErrSourceUnavailable marks a non-success response or an unreachable upstream.
// Callers treat it as absence of data for the unit of work at hand.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrMissingHome is returned when a path must default to PRA_HOME and it is unset.
var ErrMissingHome = errors.New("PRA_HOME is not set")

// SourceError describes a failed upstream request.
type SourceError struct {
	Source string // "sonar" or "jenkins"
	Path   string // Request path including the query string
	Status int    // HTTP status, 0 when no response was received
	Err    error
}

func (e *SourceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: HTTP %d for request %s", e.Source, e.Status, e.Path)
	}
	return fmt.Sprintf("%s: request %s failed: %v", e.Source, e.Path, e.Err)
}

// Unwrap exposes the transport error, if any.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match every SourceError against ErrSourceUnavailable.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// ConfigError is a fatal configuration problem detected at startup.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration for %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// configErrorf builds a ConfigError from a format string.
func configErrorf(key, format string, args ...any) error {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}
