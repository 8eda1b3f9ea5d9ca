package shadwell

import (
	"errors"
	"fmt"
)

// Sentinel errors for configuration and input failures.
var (
	// ErrInvalidRequirement indicates a requirement string could not be parsed.
	ErrInvalidRequirement = errors.New("invalid requirement")

	// ErrInvalidPolicy indicates an unknown binary policy name.
	ErrInvalidPolicy = errors.New("invalid binary policy")

	// ErrInvalidConfig indicates a config file that could not be understood.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidOption indicates an option value rejected by NewFinder.
	ErrInvalidOption = errors.New("invalid option")
)

// SourceError reports a source that failed to list candidates.
type SourceError struct {
	// Source describes the failing source, usually its URL or path.
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
