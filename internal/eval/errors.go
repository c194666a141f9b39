package eval

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks input-contract violations: mismatched lengths,
	// missing paths, malformed JSON, invalid settings. Runs abort on it.
	ErrConfiguration = errors.New("eval: configuration error")

	// ErrRegressionsDetected is returned by strict runs that found at least
	// one regression against the baseline.
	ErrRegressionsDetected = errors.New("eval: regressions detected")
)

// ConfigurationError describes a fatal input-contract violation.
// It matches ErrConfiguration under errors.Is.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(err error, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// WarningKind classifies a recoverable, per-item data-quality problem.
type WarningKind string

const (
	// WarningClassificationAmbiguity flags an expected entity with neither
	// entityValue nor matchText. It can never match and counts as a miss.
	WarningClassificationAmbiguity WarningKind = "classificationAmbiguity"
)

// Warning is a per-item problem reported alongside normal results.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	Index      int         `json:"index"`
	EntityType string      `json:"entityType,omitempty"`
	Message    string      `json:"message"`
}
