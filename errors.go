package main

import (
	"errors"
	"fmt"
)

var (
	// ErrContextFull is returned by a forward pass when the KV cache already
	// holds ContextLen positions. It is a capacity condition, not a failure:
	// agents answer it with a rolling-window reset.
	ErrContextFull = errors.New("kv cache at maximum context length")

	// ErrEmptySequence is returned when a sequence has no (token, next) pair.
	ErrEmptySequence = errors.New("sequence has fewer than two tokens")
)

// DomainError reports arithmetic that left the real numbers: the log of a
// non-positive value, division by zero, overflow to ±Inf, or NaN.
//
// A training step that hits one is abandoned; its gradients are discarded.
type DomainError struct {
	Op      string
	Operand float64
	Result  float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s(%g) = %g", e.Op, e.Operand, e.Result)
}

// ConfigError reports a configuration rejected at construction time.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// recoverDomainError converts a *DomainError panic into *err. Any other panic
// is re-raised.
func recoverDomainError(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if de, ok := r.(*DomainError); ok {
		*err = de
		return
	}
	panic(r)
}
