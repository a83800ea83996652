package services

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError carries per-field messages for a 400 response.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// ConflictError maps to a 409 response.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// UnauthorizedError maps to a 401 response.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

// TimeoutError marks a stage that exceeded its allotted time. Handlers map
// it to 504.
type TimeoutError struct {
	Stage string
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s timed out: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s timed out", e.Stage)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a TimeoutError anywhere in its chain.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// StrategyError records one failed extraction attempt.
type StrategyError struct {
	Strategy string
	Err      error
}

// ExhaustedError is returned only after every extraction strategy has
// failed. Its message enumerates each individual failure.
type ExhaustedError struct {
	Attempts []StrategyError
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Strategy, a.Err)
	}
	return "all extraction methods failed: " + strings.Join(parts, "; ")
}
