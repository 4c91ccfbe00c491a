// Copyright 2026 The Sanitor Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the engine-wide error taxonomy. Every
// component returns a *SanitorError carrying a stable domain+code pair
// so callers can branch on failure kind without string matching.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type definition struct {
	message    string
	domain     Domain
	httpStatus int
}

var errorDefinitions = map[ErrorCode]definition{}

// register merges a domain's error definitions into the global table.
// Called from each domain file's init().
func register(defs map[ErrorCode]definition) {
	for code, def := range defs {
		errorDefinitions[code] = def
	}
}

func (e *SanitorError) Error() string {
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	return msg
}

// WithMetadata attaches a key-value pair and returns the receiver for
// chaining, e.g. errors.New(...).WithMetadata("device", path).
func (e *SanitorError) WithMetadata(key, value string) *SanitorError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MarshalJSON stamps a fresh timestamp on every serialization, matching
// the teacher's approach of not persisting a creation time on the
// struct itself.
func (e *SanitorError) MarshalJSON() ([]byte, error) {
	type alias SanitorError
	return json.Marshal(&struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{
		alias:     (*alias)(e),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// New creates a SanitorError for a registered code.
func New(code ErrorCode, details string) *SanitorError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &SanitorError{
			Code:       code,
			Domain:     "UNKNOWN",
			Message:    "unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	return &SanitorError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Wrap re-codes an error, preserving any SanitorError metadata and
// chaining the original message/code for diagnostics.
func Wrap(err error, code ErrorCode) *SanitorError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SanitorError); ok {
		wrapped := New(code, se.Details)
		for k, v := range se.Metadata {
			wrapped.WithMetadata(k, v)
		}
		wrapped.WithMetadata("wrapped_code", fmt.Sprintf("%d", se.Code))
		wrapped.WithMetadata("wrapped_domain", string(se.Domain))
		wrapped.WithMetadata("wrapped_message", se.Message)
		return wrapped
	}
	return New(code, err.Error())
}

// Is reports whether e and target are SanitorErrors with the same
// domain and code.
func (e *SanitorError) Is(target error) bool {
	t, ok := target.(*SanitorError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Domain == t.Domain
}

// IsSanitorError reports whether err is (or wraps, via errors.As) a
// *SanitorError.
func IsSanitorError(err error) bool {
	var se *SanitorError
	return errors.As(err, &se)
}

// GetCode extracts the ErrorCode from err if it is or wraps a
// *SanitorError.
func GetCode(err error) (ErrorCode, bool) {
	var se *SanitorError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// GetErrorWithCode returns the first SanitorError in err's chain that
// carries the given code, or nil.
func GetErrorWithCode(err error, code ErrorCode) *SanitorError {
	var se *SanitorError
	if errors.As(err, &se) && se.Code == code {
		return se
	}
	return nil
}

// NewCommandError builds a SanitorError for a failed external command
// invocation, mirroring the shape expected by internal/command.
func NewCommandError(cmd string, exitCode int, output string) *SanitorError {
	return New(CommandExecution, "command execution failed").
		WithMetadata("command", cmd).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("output", output)
}
