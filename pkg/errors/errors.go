// Copyright 2025 The Coldforge Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

func (e *VeriwipeError) Error() string {
	// Metadata is structured data for API responses and logging and is
	// left out of Error(), except for a command's captured "stderr",
	// which is appended on its own line.
	msg := fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
	if e.Details != "" {
		msg += " - " + e.Details
	}
	if e.Metadata != nil {
		if stderr, ok := e.Metadata["stderr"]; ok && stderr != "" {
			msg += "\nCommand output: " + stderr
		}
	}
	return msg
}

func (e *VeriwipeError) WithMetadata(key, value string) *VeriwipeError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// MarshalJSON customizes JSON serialization
func (e *VeriwipeError) MarshalJSON() ([]byte, error) {
	type Alias VeriwipeError
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(e),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// New creates a new VeriwipeError
func New(code ErrorCode, details string) *VeriwipeError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &VeriwipeError{
			Code:       code,
			Domain:     "UNKNOWN",
			Message:    "Unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}

	return &VeriwipeError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Is implements the interface for errors.Is
func (e *VeriwipeError) Is(target error) bool {
	if t, ok := target.(*VeriwipeError); ok {
		return e.Code == t.Code && e.Domain == t.Domain
	}
	return false
}

// Is checks if an error matches a sentinel error
func Is(err, target error) bool {
	re, ok := err.(*VeriwipeError)
	if !ok {
		return false
	}

	if t, ok := target.(*VeriwipeError); ok {
		return re.Code == t.Code && re.Domain == t.Domain
	}
	return false
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode) *VeriwipeError {
	if re, ok := err.(*VeriwipeError); ok {
		newErr := New(code, re.Details)
		if re.Metadata != nil {
			for k, v := range re.Metadata {
				newErr.WithMetadata(k, v)
			}
		}
		newErr.WithMetadata("wrapped_code", fmt.Sprintf("%d", re.Code))
		newErr.WithMetadata("wrapped_domain", string(re.Domain))
		newErr.WithMetadata("wrapped_message", re.Message)
		return newErr
	}
	return New(code, err.Error())
}

// Unwrap implements the interface for errors.Unwrap
func (e *VeriwipeError) Unwrap() error {
	if e.Metadata != nil {
		if originalErr, ok := e.Metadata["wrapped_message"]; ok {
			return fmt.Errorf("%s", originalErr)
		}
	}
	return nil
}

// IsVeriwipeError checks if an error is a VeriwipeError
func IsVeriwipeError(err error) bool {
	_, ok := err.(*VeriwipeError)
	return ok
}

// NewCommandError helper for command execution errors
func NewCommandError(cmd string, exitCode int, stderr string) *VeriwipeError {
	return New(CommandExecution, "Command execution failed").
		WithMetadata("command", cmd).
		WithMetadata("exit_code", fmt.Sprintf("%d", exitCode)).
		WithMetadata("stderr", stderr)
}

// GetCode extracts the error code from an error if it's a VeriwipeError.
// If not a VeriwipeError, returns 0 and false
func GetCode(err error) (ErrorCode, bool) {
	if err == nil {
		return 0, false
	}

	if re, ok := err.(*VeriwipeError); ok {
		return re.Code, true
	}

	var veriwipeErr *VeriwipeError
	if errors.As(err, &veriwipeErr) {
		return veriwipeErr.Code, true
	}

	return 0, false
}

// GetErrorWithCode returns the first VeriwipeError in the error chain with
// the specified code. Returns nil if no matching error is found
func GetErrorWithCode(err error, code ErrorCode) *VeriwipeError {
	if err == nil {
		return nil
	}

	if re, ok := err.(*VeriwipeError); ok && re.Code == code {
		return re
	}

	var veriwipeErr *VeriwipeError
	if errors.As(err, &veriwipeErr) && veriwipeErr.Code == code {
		return veriwipeErr
	}

	return nil
}

// errorCodeToHTTPStatus maps an error code to an HTTP status code
func errorCodeToHTTPStatus(code ErrorCode) int {
	if def, ok := errorDefinitions[code]; ok {
		return def.httpStatus
	}
	return http.StatusInternalServerError
}
