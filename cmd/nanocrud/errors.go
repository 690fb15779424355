package main

import (
	"errors"
	"fmt"
	"strings"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "add", "serve")
	Cause       string   // The underlying cause (e.g., "record does not exist")
	Details     string   // Additional technical details
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}

	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}

	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError creates an error for malformed arguments
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// NewRejectedError reports a state-1 envelope
func NewRejectedError(operation, message string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       message,
		Suggestions: suggestions,
	}
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation string, underlying error, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       "configuration error",
		Details:     underlying.Error(),
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// NewStoreError creates an error for store-related issues
func NewStoreError(operation string, underlying error, suggestions ...string) *CLIError {
	cause := "store operation failed"
	details := ""

	if underlying != nil {
		details = underlying.Error()

		errStr := strings.ToLower(underlying.Error())
		switch {
		case strings.Contains(errStr, "no such file"):
			cause = "database file not found"
		case strings.Contains(errStr, "permission denied"):
			cause = "insufficient permissions to access database"
		case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "acquire lock"):
			cause = "database is currently locked by another process"
		case strings.Contains(errStr, "unknown field"):
			cause = "field is not part of the model"
		case strings.Contains(errStr, "invalid"), strings.Contains(errStr, "reserved"):
			cause = "invalid data provided"
		}
	}

	return &CLIError{
		Operation:   operation,
		Cause:       cause,
		Details:     details,
		Suggestions: suggestions,
		Underlying:  underlying,
	}
}

// WrapError wraps an existing error with CLI-friendly context
func WrapError(operation string, err error, suggestions ...string) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	return NewStoreError(operation, err, suggestions...)
}

// CommonSuggestions are reused across commands
var CommonSuggestions = struct {
	CheckDB     string
	CheckID     string
	CheckConfig string
	CheckFields string
	RunHelp     string
	CheckPerms  string
}{
	CheckDB:     "Verify --db points to a valid store file",
	CheckID:     "Verify the record id exists (try 'query' first)",
	CheckConfig: "Check your configuration file or NANOCRUD_* environment variables",
	CheckFields: "Pass fields as key=value pairs",
	RunHelp:     "Run command with --help for usage information",
	CheckPerms:  "Check file permissions and directory access",
}
