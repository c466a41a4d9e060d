package cli

import (
	"errors"
	"fmt"
)

// Process exit codes returned by sentinel.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitViolations = 3
)

// ConfigError reports an invalid flag or configuration value. It maps to
// ExitUsage.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// CommandError wraps the failure of a sentinel subcommand.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return e.Command + ": " + e.Err.Error()
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitError ends the process with Code without being a failure of the command
// itself, for example when `sentinel evaluate --fail-on-violations` finds
// violations.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return e.Reason
}

// NewConfigError returns a ConfigError for field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError wraps err with the name of the failing command.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	var cfgErr *ConfigError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.As(err, &cfgErr):
		return ExitUsage
	}
	return ExitFailure
}
