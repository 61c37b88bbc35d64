package cli

import (
	"errors"
	"fmt"

	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // runtime or storage failure
	ExitUsage   = 2 // invalid flags, config or input
	ExitPartial = 3 // the command ran but left work undone
)

// FlagError reports an invalid command-line flag.
type FlagError struct {
	Flag    string
	Message string
}

func (e *FlagError) Error() string {
	return fmt.Sprintf("invalid --%s: %s", e.Flag, e.Message)
}

// NewFlagError creates a new FlagError.
func NewFlagError(flag, message string) *FlagError {
	return &FlagError{
		Flag:    flag,
		Message: message,
	}
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a CommandError whose exit code is derived from err.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Code:    ExitCode(err),
		Err:     err,
	}
}

// NewPartialError reports a command that completed with leftover work,
// such as a sweep that could not delete every stale record.
func NewPartialError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Code:    ExitPartial,
		Err:     err,
	}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}

	var (
		flagErr       *FlagError
		cfgErr        config.ValidationError
		validationErr *prospect.ValidationError
	)
	switch {
	case errors.As(err, &flagErr), errors.As(err, &cfgErr), errors.As(err, &validationErr):
		return ExitUsage
	default:
		return ExitFailure
	}
}
