package main

import (
	"errors"

	"github.com/spf13/cobra"

	"dirmanage/internal/exitcodes"
	"dirmanage/internal/safety"
)

// exitError carries the process exit code for err.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitcodes.InvalidConfig, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.As(err, &ee):
		return ee.code
	case errors.Is(err, safety.ErrProtectedPath),
		errors.Is(err, safety.ErrOutsideAllowed),
		errors.Is(err, safety.ErrTraversal),
		errors.Is(err, safety.ErrSymlinkEscape),
		errors.Is(err, safety.ErrInvalidPath):
		return exitcodes.SafetyViolation
	default:
		return exitcodes.RuntimeError
	}
}

// checkArgs reports argument count mistakes as usage errors.
func checkArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}
