package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("output", "unknown format")
	want := "invalid output: unknown format"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("store unavailable")
	err := NewCommandError("workflow show", inner)

	if !errors.Is(err, inner) {
		t.Error("CommandError should unwrap to the inner error")
	}
	want := "workflow show: store unavailable"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "config error", err: NewConfigError("output", "bad"), want: ExitUsage},
		{name: "wrapped config error", err: NewCommandError("evaluate", NewConfigError("data", "missing")), want: ExitUsage},
		{name: "exit error", err: &ExitError{Code: ExitViolations, Reason: "violations found"}, want: ExitViolations},
		{name: "wrapped exit error", err: fmt.Errorf("evaluate: %w", &ExitError{Code: ExitViolations}), want: ExitViolations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
