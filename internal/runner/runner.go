// Package runner executes external OS commands (systemctl, sc, auditpol,
// wevtutil, ...) with a timeout and classifies failures. Command failures are
// absorbed into the Result so callers can continue with partial data.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// FailureKind classifies why a command failed to execute.
type FailureKind int

const (
	FailureNone       FailureKind = iota // no failure (ExitCode == 0)
	FailureTimeout                       // killed by timeout
	FailurePermission                    // access denied / permission denied
	FailureExit                          // command returned non-zero exit code
	FailureNotFound                      // command not found
	FailureUnknown                       // unclassified error
)

// String returns a short human-readable label for the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTimeout:
		return "timeout"
	case FailurePermission:
		return "permission_denied"
	case FailureExit:
		return "exit_error"
	case FailureNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result holds the output of a single command execution.
type Result struct {
	// Name identifies the check or probe that ran the command.
	Name string
	// Stdout is the raw stdout output.
	Stdout []byte
	// Stderr is the raw stderr output.
	Stderr []byte
	// ExitCode is the process exit code (-1 if killed).
	ExitCode int
	// Duration is the actual execution time.
	Duration time.Duration
	// Err is non-nil if the command failed to execute or exited non-zero.
	Err error
	// TimedOut is true if the command was killed due to timeout.
	TimedOut bool
	// FailureKind classifies the reason for failure.
	FailureKind FailureKind
	// StartedAt is the UTC timestamp when execution started.
	StartedAt time.Time
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool { return r.Err == nil && r.ExitCode == 0 }

// Text returns stdout as a trimmed string.
func (r Result) Text() string { return strings.TrimSpace(string(r.Stdout)) }

// Run executes command with args under the given timeout.
func Run(ctx context.Context, name string, timeout time.Duration, command string, args ...string) Result {
	start := time.Now()
	result := Result{
		Name:      name,
		StartedAt: start.UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		result.Err = fmt.Errorf("timeout after %s", timeout)
		result.FailureKind = FailureTimeout
		return result
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Err = fmt.Errorf("exec %s: %w", command, err)
		classifyFailure(&result)
		return result
	}

	result.ExitCode = 0
	result.FailureKind = FailureNone
	return result
}

// classifyFailure sets FailureKind based on exit code and stderr content.
func classifyFailure(result *Result) {
	if result.TimedOut {
		result.FailureKind = FailureTimeout
		return
	}
	if result.Err == nil {
		result.FailureKind = FailureNone
		return
	}
	if errors.Is(result.Err, exec.ErrNotFound) {
		result.FailureKind = FailureNotFound
		return
	}
	switch result.ExitCode {
	case 5: // Windows: ERROR_ACCESS_DENIED
		result.FailureKind = FailurePermission
	case 126: // POSIX: cannot execute (permission denied)
		result.FailureKind = FailurePermission
	case 127: // POSIX: command not found
		result.FailureKind = FailureNotFound
	case 9009: // Windows: command not recognized
		result.FailureKind = FailureNotFound
	case -1: // OS-level exec failure, not a command exit code
		result.FailureKind = FailureUnknown
	default:
		if result.ExitCode > 0 {
			stderr := strings.ToLower(string(result.Stderr))
			if strings.Contains(stderr, "access denied") ||
				strings.Contains(stderr, "access is denied") ||
				strings.Contains(stderr, "permission denied") {
				result.FailureKind = FailurePermission
			} else {
				result.FailureKind = FailureExit
			}
		} else {
			result.FailureKind = FailureUnknown
		}
	}
}
