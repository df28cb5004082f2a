package renderer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/term"

	"github.com/a2y-d5l/fpipe/engine"
)

// FormatExitError formats a process exit error into a human-readable string.
// This function extracts detailed information from exec.ExitError to provide
// meaningful status messages.
//
// Return values:
//   - "ok": Process exited successfully (err == nil)
//   - "error: <msg>": Generic error (not an exec.ExitError)
//   - "exit code N": Process exited with code N
//   - "killed by signal SIG (exit code N)": Process was terminated by signal
//
// Example output:
//   - FormatExitError(nil) → "ok"
//   - FormatExitError(exit code 1) → "exit code 1"
//   - FormatExitError(SIGKILL) → "killed by signal killed (exit code -1)"
func FormatExitError(err error) string {
	if err == nil {
		return "ok"
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Sprintf("error: %v", err)
	}

	exitCode := exitErr.ExitCode()

	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return fmt.Sprintf("killed by signal %v (exit code %d)", status.Signal(), exitCode)
		}
	}

	return fmt.Sprintf("exit code %d", exitCode)
}

// FormatResult describes an executor Result for diagnostics.
//
// Example output:
//   - no process spawned → "no-op"
//   - zero exit → "ok"
//   - non-zero exit → "exit code 1"
//   - spawn failure → "error: spawn nope: exec: \"nope\": executable file not found in $PATH"
func FormatResult(res engine.Result) string {
	switch res.Outcome {
	case engine.OutcomeNoOp:
		return "no-op"
	case engine.OutcomeFailed:
		return FormatExitError(res.Err)
	default:
		return FormatExitError(res.ExitErr)
	}
}

// WriteSummary prints a concise summary of a run.
// It is written to the diagnostic stream to keep it separate from emitted
// lines, so it stays visible when stdout is piped.
//
// Format:
//
//	Summary:
//	  - read: 3
//	  - emitted: 2
//	  - skipped: 1
//	  - errors: 0
func WriteSummary(w io.Writer, s Stats) {
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  - read: %d\n", s.Read)
	fmt.Fprintf(w, "  - emitted: %d\n", s.Emitted)
	fmt.Fprintf(w, "  - skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "  - errors: %d\n", s.Reported)
}

// IsTerminal reports whether f is attached to an interactive terminal.
//
// Returns true for interactive sessions and SSH sessions with a PTY.
// Returns false for pipes, redirected files, and a nil f.
//
// Example usage:
//
//	if renderer.IsTerminal(os.Stdin) {
//	    logger.Info("reading lines from the terminal; end input with Ctrl-D")
//	}
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
