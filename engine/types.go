// Package engine implements the per-line subprocess orchestration used by fpipe.
// It is decoupled from line reading and output writing, which live in the
// runner and renderer packages.
//
// The engine handles:
//   - Template resolution (how a line is injected into the child command)
//   - Request construction per line (argv, stdin delivery, stdout handling)
//   - Subprocess execution with tolerant handling of early-closing children
//   - Turning an exit outcome into an output decision
//
// Basic usage:
//
//	tmpl := engine.ParseTemplate([]string{"grep", "-q", "foo"})
//	policy := engine.Policy{Mode: tmpl.Mode(), Negate: false, Map: false}
//	ex := engine.NewExecutor(os.Stdout, os.Stderr)
//
//	req := tmpl.Build(line, engine.StdoutModeFor(quiet, mapped))
//	res := ex.Run(ctx, req)
//	switch dec := policy.Decide(res); dec.Action {
//	case engine.ActionEmitLine:
//	    // write line + "\n"
//	case engine.ActionEmitOutput:
//	    // write res.Output verbatim
//	}
package engine

import (
	"io"
)

// Placeholder is the template token replaced by the current line.
const Placeholder = "{}"

// Mode describes how the template's program token is resolved.
// It is derived once from the template and never changes during a run.
type Mode int

const (
	// ModePassThrough means no command is configured; every line is emitted unchanged.
	ModePassThrough Mode = iota

	// ModeTemplated means the program token is a literal.
	ModeTemplated

	// ModeSelfExecuting means the program token is the placeholder: the line
	// itself names the program and its leading arguments.
	ModeSelfExecuting
)

func (m Mode) String() string {
	switch m {
	case ModePassThrough:
		return "pass-through"
	case ModeTemplated:
		return "templated"
	case ModeSelfExecuting:
		return "self-executing"
	default:
		return "unknown"
	}
}

// Delivery describes how the current line reaches the child.
// The two modes are mutually exclusive.
type Delivery int

const (
	// DeliverStdin writes the line to the child's standard input.
	DeliverStdin Delivery = iota

	// DeliverSubstitution replaces every placeholder token with the line.
	DeliverSubstitution
)

func (d Delivery) String() string {
	switch d {
	case DeliverStdin:
		return "stdin"
	case DeliverSubstitution:
		return "substitution"
	default:
		return "unknown"
	}
}

// StdoutMode controls where the child's standard output goes.
type StdoutMode int

const (
	// StdoutInherit connects the child's stdout to the executor's passthrough writer.
	StdoutInherit StdoutMode = iota

	// StdoutDiscard drops the child's stdout.
	StdoutDiscard

	// StdoutCapture collects the child's stdout into Result.Output.
	StdoutCapture
)

// StdoutModeFor maps the quiet and map switches to a StdoutMode.
// Map wins over quiet: captured output is never discarded.
func StdoutModeFor(quiet, mapped bool) StdoutMode {
	switch {
	case mapped:
		return StdoutCapture
	case quiet:
		return StdoutDiscard
	default:
		return StdoutInherit
	}
}

// Request is a fully resolved subprocess invocation for a single line.
// A fresh Request is built for every line and discarded afterwards.
type Request struct {
	// Program is the executable to run (absolute path or a name found in PATH).
	Program string

	// Input is the line text written to stdin when AttachStdin is set.
	// It is written without a trailing newline.
	Input string

	// Args are the arguments passed to Program, not including Program itself.
	Args []string

	// Stdout selects discard, capture or passthrough for the child's stdout.
	Stdout StdoutMode

	// AttachStdin reports whether the child's stdin is a pipe fed with Input.
	// When false the child reads from the null device.
	AttachStdin bool

	// NoOp marks a line that resolves to no program at all. No process is
	// spawned and the line counts as a success with no output.
	NoOp bool
}

// Outcome tags the kind of Result returned by the executor.
type Outcome int

const (
	// OutcomeExited means the child ran to completion; Result.Success holds the verdict.
	OutcomeExited Outcome = iota

	// OutcomeNoOp means no process was spawned.
	OutcomeNoOp

	// OutcomeFailed means the command could not be run or its I/O failed;
	// Result.Err holds an *ExecError.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExited:
		return "exited"
	case OutcomeNoOp:
		return "no-op"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of running one Request.
type Result struct {
	// Err is set when Outcome is OutcomeFailed.
	Err error

	// ExitErr holds the *exec.ExitError for a non-zero exit, nil otherwise.
	// A non-zero exit is not an execution error.
	ExitErr error

	// Output holds the captured stdout when the request asked for capture.
	Output []byte

	// Outcome tags which of the other fields are meaningful.
	Outcome Outcome

	// Success reports a zero exit status. Only meaningful for OutcomeExited.
	Success bool
}

// Command is an abstraction over os/exec.Cmd to enable testing and alternative
// implementations. The standard implementation wraps exec.Cmd.
//
// Pipes must be requested and writers set before Start. The caller must
// finish reading StdoutPipe before calling Wait.
type Command interface {
	// StdinPipe returns a writer connected to the command's standard input.
	StdinPipe() (io.WriteCloser, error)

	// StdoutPipe returns a reader for the command's standard output.
	StdoutPipe() (io.ReadCloser, error)

	// SetStdout directs standard output to w. A nil writer discards it.
	SetStdout(w io.Writer)

	// SetStderr directs standard error to w. A nil writer discards it.
	SetStderr(w io.Writer)

	// Start begins execution without waiting for it to complete.
	// It returns an error if the program cannot be launched.
	Start() error

	// Wait waits for the command to exit. It returns nil for exit status 0,
	// *exec.ExitError for a non-zero status, and other errors for I/O failures.
	Wait() error
}
