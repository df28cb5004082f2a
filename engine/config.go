package engine

import (
	"context"
	"io"
)

// CommandFactory creates Command instances from Requests.
// This abstraction enables dependency injection for testing and alternative
// command implementations.
//
// The factory receives:
//   - ctx: Context for cancellation; the default factory kills the child when it is done
//   - req: Request describing the program and its arguments
//
// Standard usage (production):
//
//	factory := engine.DefaultCommandFactory
//
// Testing with mocks:
//
//	factory := func(ctx context.Context, req engine.Request) (engine.Command, error) {
//	    return &MockCommand{stdout: "x\n"}, nil
//	}
type CommandFactory func(ctx context.Context, req Request) (Command, error)

// Executor runs one Request at a time and reports a Result.
// It never runs two children concurrently; the only concurrency is the
// stdin feeder that runs alongside stdout collection for a single child.
//
// Basic usage:
//
//	ex := engine.NewExecutor(os.Stdout, os.Stderr)
//	res := ex.Run(ctx, req)
//
// With custom command factory (for testing):
//
//	ex := engine.NewExecutor(&out, &errOut).WithCommandFactory(mockFactory)
type Executor struct {
	// CommandFactory creates commands from Requests.
	// If nil, uses DefaultCommandFactory which creates real os/exec commands.
	CommandFactory CommandFactory

	// Stdout receives the child's standard output for StdoutInherit requests.
	// It should be the same stream the tool writes emitted lines to, so
	// child output interleaves live with emitted lines.
	Stdout io.Writer

	// Stderr receives the child's standard error. It is always propagated.
	Stderr io.Writer
}

// NewExecutor creates an Executor that passes child stdout through to stdout
// and child stderr through to stderr.
//
// The returned executor will use DefaultCommandFactory unless overridden with
// WithCommandFactory().
func NewExecutor(stdout, stderr io.Writer) *Executor {
	return &Executor{
		Stdout:         stdout,
		Stderr:         stderr,
		CommandFactory: nil, // Will use DefaultCommandFactory
	}
}

// WithCommandFactory returns a copy of the executor with a custom command factory.
// A nil factory restores DefaultCommandFactory.
//
// Example (testing):
//
//	mockFactory := func(ctx context.Context, req engine.Request) (engine.Command, error) {
//	    return NewMockCommand().WithExitError(exitOne), nil
//	}
//	ex := engine.NewExecutor(&out, &errOut).WithCommandFactory(mockFactory)
func (ex *Executor) WithCommandFactory(factory CommandFactory) *Executor {
	return &Executor{
		Stdout:         ex.Stdout,
		Stderr:         ex.Stderr,
		CommandFactory: factory,
	}
}
