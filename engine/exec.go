package engine

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// DefaultCommandFactory creates real os/exec commands for process execution.
// This is the production implementation of CommandFactory that actually spawns
// system processes.
//
// The factory:
//   - Creates an exec.Cmd using the request's Program and Args
//   - Wraps it in execCommand to implement the Command interface
//   - Does not modify environment or working directory (uses parent process settings)
//   - Leaves stdin on the null device unless the executor asks for a pipe
//
// The program name is resolved against PATH when the command is started,
// so an unknown program surfaces as a Start error.
//
// This factory is used automatically when Executor.CommandFactory is nil.
func DefaultCommandFactory(ctx context.Context, req Request) (Command, error) {
	if req.Program == "" {
		return nil, errors.New("empty program name")
	}
	//nolint:gosec // G204: running the configured command is the purpose of this tool
	return &execCommand{cmd: exec.CommandContext(ctx, req.Program, req.Args...)}, nil
}

// execCommand wraps exec.Cmd to implement the Command interface.
type execCommand struct {
	cmd *exec.Cmd
}

func (e *execCommand) StdinPipe() (io.WriteCloser, error) {
	return e.cmd.StdinPipe()
}

func (e *execCommand) StdoutPipe() (io.ReadCloser, error) {
	return e.cmd.StdoutPipe()
}

// SetStdout sets the child's stdout. exec.Cmd treats a nil writer as the null device.
func (e *execCommand) SetStdout(w io.Writer) {
	e.cmd.Stdout = w
}

func (e *execCommand) SetStderr(w io.Writer) {
	e.cmd.Stderr = w
}

func (e *execCommand) Start() error {
	return e.cmd.Start()
}

func (e *execCommand) Wait() error {
	if e.cmd.Process == nil {
		return errors.New("command not started")
	}
	return e.cmd.Wait()
}
