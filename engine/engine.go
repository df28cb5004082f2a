package engine

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
)

// Run executes a single Request and reports its Result.
// This is the main entry point for the Executor.
//
// Lifecycle:
//  1. Create command using CommandFactory
//  2. Set up stdin pipe, stdout pipe or passthrough writer as requested
//  3. Start the process
//  4. Feed the line to stdin in a goroutine while draining stdout here
//  5. Join the feeder, then wait for the process to exit
//
// Feeding and draining run concurrently so a child that fills its stdout
// pipe before consuming all of its input cannot deadlock the executor.
//
// Error handling:
//   - Command creation and start errors: OutcomeFailed with OpSpawn
//   - Broken pipe while feeding stdin: ignored, the exit status decides
//   - Other stdin errors: OutcomeFailed with OpStdin
//   - Stdout read errors: OutcomeFailed with OpStdout
//   - Non-zero exit: OutcomeExited with Success=false (not an error)
//   - Other wait errors: OutcomeFailed with OpWait
//
// A NoOp request returns OutcomeNoOp without spawning anything.
func (ex *Executor) Run(ctx context.Context, req Request) Result {
	if req.NoOp {
		return Result{Outcome: OutcomeNoOp}
	}

	factory := ex.CommandFactory
	if factory == nil {
		factory = DefaultCommandFactory
	}

	cmd, err := factory(ctx, req)
	if err != nil {
		return failed(req, OpSpawn, err)
	}
	cmd.SetStderr(ex.Stderr)

	var stdin io.WriteCloser
	if req.AttachStdin {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return failed(req, OpStdin, err)
		}
	}

	var stdout io.ReadCloser
	switch req.Stdout {
	case StdoutCapture:
		stdout, err = cmd.StdoutPipe()
		if err != nil {
			return failed(req, OpStdout, err)
		}
	case StdoutDiscard:
		cmd.SetStdout(nil)
	default:
		cmd.SetStdout(ex.Stdout)
	}

	if startErr := cmd.Start(); startErr != nil {
		return failed(req, OpSpawn, startErr)
	}

	var (
		feedWG  sync.WaitGroup
		feedErr error
	)
	if stdin != nil {
		feedWG.Go(func() {
			feedErr = feed(stdin, req.Input)
		})
	}

	var (
		output   []byte
		drainErr error
	)
	if stdout != nil {
		output, drainErr = io.ReadAll(stdout)
		if drainErr != nil {
			// Unblock a child stuck writing to a pipe nobody reads.
			_ = stdout.Close()
		}
	}

	feedWG.Wait()
	waitErr := cmd.Wait()

	switch {
	case feedErr != nil:
		return failed(req, OpStdin, feedErr)
	case drainErr != nil:
		return failed(req, OpStdout, drainErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return failed(req, OpWait, waitErr)
		}
		return Result{Outcome: OutcomeExited, Success: false, ExitErr: waitErr, Output: output}
	}

	return Result{Outcome: OutcomeExited, Success: true, Output: output}
}

// feed writes input to the child's stdin and closes it.
//
// The child may exit, crash, never open stdin, or read only part of the line.
// Each of those shows up here as a broken pipe and is dropped; the exit
// status alone decides the line.
func feed(w io.WriteCloser, input string) error {
	_, writeErr := io.WriteString(w, input)
	closeErr := w.Close()

	if writeErr != nil && !IsBrokenPipe(writeErr) {
		return writeErr
	}
	if closeErr != nil && !IsBrokenPipe(closeErr) {
		return closeErr
	}
	return nil
}

func failed(req Request, op Op, err error) Result {
	return Result{
		Outcome: OutcomeFailed,
		Err:     &ExecError{Program: req.Program, Op: op, Err: err},
	}
}
