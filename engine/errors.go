package engine

import (
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Op names the stage of subprocess execution that failed.
type Op string

const (
	OpSpawn  Op = "spawn"
	OpStdin  Op = "stdin"
	OpStdout Op = "stdout"
	OpWait   Op = "wait"
)

// ExecError reports that a command could not be run or that its I/O failed.
// It is distinct from a non-zero exit, which is a normal Result.
type ExecError struct {
	Err     error
	Program string
	Op      Op
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Program, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsBrokenPipe reports whether err means the reading end of a pipe is gone.
// It matches EPIPE from OS pipes and io.ErrClosedPipe from in-memory pipes.
func IsBrokenPipe(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
