package engine_test

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/fpipe/engine"
)

// MockCommand is a test double that implements the engine.Command interface.
type MockCommand struct {
	exitErr      error
	startErr     error
	stdinErr     error
	stdinPipeErr error
	stdoutErr    error
	passthrough  io.Writer
	stdout       string
	stdin        bytes.Buffer
	mu           sync.Mutex
	started      bool
	waited       bool
	stdinClosed  bool
	stdoutSet    bool
	piped        bool
}

func NewMockCommand() *MockCommand {
	return &MockCommand{}
}

func (m *MockCommand) WithStdout(s string) *MockCommand {
	m.stdout = s
	return m
}

func (m *MockCommand) WithExitError(err error) *MockCommand {
	m.exitErr = err
	return m
}

func (m *MockCommand) WithStartError(err error) *MockCommand {
	m.startErr = err
	return m
}

// WithStdinWriteError makes every write to the stdin pipe fail with err.
func (m *MockCommand) WithStdinWriteError(err error) *MockCommand {
	m.stdinErr = err
	return m
}

func (m *MockCommand) WithStdinPipeError(err error) *MockCommand {
	m.stdinPipeErr = err
	return m
}

// WithStdoutReadError makes reads from the stdout pipe fail with err.
func (m *MockCommand) WithStdoutReadError(err error) *MockCommand {
	m.stdoutErr = err
	return m
}

func (m *MockCommand) StdinPipe() (io.WriteCloser, error) {
	if m.stdinPipeErr != nil {
		return nil, m.stdinPipeErr
	}
	return &mockWriteCloser{cmd: m}, nil
}

func (m *MockCommand) StdoutPipe() (io.ReadCloser, error) {
	m.piped = true
	if m.stdoutErr != nil {
		return io.NopCloser(&errReader{err: m.stdoutErr}), nil
	}
	return io.NopCloser(strings.NewReader(m.stdout)), nil
}

func (m *MockCommand) SetStdout(w io.Writer) {
	m.stdoutSet = true
	m.passthrough = w
}

func (m *MockCommand) SetStderr(io.Writer) {}

func (m *MockCommand) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return m.startErr
	}
	m.started = true
	if !m.piped && m.passthrough != nil {
		_, _ = io.WriteString(m.passthrough, m.stdout)
	}
	return nil
}

func (m *MockCommand) Wait() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.waited = true
	return m.exitErr
}

func (m *MockCommand) WasStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *MockCommand) WasWaited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waited
}

// Passthrough returns the writer given to SetStdout and whether it was called.
func (m *MockCommand) Passthrough() (io.Writer, bool) {
	return m.passthrough, m.stdoutSet
}

func (m *MockCommand) StdinContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stdin.String()
}

func (m *MockCommand) StdinClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stdinClosed
}

// mockWriteCloser records what the executor feeds to the child.
type mockWriteCloser struct {
	cmd *MockCommand
}

func (w *mockWriteCloser) Write(p []byte) (int, error) {
	w.cmd.mu.Lock()
	defer w.cmd.mu.Unlock()
	if w.cmd.stdinErr != nil {
		return 0, w.cmd.stdinErr
	}
	return w.cmd.stdin.Write(p)
}

func (w *mockWriteCloser) Close() error {
	w.cmd.mu.Lock()
	defer w.cmd.mu.Unlock()
	w.cmd.stdinClosed = true
	return nil
}

type errReader struct {
	err error
}

func (r *errReader) Read([]byte) (int, error) {
	return 0, r.err
}

// mockFactory returns a factory that always hands out cmd and records requests.
func mockFactory(cmd engine.Command, seen *[]engine.Request) engine.CommandFactory {
	return func(_ context.Context, req engine.Request) (engine.Command, error) {
		if seen != nil {
			*seen = append(*seen, req)
		}
		return cmd, nil
	}
}

// exitError produces a real *exec.ExitError with the given status.
func exitError(t *testing.T, code string) error {
	t.Helper()
	err := exec.Command("sh", "-c", "exit "+code).Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	return err
}
