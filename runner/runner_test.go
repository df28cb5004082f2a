package runner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2y-d5l/fpipe/engine"
	"github.com/a2y-d5l/fpipe/renderer"
	"github.com/a2y-d5l/fpipe/runner"
)

// harness wires a Config to in-memory streams.
type harness struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
	logs   bytes.Buffer
}

func (h *harness) config(input string, command ...string) runner.Config {
	cfg := runner.DefaultConfig()
	cfg.Stdin = strings.NewReader(input)
	cfg.Stdout = &h.stdout
	cfg.Stderr = &h.stderr
	cfg.Logger = slog.New(slog.NewTextHandler(&h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg.Command = command
	return cfg
}

func requirePrograms(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			t.Skipf("%s not available: %v", name, err)
		}
	}
}

func TestPassThrough(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"unterminated last line", "abc\ndef", "abc\ndef\n"},
		{"terminated", "abc\ndef\n", "abc\ndef\n"},
		{"blank lines kept", "\n\nx\n", "\n\nx\n"},
		{"crlf normalized", "a\r\nb\r\n", "a\nb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h harness
			cfg := h.config(tt.input)
			cfg.Negate = true // no effect without a command
			cfg.Map = true

			stats, err := runner.Execute(context.Background(), cfg)

			require.NoError(t, err)
			assert.Equal(t, tt.want, h.stdout.String())
			assert.Empty(t, h.stderr.String())
			assert.Equal(t, stats.Read, stats.Emitted)
		})
	}
}

func TestScenarios(t *testing.T) {
	requirePrograms(t, "true", "false", "echo", "expr")

	tests := []struct {
		name    string
		input   string
		command []string
		quiet   bool
		negate  bool
		mapped  bool
		want    string
	}{
		{"failing command drops everything", "abc\ndef", []string{"false"}, false, false, false, ""},
		{"succeeding command keeps input", "abc\ndef\n", []string{"true"}, false, false, false, "abc\ndef\n"},
		{"negated true drops everything", "abc\ndef\n", []string{"true"}, false, true, false, ""},
		{"negated false keeps input", "abc\ndef\n", []string{"false"}, false, true, false, "abc\ndef\n"},
		{"child stdout interleaves", "abc\ndef\n", []string{"echo", "x"}, false, false, false, "x\nabc\nx\ndef\n"},
		{"quiet hides child stdout", "abc\ndef\n", []string{"echo", "x"}, true, false, false, "abc\ndef\n"},
		{"map emits child stdout", "abc\ndef\n", []string{"echo", "x"}, false, false, true, "x\nx\n"},
		{"map wins over quiet", "abc\n", []string{"echo", "x"}, true, false, true, "x\n"},
		{"predicate with placeholder", "1\n2\n3\n", []string{"expr", "2", "!=", "{}"}, true, false, false, "1\n3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h harness
			cfg := h.config(tt.input, tt.command...)
			cfg.Quiet = tt.quiet
			cfg.Negate = tt.negate
			cfg.Map = tt.mapped

			require.NoError(t, runner.Run(context.Background(), cfg))
			assert.Equal(t, tt.want, h.stdout.String())
		})
	}
}

func TestMapEmitsCapturedBytesVerbatim(t *testing.T) {
	requirePrograms(t, "printf")
	var h harness
	cfg := h.config("a\nb\n", "printf", "<%s>", "{}")
	cfg.Map = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Equal(t, "<a><b>", h.stdout.String(), "no newline is added to captured output")
}

func TestMapSkipsFailedLines(t *testing.T) {
	requirePrograms(t, "sh")
	var h harness
	cfg := h.config("ok\nbad\nok\n", "sh", "-c", `echo "got $1"; [ "$1" = ok ]`, "sh", "{}")
	cfg.Map = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Equal(t, "got ok\ngot ok\n", h.stdout.String())
}

func TestLineIsWrittenToStdin(t *testing.T) {
	requirePrograms(t, "tee")
	logFile := filepath.Join(t.TempDir(), "log")

	var h harness
	cfg := h.config("abc\ndef\n", "tee", "-a", logFile)
	cfg.Quiet = true

	require.NoError(t, runner.Run(context.Background(), cfg))

	got, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got), "lines reach stdin without their newline")
	assert.Equal(t, "abc\ndef\n", h.stdout.String())
}

func TestPlaceholderSuppressesStdin(t *testing.T) {
	requirePrograms(t, "sh")
	var h harness
	// The child echoes whatever it finds on stdin; with a placeholder there is nothing.
	cfg := h.config("abc\n", "sh", "-c", `printf '[%s]' "$(cat)"`, "{}")
	cfg.Map = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Equal(t, "[]", h.stdout.String())
}

func TestSelfExecuting(t *testing.T) {
	requirePrograms(t, "echo", "true", "false")
	var h harness
	cfg := h.config("echo hi there\n\n   \ntrue\nfalse\n", "{}")
	cfg.Map = true

	stats, err := runner.Execute(context.Background(), cfg)

	require.NoError(t, err)
	// Blank lines spawn nothing and pass through; "true" maps to empty output.
	assert.Equal(t, "hi there\n\n   \n", h.stdout.String())
	assert.Equal(t, renderer.Stats{Read: 5, Emitted: 4, Skipped: 1}, stats)
}

func TestSelfExecutingErrorIsNotFatal(t *testing.T) {
	requirePrograms(t, "true")
	var h harness
	cfg := h.config("fpipe-no-such-program\ntrue\n", "{}")

	stats, err := runner.Execute(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, "true\n", h.stdout.String())
	assert.Equal(t, 1, stats.Reported)
	assert.Contains(t, h.logs.String(), "error executing command")
	assert.Contains(t, h.logs.String(), "fpipe-no-such-program")
}

func TestSelfExecutingErrorReachesStderrByDefault(t *testing.T) {
	var h harness
	cfg := h.config("fpipe-no-such-program\n", "{}")
	cfg.Logger = nil

	_, err := runner.Execute(context.Background(), cfg)

	require.NoError(t, err)
	assert.Contains(t, h.stderr.String(), "level=ERROR")
	assert.Contains(t, h.stderr.String(), "fpipe-no-such-program")
}

func TestDefaultConfigLogsErrors(t *testing.T) {
	logger := runner.DefaultConfig().Logger
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestTemplatedErrorIsFatal(t *testing.T) {
	var h harness
	cfg := h.config("a\nb\n", "fpipe-no-such-program", "{}")

	stats, err := runner.Execute(context.Background(), cfg)

	require.Error(t, err)
	var execErr *engine.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, engine.OpSpawn, execErr.Op)
	assert.Contains(t, err.Error(), "error executing command")
	assert.Equal(t, 1, stats.Read, "the run stops at the first line")
	assert.Empty(t, h.stdout.String())
}

func TestInputReadErrorIsFatal(t *testing.T) {
	var h harness
	cfg := h.config("")
	cfg.Stdin = io.MultiReader(strings.NewReader("ok\n"), iotest.ErrReader(errors.New("device gone")))

	stats, err := runner.Execute(context.Background(), cfg)

	var inputErr *runner.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Contains(t, err.Error(), "device gone")
	assert.Equal(t, "ok\n", h.stdout.String())
	assert.Equal(t, 1, stats.Emitted)
}

// closedWriter behaves like a pipe whose reader went away after limit writes.
type closedWriter struct {
	err    error
	buf    bytes.Buffer
	writes int
	limit  int
}

func (w *closedWriter) Write(p []byte) (int, error) {
	if w.writes >= w.limit {
		return 0, w.err
	}
	w.writes++
	return w.buf.Write(p)
}

func TestBrokenDownstreamEndsCleanly(t *testing.T) {
	var h harness
	cfg := h.config("1\n2\n3\n4\n")
	out := &closedWriter{limit: 2, err: &os.PathError{Op: "write", Path: "/dev/stdout", Err: syscall.EPIPE}}
	cfg.Stdout = out
	cfg.ShowSummary = true

	err := runner.Run(context.Background(), cfg)

	require.NoError(t, err)
	assert.Equal(t, "1\n2\n", out.buf.String())
	assert.Contains(t, h.stderr.String(), "read: 3")
}

func TestOtherWriteErrorIsFatal(t *testing.T) {
	var h harness
	cfg := h.config("1\n2\n")
	cfg.Stdout = &closedWriter{limit: 0, err: errors.New("no space left")}

	err := runner.Run(context.Background(), cfg)

	var writeErr *renderer.WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Empty(t, h.stderr.String(), "no summary after a fatal error")
}

func TestCancelledContextStopsBeforeReading(t *testing.T) {
	var h harness
	cfg := h.config("a\nb\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := runner.Execute(ctx, cfg)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Read)
}

func TestSummary(t *testing.T) {
	requirePrograms(t, "expr")
	var h harness
	cfg := h.config("1\n2\n3\n", "expr", "2", "!=", "{}")
	cfg.Quiet = true
	cfg.ShowSummary = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Equal(t, "Summary:\n  - read: 3\n  - emitted: 2\n  - skipped: 1\n  - errors: 0\n", h.stderr.String())
}

// cancelOnWait is a Command whose Wait cancels the run, as an interrupt
// arriving while the child runs would, and reports the kill as a non-zero exit.
type cancelOnWait struct {
	cancel  context.CancelFunc
	exitErr error
}

func (c *cancelOnWait) StdinPipe() (io.WriteCloser, error) { return nil, errors.New("no stdin") }
func (c *cancelOnWait) StdoutPipe() (io.ReadCloser, error) { return nil, errors.New("no stdout") }
func (c *cancelOnWait) SetStdout(io.Writer)                {}
func (c *cancelOnWait) SetStderr(io.Writer)                {}
func (c *cancelOnWait) Start() error                       { return nil }

func (c *cancelOnWait) Wait() error {
	c.cancel()
	return c.exitErr
}

func TestCancelDuringChildEmitsNothing(t *testing.T) {
	requirePrograms(t, "false")
	exitErr := exec.Command("false").Run()
	require.Error(t, exitErr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var h harness
	cfg := h.config("x\ny\n", "tool", "{}")
	cfg.Negate = true
	cfg.CommandFactory = func(context.Context, engine.Request) (engine.Command, error) {
		return &cancelOnWait{cancel: cancel, exitErr: exitErr}, nil
	}

	stats, err := runner.Execute(ctx, cfg)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.stdout.String(), "the killed child is not decided")
	assert.Equal(t, 1, stats.Read)
	assert.Zero(t, stats.Emitted)
}

// TestMockedCommands drives the loop through a fake command factory.
func TestMockedCommands(t *testing.T) {
	var seen []engine.Request
	factory := func(_ context.Context, req engine.Request) (engine.Command, error) {
		seen = append(seen, req)
		return nil, errors.New("factory refused")
	}

	var h harness
	cfg := h.config("x\n", "tool", "--flag")
	cfg.CommandFactory = factory

	_, err := runner.Execute(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory refused")
	require.Len(t, seen, 1)
	assert.Equal(t, "tool", seen[0].Program)
	assert.Equal(t, []string{"--flag"}, seen[0].Args)
	assert.True(t, seen[0].AttachStdin)
	assert.Equal(t, "x", seen[0].Input)
}

func TestLargeLinesThroughCapture(t *testing.T) {
	requirePrograms(t, "cat")
	line := strings.Repeat("q", 3*1024*1024)
	var h harness
	cfg := h.config(line+"\nshort\n", "cat")
	cfg.Map = true

	require.NoError(t, runner.Run(context.Background(), cfg))
	assert.Equal(t, line+"short", h.stdout.String())
}
