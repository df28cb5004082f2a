// Package runner drives the line loop: it reads lines, runs each one through
// the engine, and writes the decided output through the renderer's Sink.
//
// This package ties together the engine (template, execution, decision) and
// renderer (output sink, summary) layers behind a single entry point.
//
// The loop is strictly sequential: the next line is not read until the
// previous line has been executed, decided and written.
//
//	Reading ──EOF──────────────────────────────▶ Done(success)
//	   │ line
//	   ▼
//	Executing ──fatal exec error──────────────▶ Done(error)
//	   │ result            └─non-fatal─▶ report ─▶ Reading
//	   ▼
//	Deciding ──skip───────────────────────────▶ Reading
//	   │ emit
//	   ▼
//	Writing ──broken pipe─────────────────────▶ Done(success)
//	   │ ok        └─other error─────────────▶ Done(error)
//	   ▼
//	Reading
//
// Quick start:
//
//	cfg := runner.DefaultConfig()
//	cfg.Command = []string{"grep", "-q", "needle"}
//	if err := runner.Run(ctx, cfg); err != nil {
//	    fmt.Fprintln(os.Stderr, "fpipe:", err)
//	    os.Exit(1)
//	}
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/a2y-d5l/fpipe/engine"
	"github.com/a2y-d5l/fpipe/renderer"
)

// Config is the already-validated configuration record consumed by the loop.
//
// Example:
//
//	cfg := runner.DefaultConfig()
//	cfg.Command = []string{"test", "-d", "{}"}
//	cfg.Negate = true
type Config struct {
	// Stdin is the line source.
	Stdin io.Reader

	// Stdout receives emitted lines and, unless Quiet or Map is set, the
	// child's own stdout.
	Stdout io.Writer

	// Stderr receives the child's stderr and the optional summary.
	Stderr io.Writer

	// Logger receives diagnostics. Non-fatal execution errors in
	// self-executing mode are logged at error level. If nil, a warn-level
	// text logger on Stderr is used.
	Logger *slog.Logger

	// CommandFactory overrides how child commands are created.
	// If nil, engine.DefaultCommandFactory is used.
	CommandFactory engine.CommandFactory

	// Command is the command template. The first token may be the
	// placeholder "{}". An empty template disables execution and every
	// line is emitted unchanged.
	Command []string

	// Quiet discards the child's stdout.
	Quiet bool

	// Negate flips the success of every child exit.
	Negate bool

	// Map emits the child's captured stdout instead of the line, only on success.
	Map bool

	// ShowSummary writes line counters to Stderr after a run that did not fail.
	ShowSummary bool
}

// DefaultConfig returns a Config wired to the process's standard streams
// with a text logger on os.Stderr.
//
// Defaults:
//   - Stdin/Stdout/Stderr: os.Stdin, os.Stdout, os.Stderr
//   - Logger: warn level and above, text format, on os.Stderr
//   - Command: nil (pass-through)
//   - Quiet, Negate, Map, ShowSummary: false
func DefaultConfig() Config {
	return Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: newLogger(os.Stderr),
	}
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// InputError reports a failure reading the line source.
type InputError struct {
	Err error
}

// Error implements the error interface.
func (e *InputError) Error() string {
	return fmt.Sprintf("read input: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *InputError) Unwrap() error {
	return e.Err
}

// Run executes the line loop and writes the summary if configured.
//
// Returns nil when input ends or the downstream reader goes away. Any other
// return value is fatal: an *InputError, an *engine.ExecError from a
// templated command, a *renderer.WriteError, or the context's error.
func Run(ctx context.Context, cfg Config) error {
	stats, err := Execute(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.ShowSummary {
		renderer.WriteSummary(stderrOf(cfg), stats)
	}
	return nil
}

// Execute runs the line loop and returns the counters for the run.
// The counters are valid even when an error is returned.
//
// Orchestration:
//  1. Parse the template once
//  2. Read a line; stop cleanly at end of input
//  3. Build the request, run it, decide
//  4. Write the decided bytes; a broken pipe ends the run cleanly
//  5. Repeat
//
//nolint:gocognit,cyclop // The loop mirrors the state machine in the package doc
func Execute(ctx context.Context, cfg Config) (renderer.Stats, error) {
	var stats renderer.Stats

	logger := cfg.Logger
	if logger == nil {
		logger = newLogger(stderrOf(cfg))
	}
	stdout := cfg.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	if cfg.Stdin == nil {
		return stats, &InputError{Err: errors.New("no input stream")}
	}

	tmpl := engine.ParseTemplate(cfg.Command)
	policy := engine.Policy{Mode: tmpl.Mode(), Negate: cfg.Negate, Map: cfg.Map}
	stdoutMode := engine.StdoutModeFor(cfg.Quiet, cfg.Map)
	ex := engine.NewExecutor(stdout, stderrOf(cfg)).WithCommandFactory(cfg.CommandFactory)
	sink := renderer.NewSink(stdout)
	lines := bufio.NewReader(cfg.Stdin)

	logger.Debug("starting",
		"mode", tmpl.Mode().String(),
		"delivery", tmpl.Delivery().String(),
		"negate", cfg.Negate,
		"map", cfg.Map,
		"quiet", cfg.Quiet,
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line, err := readLine(lines)
		if errors.Is(err, io.EOF) {
			logger.Debug("end of input", "lines", stats.Read)
			return stats, nil
		}
		if err != nil {
			return stats, &InputError{Err: err}
		}
		stats.Read++

		dec := engine.Decision{Action: engine.ActionEmitLine}
		if tmpl.Enabled() {
			req := tmpl.Build(line, stdoutMode)
			res := ex.Run(ctx, req)
			// A child killed by cancellation must not be decided, or --negate would emit it.
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			dec = policy.Decide(res)
			logger.Debug("line processed",
				"line", stats.Read,
				"program", req.Program,
				"args", req.Args,
				"stdin", req.AttachStdin,
				"status", renderer.FormatResult(res),
				"action", dec.Action.String(),
			)
		}
		stats.Record(dec.Action)

		var writeErr error
		switch dec.Action {
		case engine.ActionSkip:
			continue
		case engine.ActionReport:
			logger.Error("error executing command", "line", stats.Read, "err", dec.Err)
			continue
		case engine.ActionAbort:
			return stats, fmt.Errorf("error executing command: %w", dec.Err)
		case engine.ActionEmitOutput:
			writeErr = sink.EmitBytes(dec.Output)
		default:
			writeErr = sink.EmitLine(line)
		}

		if writeErr != nil {
			if engine.IsBrokenPipe(writeErr) {
				// Downstream is gone: flush what we can and stop as if input ended.
				_ = sink.Flush()
				logger.Debug("output closed by reader", "lines", stats.Read)
				return stats, nil
			}
			return stats, writeErr
		}
		stats.Emitted++
	}
}

// readLine returns the next line without its terminator. A trailing "\r"
// is dropped too. A final line without a terminator is still returned;
// io.EOF is returned only when no bytes remain.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func stderrOf(cfg Config) io.Writer {
	if cfg.Stderr == nil {
		return io.Discard
	}
	return cfg.Stderr
}
