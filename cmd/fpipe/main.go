package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/a2y-d5l/fpipe/config"
	"github.com/a2y-d5l/fpipe/renderer"
	"github.com/a2y-d5l/fpipe/runner"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var isTerminal = renderer.IsTerminal

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// usageError marks failures caused by the invocation rather than the input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

type options struct {
	configPath string
	logLevel   string
	quiet      bool
	negate     bool
	mapped     bool
	summary    bool
	verbose    bool
}

func newRootCmd(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := &options{configPath: os.Getenv(config.EnvFile)}

	cmd := &cobra.Command{
		Use:   "fpipe [flags] [command [args...]]",
		Short: "Filter or map lines of stdin through an external command.",
		Long: strings.TrimSpace(`
fpipe runs a command once per input line and decides from its exit status
whether the line is kept. With --map the command's output replaces the line.

Every argument that is exactly {} is replaced by the line and the
command's stdin is left empty. Without a placeholder the line is
written to the command's stdin instead. If the command itself is {}, each
line is split on whitespace and run as a command of its own.

Examples:
  # keep paths that are directories
  find . | fpipe test -d {}

  # keep lines that do not mention TODO
  fpipe -n -q grep TODO < notes.txt

  # replace every line with its checksum
  ls | fpipe -m sha1sum {}

  # run each input line as a command
  printf 'echo hi\ndate\n' | fpipe -m {}
		`),
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolve(cmd, o, args)
			if err != nil {
				return &usageError{err: err}
			}

			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
			if f, ok := stdin.(*os.File); ok && isTerminal(f) {
				logger.Warn("reading lines from the terminal; end input with Ctrl-D")
			}

			rc := runner.DefaultConfig()
			rc.Stdin = stdin
			rc.Stdout = stdout
			rc.Stderr = stderr
			rc.Logger = logger
			rc.Command = cfg.Command
			rc.Quiet = cfg.Quiet
			rc.Negate = cfg.Negate
			rc.Map = cfg.Map
			rc.ShowSummary = cfg.Summary

			return runner.Run(ctx, rc)
		},
	}

	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("fpipe {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := cmd.Flags()
	// Everything after the first positional argument belongs to the command.
	flags.SetInterspersed(false)
	flags.BoolVarP(&o.quiet, "quiet", "q", false, "discard the command's stdout")
	flags.BoolVarP(&o.quiet, "silent", "s", false, "alias for --quiet")
	_ = flags.MarkHidden("silent")
	flags.BoolVarP(&o.negate, "negate", "n", false, "keep lines whose command fails instead")
	flags.BoolVarP(&o.mapped, "map", "m", false, "emit the command's stdout instead of the line")
	flags.BoolVar(&o.summary, "summary", false, "print line counts to stderr when done")
	// Registered before cobra adds --version so that -v stays free for verbose.
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log every line at debug level")
	flags.StringVar(&o.logLevel, "log-level", "", "diagnostic level: debug, info, warn or error (default warn)")
	flags.StringVar(&o.configPath, "config", o.configPath, "YAML defaults file (env "+config.EnvFile+")")

	return cmd
}

// resolve loads the defaults file and applies only the flags the user set.
func resolve(cmd *cobra.Command, o *options, args []string) (config.File, error) {
	base, err := config.Load(o.configPath)
	if err != nil {
		return config.File{}, err
	}

	flags := cmd.Flags()
	var ov config.Overrides
	if flags.Changed("quiet") || flags.Changed("silent") {
		ov.Quiet = &o.quiet
	}
	if flags.Changed("negate") {
		ov.Negate = &o.negate
	}
	if flags.Changed("map") {
		ov.Map = &o.mapped
	}
	if flags.Changed("summary") {
		ov.Summary = &o.summary
	}
	if flags.Changed("log-level") {
		ov.LogLevel = &o.logLevel
	} else if o.verbose {
		debug := "debug"
		ov.LogLevel = &debug
	}
	ov.Command = args

	merged := config.Merge(*base, ov)
	if err := merged.Validate(); err != nil {
		return config.File{}, err
	}
	return merged, nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			cancel(fmt.Errorf("received signal: %v", sig))
		case <-ctx.Done():
		}
	}()

	// Subscribing to SIGPIPE turns a write to a closed stdout into EPIPE
	// instead of terminating the process. Children keep the default disposition.
	pipeCh := make(chan os.Signal, 1)
	signal.Notify(pipeCh, syscall.SIGPIPE)
	defer signal.Stop(pipeCh)

	if args == nil {
		args = []string{}
	}
	cmd := newRootCmd(ctx, stdin, stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	if err == nil {
		return exitOK
	}

	if cause := context.Cause(ctx); cause != nil && errors.Is(err, ctx.Err()) {
		err = cause
	}
	fmt.Fprintf(stderr, "fpipe: %v\n", err)

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(stderr, "Run 'fpipe --help' for usage.")
		return exitUsage
	}
	return exitFatal
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
