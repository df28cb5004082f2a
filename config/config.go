// Package config loads fpipe's optional YAML defaults file and merges it
// with command-line overrides.
//
// Example file:
//
//	quiet: true
//	negate: false
//	map: false
//	summary: true
//	log_level: info
//	command: ["grep", "-q", "TODO"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvFile names the environment variable consulted when no --config flag is given.
const EnvFile = "FPIPE_CONFIG"

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Arguments may be empty strings (grep -q ""); only the program name may not.
	_ = v.RegisterValidation("program", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		return f.Len() == 0 || f.Index(0).String() != ""
	})
	return v
}

// File mirrors the YAML defaults file. The zero value is a valid configuration.
type File struct {
	LogLevel string   `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Command  []string `yaml:"command"   validate:"program"`
	Quiet    bool     `yaml:"quiet"`
	Negate   bool     `yaml:"negate"`
	Map      bool     `yaml:"map"`
	Summary  bool     `yaml:"summary"`
}

// Overrides carries values given on the command line. Nil pointers mean the
// flag was not set; a non-empty Command replaces the file's command entirely.
type Overrides struct {
	Quiet    *bool
	Negate   *bool
	Map      *bool
	Summary  *bool
	LogLevel *string
	Command  []string
}

// Load reads and validates the YAML file at path.
// An empty path returns the zero File. An empty file is allowed.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (*File, error) {
	f := &File{}
	if path == "" {
		return f, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// Merge applies command-line overrides on top of base.
func Merge(base File, o Overrides) File {
	if o.Quiet != nil {
		base.Quiet = *o.Quiet
	}
	if o.Negate != nil {
		base.Negate = *o.Negate
	}
	if o.Map != nil {
		base.Map = *o.Map
	}
	if o.Summary != nil {
		base.Summary = *o.Summary
	}
	if o.LogLevel != nil {
		base.LogLevel = *o.LogLevel
	}
	if len(o.Command) > 0 {
		base.Command = o.Command
	}
	return base
}

// Validate checks the struct tags and reports every failing field.
func (f File) Validate() error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Level maps LogLevel to a slog level; empty means warn.
func (f File) Level() slog.Level {
	switch f.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value())
	case "program":
		return fmt.Sprintf("%s must start with a program name", fe.Namespace())
	default:
		return fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
}
