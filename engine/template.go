package engine

import (
	"slices"
	"strings"
)

// Template is the parsed command skeleton. It is built once before the first
// line is read and shared read-only by every line afterwards.
type Template struct {
	program  string
	args     []string
	mode     Mode
	delivery Delivery
}

// ParseTemplate resolves the configured command tokens into a Template.
//
// The first token decides the Mode: the placeholder selects ModeSelfExecuting,
// any other token ModeTemplated. An empty token list selects ModePassThrough.
// The Delivery is DeliverSubstitution if the placeholder occurs anywhere in
// the tokens, DeliverStdin otherwise.
//
// ParseTemplate never fails; validation of tokens happens before it is called.
//
// Example:
//
//	tmpl := engine.ParseTemplate([]string{"expr", "2", "!=", "{}"})
//	tmpl.Mode()     // ModeTemplated
//	tmpl.Delivery() // DeliverSubstitution
func ParseTemplate(tokens []string) *Template {
	if len(tokens) == 0 {
		return &Template{mode: ModePassThrough, delivery: DeliverStdin}
	}

	t := &Template{
		program:  tokens[0],
		args:     slices.Clone(tokens[1:]),
		mode:     ModeTemplated,
		delivery: DeliverStdin,
	}
	if t.program == Placeholder {
		t.mode = ModeSelfExecuting
	}
	if slices.Contains(tokens, Placeholder) {
		t.delivery = DeliverSubstitution
	}
	return t
}

// Mode returns the execution mode derived from the first token.
func (t *Template) Mode() Mode {
	return t.mode
}

// Delivery returns how the line reaches the child.
func (t *Template) Delivery() Delivery {
	return t.delivery
}

// Enabled reports whether lines are run through a command at all.
func (t *Template) Enabled() bool {
	return t.mode != ModePassThrough
}

// Build turns the template and the current line into a Request.
//
// In ModeSelfExecuting the line is split on whitespace; the first word is the
// program and the remaining words lead the argument list, followed by the
// template's own argument tokens. A line without words yields a NoOp request.
//
// In ModeTemplated the program is the literal first token and every
// placeholder argument is replaced by the whole line. The line is sent on
// stdin only when the template contains no placeholder.
//
// ModePassThrough always yields a NoOp request.
func (t *Template) Build(line string, stdout StdoutMode) Request {
	switch t.mode {
	case ModeSelfExecuting:
		words := strings.Fields(line)
		if len(words) == 0 {
			return Request{NoOp: true}
		}
		args := make([]string, 0, len(words)-1+len(t.args))
		args = append(args, words[1:]...)
		args = append(args, t.substitute(line)...)
		return Request{
			Program: words[0],
			Args:    args,
			Stdout:  stdout,
		}

	case ModeTemplated:
		req := Request{
			Program: t.program,
			Args:    t.substitute(line),
			Stdout:  stdout,
		}
		if t.delivery == DeliverStdin {
			req.AttachStdin = true
			req.Input = line
		}
		return req

	default:
		return Request{NoOp: true}
	}
}

// substitute copies the argument tokens, replacing each placeholder with line.
func (t *Template) substitute(line string) []string {
	out := make([]string, len(t.args))
	for i, tok := range t.args {
		if tok == Placeholder {
			out[i] = line
			continue
		}
		out[i] = tok
	}
	return out
}
