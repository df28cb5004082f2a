package renderer

import (
	"bufio"
	"fmt"
	"io"
)

// WriteError reports a failed write to the output stream.
type WriteError struct {
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write output: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Sink writes decided output to the outbound stream. It is the only writer
// of emitted lines for the whole run.
//
// Behavior:
//   - Every emit is flushed immediately so an incremental reader sees it
//   - EmitLine appends exactly one newline; EmitBytes writes bytes verbatim
//   - Errors are returned as *WriteError; the caller decides whether a
//     broken pipe ends the run cleanly
//
// Child processes in passthrough mode write to the same stream directly.
// Flushing after every line keeps their output ordered with emitted lines.
//
// Example usage:
//
//	sink := renderer.NewSink(os.Stdout)
//	if err := sink.EmitLine(line); err != nil {
//	    if engine.IsBrokenPipe(err) {
//	        _ = sink.Flush()
//	        return nil
//	    }
//	    return err
//	}
type Sink struct {
	w *bufio.Writer
}

// NewSink wraps w in a buffered writer that is flushed after every emit.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// EmitLine writes line followed by a single newline.
func (s *Sink) EmitLine(line string) error {
	if _, err := s.w.WriteString(line); err != nil {
		return &WriteError{Err: err}
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return &WriteError{Err: err}
	}
	return s.Flush()
}

// EmitBytes writes b exactly as given.
func (s *Sink) EmitBytes(b []byte) error {
	if _, err := s.w.Write(b); err != nil {
		return &WriteError{Err: err}
	}
	return s.Flush()
}

// Flush writes any buffered data to the underlying writer.
func (s *Sink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}
