// Package renderer writes fpipe's output: emitted lines on the outbound
// stream, and the optional run summary on the diagnostic stream.
//
// Architecture:
//   - Sink: buffered, flushed-per-line writer for emitted lines
//   - Stats: per-run counters updated from engine decisions
//   - WriteSummary / FormatResult: human-readable diagnostics
//   - IsTerminal: terminal detection for interactive hints
//
// Basic usage with engine decisions:
//
//	sink := renderer.NewSink(os.Stdout)
//	var stats renderer.Stats
//
//	for line := range lines {
//	    dec := policy.Decide(ex.Run(ctx, tmpl.Build(line, mode)))
//	    stats.Record(dec.Action)
//	    // ... emit through sink ...
//	}
//	renderer.WriteSummary(os.Stderr, stats)
package renderer

import (
	"github.com/a2y-d5l/fpipe/engine"
)

// Stats counts what happened to the lines of one run.
//
// Every line read is counted in Read and in exactly one of Emitted,
// Skipped or Reported. A line that aborts the run or hits a closed
// downstream is counted only in Read.
type Stats struct {
	// Read is the number of lines taken from the input.
	Read int

	// Emitted is the number of lines for which output was written.
	Emitted int

	// Skipped is the number of lines filtered out by exit status.
	Skipped int

	// Reported is the number of lines dropped after a non-fatal
	// execution error was reported.
	Reported int
}

// Record updates the counters for a decided line.
// Emits are counted by the caller once the write succeeded, so ActionEmitLine
// and ActionEmitOutput are ignored here, as is ActionAbort.
//
// Example:
//
//	dec := policy.Decide(res)
//	stats.Record(dec.Action)
func (s *Stats) Record(action engine.Action) {
	switch action {
	case engine.ActionSkip:
		s.Skipped++
	case engine.ActionReport:
		s.Reported++
	}
}

// Pending returns the number of read lines not yet accounted for.
// It is zero after a run that reached end of input.
func (s Stats) Pending() int {
	return s.Read - s.Emitted - s.Skipped - s.Reported
}
