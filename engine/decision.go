package engine

// Action is what the line loop does with the current line.
type Action int

const (
	// ActionSkip drops the line.
	ActionSkip Action = iota

	// ActionEmitLine writes the original line followed by one newline.
	ActionEmitLine

	// ActionEmitOutput writes the captured child output verbatim.
	ActionEmitOutput

	// ActionReport drops the line after reporting Decision.Err as a diagnostic.
	ActionReport

	// ActionAbort stops the run with Decision.Err.
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionEmitLine:
		return "emit-line"
	case ActionEmitOutput:
		return "emit-output"
	case ActionReport:
		return "report"
	case ActionAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// Decision is the output of Policy.Decide.
type Decision struct {
	// Err is set for ActionReport and ActionAbort.
	Err error

	// Output is the bytes to write for ActionEmitOutput.
	Output []byte

	Action Action
}

// Policy holds the run-wide switches that turn a Result into a Decision.
type Policy struct {
	Mode   Mode
	Negate bool
	Map    bool
}

// Decide resolves a Result into an output action.
//
// Rules:
//   - OutcomeFailed: ActionReport in ModeSelfExecuting (the line named a bad
//     program), ActionAbort otherwise (the fixed command is broken)
//   - OutcomeNoOp: ActionEmitLine; the line passes through unchanged
//     regardless of Negate and Map
//   - success XOR Negate false: ActionSkip
//   - otherwise ActionEmitOutput in map mode, ActionEmitLine if not
func (p Policy) Decide(res Result) Decision {
	if res.Outcome == OutcomeFailed {
		if p.Mode == ModeSelfExecuting {
			return Decision{Action: ActionReport, Err: res.Err}
		}
		return Decision{Action: ActionAbort, Err: res.Err}
	}

	// Nothing ran, so there is no status to negate and no output to map.
	if res.Outcome == OutcomeNoOp {
		return Decision{Action: ActionEmitLine}
	}

	if res.Success == p.Negate {
		return Decision{Action: ActionSkip}
	}

	if p.Map {
		return Decision{Action: ActionEmitOutput, Output: res.Output}
	}
	return Decision{Action: ActionEmitLine}
}
