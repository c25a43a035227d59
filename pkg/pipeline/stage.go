package pipeline

import "context"

// Outcome classifies how a stage finished.
type Outcome int

const (
	// OutcomeOK means the stage produced its normal result.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the stage hit an error and substituted a fallback.
	OutcomeDegraded
	// OutcomeFatal means the request cannot continue.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Result is what a stage hands back to the orchestrator.
type Result struct {
	State   State
	Outcome Outcome
	Err     error // cause of a degraded or fatal outcome
}

// Stage is one node of the workflow.
type Stage interface {
	Name() string
	Run(ctx context.Context, st State) Result
}

func ok(st State) Result { return Result{State: st, Outcome: OutcomeOK} }

func degraded(st State, err error) Result {
	return Result{State: st, Outcome: OutcomeDegraded, Err: err}
}

func fatal(st State, err error) Result {
	return Result{State: st, Outcome: OutcomeFatal, Err: err}
}
