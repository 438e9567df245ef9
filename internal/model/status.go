package model

const (
	StepPending = "pending"
	StepRunning = "running"
	StepSuccess = "success"
	StepFailed  = "failed"
	StepSkipped = "skipped"
)

// A step status only moves forward: pending -> running -> terminal. The empty
// string is the "not yet seen" state; a step may be first observed in any
// status because a watcher can attach mid-stream, after the backend's replay
// window.
var allowedStepTransitions = map[string]map[string]bool{
	"": {
		StepPending: true,
		StepRunning: true,
		StepSuccess: true,
		StepFailed:  true,
		StepSkipped: true,
	},
	StepPending: {
		StepPending: true,
		StepRunning: true,
		StepSuccess: true,
		StepFailed:  true,
		StepSkipped: true,
	},
	StepRunning: {
		StepRunning: true,
		StepSuccess: true,
		StepFailed:  true,
		StepSkipped: true,
	},
	StepSuccess: {},
	StepFailed:  {},
	StepSkipped: {},
}

func IsKnownStepStatus(status string) bool {
	_, ok := allowedStepTransitions[status]
	return ok
}

// StepStatusTerminal reports whether a step status accepts no further change.
func StepStatusTerminal(status string) bool {
	next, ok := allowedStepTransitions[status]
	return ok && len(next) == 0
}

func CanTransitionStep(from, to string) bool {
	next, ok := allowedStepTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}
