package nodes

import (
	"github.com/Chative-order-agent/server/internal/agent/model"
)

const (
	NodeInputConverter = "InputConverter"
	NodePlanner        = "Planner"
	NodeDispatcher     = "FunctionDispatcher"
	NodeFinalizer      = "Finalizer"
)

const DefaultMaxRounds = 8

// ===== Small helpers to keep handlers simple/readable =====
// NormalizeMaxRounds returns a sane default when the provided value is invalid.
func NormalizeMaxRounds(n int) int {
	if n <= 0 {
		return DefaultMaxRounds
	}
	return n
}

// checkAndMarkRoundLimit reports whether the correction loop has used all of
// its dispatch rounds and marks the state the first time it happens. Returns
// true when marked now.
func checkAndMarkRoundLimit(state *model.AppState, max int) bool {
	max = NormalizeMaxRounds(max)
	if !state.LimitReached && state.Rounds >= max {
		state.LimitReached = true
		return true
	}
	return false
}

// roundsLeft reports whether another dispatch round is allowed.
func roundsLeft(state *model.AppState, max int) bool {
	return state.Rounds < NormalizeMaxRounds(max)
}
