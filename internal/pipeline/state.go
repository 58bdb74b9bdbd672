package pipeline

import "fmt"

type State string

const (
	StateIdle                State = "idle"
	StateFetchingPreferences State = "fetching_preferences"
	StateQueryingSources     State = "querying_sources"
	StateNormalizing         State = "normalizing"
	StateScoring             State = "scoring"
	StatePersisting          State = "persisting"
	StateNotifying           State = "notifying"
	StateDone                State = "done"
	StateFailed              State = "failed"
)

var stateOrder = map[State]int{
	StateIdle:                0,
	StateFetchingPreferences: 1,
	StateQueryingSources:     2,
	StateNormalizing:         3,
	StateScoring:             4,
	StatePersisting:          5,
	StateNotifying:           6,
	StateDone:                7,
}

// Terminal reports whether no transition leaves the state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition allows moving strictly forward, skipping steps is fine, and
// moving to Failed from any non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	f, okFrom := stateOrder[from]
	t, okTo := stateOrder[to]
	return okFrom && okTo && t > f
}

type transitionError struct {
	from, to State
}

func (e transitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.from, e.to)
}
