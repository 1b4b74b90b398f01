package payment

import "time"

type State string

const (
	StateIdle          State = "IDLE"
	StateScriptLoading State = "SCRIPT_LOADING"
	StateReady         State = "READY"
	StateOrderCreating State = "ORDER_CREATING"
	StateCheckoutOpen  State = "CHECKOUT_OPEN"
	StateVerifying     State = "VERIFYING"
	StateSuccess       State = "SUCCESS"
	StateFailed        State = "FAILED"
	StateCancelled     State = "CANCELLED"
)

var transitions = map[State][]State{
	StateIdle:          {StateScriptLoading, StateReady},
	StateScriptLoading: {StateReady, StateFailed},
	StateReady:         {StateOrderCreating},
	StateOrderCreating: {StateCheckoutOpen, StateFailed},
	StateCheckoutOpen:  {StateVerifying, StateCancelled, StateFailed},
	StateVerifying:     {StateSuccess, StateFailed},
	StateCancelled:     {StateReady},
	StateFailed:        {StateReady, StateScriptLoading},
	StateSuccess:       {},
}

// CanTransition reports whether from -> to is an edge of the checkout state machine.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Busy reports whether an attempt is between order creation and its outcome.
func (s State) Busy() bool {
	return s == StateOrderCreating || s == StateCheckoutOpen || s == StateVerifying
}

// Transition is one state change, reported to observers.
type Transition struct {
	AttemptID string
	CourseID  string
	StudentID string
	From      State
	To        State
	Kind      ErrorKind
	Message   string
	At        time.Time
}

// Observer receives every transition. It runs synchronously and must not block.
type Observer func(Transition)
