package services

import "fmt"

// CheckoutState is the progress of one checkout invocation.
type CheckoutState int

const (
	// StateStarted: an attempt is about to open its transaction.
	StateStarted CheckoutState = iota
	// StateValidating: the cart is being read and checked for lines.
	StateValidating
	// StateLocked: product rows are locked and stock was re-validated under the lock.
	StateLocked
	// StateMutating: stock, order and cart writes are in flight.
	StateMutating
	StateCommitted
	StateAborted
)

func (s CheckoutState) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateValidating:
		return "validating"
	case StateLocked:
		return "locked"
	case StateMutating:
		return "mutating"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("CheckoutState(%d)", int(s))
	}
}

var checkoutTransitions = map[CheckoutState][]CheckoutState{
	StateStarted:    {StateValidating, StateAborted},
	StateValidating: {StateLocked, StateAborted},
	StateLocked:     {StateMutating, StateAborted},
	StateMutating:   {StateCommitted, StateAborted},
	StateAborted:    {StateStarted},
}

// CanTransition reports whether a checkout may move from one state to another.
// Committed is terminal; Aborted may only go back to Started for a retry.
func CanTransition(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IllegalTransitionError is returned when a checkout tries to skip or repeat a step.
type IllegalTransitionError struct {
	From, To CheckoutState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition of checkout status from %s to %s", e.From, e.To)
}
