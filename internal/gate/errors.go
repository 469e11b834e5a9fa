package gate

import "errors"

var (
	// ErrGateResolved means a decision referenced a gate that already
	// has a terminal disposition.
	ErrGateResolved = errors.New("gate already resolved")

	// ErrGateNotPending means a decision arrived for a gate that is not
	// awaiting one.
	ErrGateNotPending = errors.New("gate is not awaiting a decision")

	// ErrGatePending means a trigger arrived for a (workflow, step) pair
	// whose gate is still open. Re-triggering would seal duplicate
	// records into the evidence chain.
	ErrGatePending = errors.New("gate already open for step")

	ErrUnknownGate     = errors.New("unknown gate")
	ErrInvalidDecision = errors.New("decision must be approved or rejected")
)
