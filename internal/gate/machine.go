// Package gate implements the oversight gate: the point where pipeline
// execution pauses for a human decision. State is not considered final
// until the corresponding decision record is sealed into the evidence
// chain.
package gate

import (
	"github.com/gavelhq/gavel/internal/policy"
)

// State enumerates the gate machine states.
type State string

const (
	StateIdle          State = "IDLE"
	StateTriggered     State = "TRIGGERED"
	StateAutoApproved  State = "AUTO_APPROVED"
	StateAwaitingHuman State = "AWAITING_HUMAN"
	StateApproved      State = "APPROVED"
	StateRejected      State = "REJECTED"
)

// Type classifies how binding a gate is.
type Type string

const (
	TypeMandatory     Type = "mandatory"
	TypeConditional   Type = "conditional"
	TypeInformational Type = "informational"
)

// Outcome values recorded in gate decision records.
const (
	OutcomeApproved     = "approved"
	OutcomeRejected     = "rejected"
	OutcomeAutoApproved = "auto-approved"
)

// TypeForMAI maps a policy's MAI level to the gate type it imposes.
func TypeForMAI(level policy.MAILevel) Type {
	switch level {
	case policy.MAIMandatory:
		return TypeMandatory
	case policy.MAIAdvisory:
		return TypeConditional
	default:
		return TypeInformational
	}
}

// EvalView is the immutable input to one gate evaluation.
type EvalView struct {
	Type         Type
	Score        int
	Threshold    int
	RepairFailed bool
}

// Resolve decides where a TRIGGERED gate lands. Mandatory gates always
// await a human, with no override path for any score or operator. A
// failed repair forces human attention for every gate type; an
// exhausted repair budget must never be auto-approved away.
func Resolve(view EvalView) State {
	if view.Type == TypeMandatory {
		return StateAwaitingHuman
	}
	if view.RepairFailed {
		return StateAwaitingHuman
	}
	if view.Type == TypeConditional && view.Score < view.Threshold {
		return StateAwaitingHuman
	}
	return StateAutoApproved
}

// ApplyDecision is the pure transition for a human disposition. Only a
// gate in AWAITING_HUMAN accepts one; a second decision for the same
// gate is an error, never a silent overwrite.
func ApplyDecision(state State, decision string) (State, error) {
	switch state {
	case StateAutoApproved, StateApproved, StateRejected:
		return state, ErrGateResolved
	case StateAwaitingHuman:
	default:
		return state, ErrGateNotPending
	}

	switch decision {
	case OutcomeApproved:
		return StateApproved, nil
	case OutcomeRejected:
		return StateRejected, nil
	default:
		return state, ErrInvalidDecision
	}
}

// Terminal reports whether a state accepts no further transitions.
func Terminal(state State) bool {
	switch state {
	case StateAutoApproved, StateApproved, StateRejected:
		return true
	default:
		return false
	}
}
