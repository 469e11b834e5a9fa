package gate

import (
	"errors"
	"testing"

	"github.com/gavelhq/gavel/internal/policy"
)

func TestTypeForMAI(t *testing.T) {
	cases := map[policy.MAILevel]Type{
		policy.MAIMandatory:      TypeMandatory,
		policy.MAIAdvisory:       TypeConditional,
		policy.MAIInformational:  TypeInformational,
		policy.MAILevel("OTHER"): TypeInformational,
	}
	for level, want := range cases {
		if got := TypeForMAI(level); got != want {
			t.Errorf("TypeForMAI(%s) = %s, want %s", level, got, want)
		}
	}
}

func TestResolveMandatoryNeverAutoApproves(t *testing.T) {
	for _, score := range []int{0, 84, 85, 100} {
		got := Resolve(EvalView{Type: TypeMandatory, Score: score, Threshold: 85})
		if got != StateAwaitingHuman {
			t.Errorf("mandatory gate at score %d resolved to %s", score, got)
		}
	}
}

func TestResolveConditionalByThreshold(t *testing.T) {
	if got := Resolve(EvalView{Type: TypeConditional, Score: 85, Threshold: 85}); got != StateAutoApproved {
		t.Errorf("score at threshold = %s, want %s", got, StateAutoApproved)
	}
	if got := Resolve(EvalView{Type: TypeConditional, Score: 84, Threshold: 85}); got != StateAwaitingHuman {
		t.Errorf("score below threshold = %s, want %s", got, StateAwaitingHuman)
	}
}

func TestResolveRepairFailureForcesHumanAttention(t *testing.T) {
	for _, gt := range []Type{TypeConditional, TypeInformational} {
		got := Resolve(EvalView{Type: gt, Score: 100, Threshold: 85, RepairFailed: true})
		if got != StateAwaitingHuman {
			t.Errorf("%s gate with failed repair resolved to %s", gt, got)
		}
	}
}

func TestResolveInformationalAutoApproves(t *testing.T) {
	if got := Resolve(EvalView{Type: TypeInformational, Score: 10, Threshold: 85}); got != StateAutoApproved {
		t.Errorf("informational gate = %s, want %s", got, StateAutoApproved)
	}
}

func TestApplyDecision(t *testing.T) {
	if next, err := ApplyDecision(StateAwaitingHuman, OutcomeApproved); err != nil || next != StateApproved {
		t.Errorf("approve: (%s, %v)", next, err)
	}
	if next, err := ApplyDecision(StateAwaitingHuman, OutcomeRejected); err != nil || next != StateRejected {
		t.Errorf("reject: (%s, %v)", next, err)
	}

	if _, err := ApplyDecision(StateAwaitingHuman, "maybe"); !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("bad decision err = %v", err)
	}

	for _, terminal := range []State{StateApproved, StateRejected, StateAutoApproved} {
		if _, err := ApplyDecision(terminal, OutcomeApproved); !errors.Is(err, ErrGateResolved) {
			t.Errorf("decision on %s err = %v, want ErrGateResolved", terminal, err)
		}
	}

	if _, err := ApplyDecision(StateTriggered, OutcomeApproved); !errors.Is(err, ErrGateNotPending) {
		t.Errorf("decision on TRIGGERED err = %v, want ErrGateNotPending", err)
	}
}
