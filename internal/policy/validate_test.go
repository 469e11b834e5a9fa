package policy

import "testing"

func validCandidate() Policy {
	return Policy{
		ID:            "AC-1",
		ControlFamily: "access-control",
		Title:         "Least privilege for agent actions",
		Risk:          RiskHigh,
		MAI:           MAIMandatory,
		ApprovalRoles: []string{"compliance-officer"},
		Active:        true,
	}
}

func TestValidateAcceptsCompletePolicy(t *testing.T) {
	result := Validate(validCandidate())
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateMissingFieldsAreErrors(t *testing.T) {
	result := Validate(Policy{})
	if result.Valid {
		t.Fatalf("expected invalid")
	}
	if len(result.Errors) != 4 {
		t.Fatalf("expected 4 errors (id, title, risk, MAI), got %v", result.Errors)
	}
}

func TestValidateMandatoryWithoutRolesWarns(t *testing.T) {
	p := Policy{ID: "X-1", Title: "t", Risk: RiskLow, MAI: MAIMandatory, ApprovalRoles: []string{}}

	result := Validate(p)
	if !result.Valid {
		t.Fatalf("warning must not invalidate, errors: %v", result.Errors)
	}

	found := false
	for _, w := range result.Warnings {
		if w == "MANDATORY policy should specify approval roles" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected approval-roles warning, got %v", result.Warnings)
	}
}

func TestValidateCriticalInformationalWarns(t *testing.T) {
	p := validCandidate()
	p.Risk = RiskCritical
	p.MAI = MAIInformational

	result := Validate(p)
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatalf("expected warning for CRITICAL risk with INFORMATIONAL MAI")
	}
}

func TestValidateEnforcedWithoutTemplatesWarns(t *testing.T) {
	p := validCandidate()
	p.Status = StatusEnforced
	p.EvidenceTemplates = nil

	result := Validate(p)
	if !result.Valid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", result.Warnings)
	}
}

func TestValidateUnknownEnumsAreErrors(t *testing.T) {
	p := validCandidate()
	p.Risk = "SEVERE"
	p.MAI = "REQUIRED"
	p.Status = "DONE"

	result := Validate(p)
	if result.Valid {
		t.Fatalf("expected invalid for unknown enum values")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 enum errors, got %v", result.Errors)
	}
}
