package repair

import (
	"testing"

	"github.com/gavelhq/gavel/internal/integrity"
)

func TestClassifyExplicitType(t *testing.T) {
	cases := map[string]Type{
		"ADVERSARIAL_CONTENT":      TypeSanitization,
		"LOGIC_INCONSISTENCY":      TypeLogicReconciliation,
		"FORMAT_ERROR":             TypeFormatNormalization,
		"MISSING_DATA":             TypeMissingDataInference,
		"DUPLICATE_DATA":           TypeDuplicateResolution,
		"CROSS_REFERENCE_MISMATCH": TypeCrossReferenceFix,
	}
	for anomalyType, want := range cases {
		got := Classify(integrity.Result{AnomalyType: anomalyType})
		if got != want {
			t.Errorf("Classify(%s) = %s, want %s", anomalyType, got, want)
		}
	}
}

func TestClassifyKeywordInference(t *testing.T) {
	cases := []struct {
		description string
		want        Type
	}{
		{"prompt injection detected in notes", TypeSanitization},
		{"amounts contradict each other", TypeLogicReconciliation},
		{"malformed timestamp in created_at", TypeFormatNormalization},
		{"required field is missing", TypeMissingDataInference},
		{"duplicate rows in line_items", TypeDuplicateResolution},
		{"invoice id does not match ledger", TypeCrossReferenceFix},
	}
	for _, tc := range cases {
		got := Classify(integrity.Result{AnomalyDetected: tc.description})
		if got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.description, got, tc.want)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// Both the sanitization and missing-data groups match; the earlier
	// rule decides.
	got := Classify(integrity.Result{AnomalyDetected: "injection attempt left field missing"})
	if got != TypeSanitization {
		t.Fatalf("Classify = %s, want %s", got, TypeSanitization)
	}
}

func TestClassifyDefaultsToSanitization(t *testing.T) {
	if got := Classify(integrity.Result{}); got != TypeSanitization {
		t.Fatalf("Classify(empty) = %s, want %s", got, TypeSanitization)
	}
	if got := Classify(integrity.Result{AnomalyDetected: "something unrecognizable"}); got != TypeSanitization {
		t.Fatalf("Classify(unknown description) = %s, want %s", got, TypeSanitization)
	}
}
