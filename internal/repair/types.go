package repair

import "time"

// Type is one of the six remediation kinds.
type Type string

const (
	TypeSanitization         Type = "SANITIZATION"
	TypeLogicReconciliation  Type = "LOGIC_RECONCILIATION"
	TypeFormatNormalization  Type = "FORMAT_NORMALIZATION"
	TypeMissingDataInference Type = "MISSING_DATA_INFERENCE"
	TypeDuplicateResolution  Type = "DUPLICATE_RESOLUTION"
	TypeCrossReferenceFix    Type = "CROSS_REFERENCE_FIX"
)

// needsReconciliation reports whether a repair type routes through the
// external reconciliation step.
func needsReconciliation(t Type) bool {
	switch t {
	case TypeLogicReconciliation, TypeMissingDataInference, TypeCrossReferenceFix:
		return true
	default:
		return false
	}
}

// Change is one field-level modification made during remediation.
type Change struct {
	FieldPath  string `json:"field_path"`
	Before     any    `json:"before"`
	After      any    `json:"after"`
	Reason     string `json:"reason"`
	Source     string `json:"source"`
	Confidence int    `json:"confidence"` // 0..100
}

// Result records one full remediation run. Success is a field, not an
// error: callers must inspect Success and ScoreAfter, and route
// failures to a human gate. Results are append-only audit records.
type Result struct {
	Type            Type           `json:"repair_type"`
	OriginalPayload map[string]any `json:"original_payload"`
	RepairedPayload map[string]any `json:"repaired_payload"`
	Changes         []Change       `json:"changes"`
	ScoreBefore     int            `json:"integrity_score_before"`
	ScoreAfter      int            `json:"integrity_score_after"`
	RetryCount      int            `json:"retry_count"`
	Duration        time.Duration  `json:"duration"`
	Success         bool           `json:"success"`
	Cancelled       bool           `json:"cancelled,omitempty"`
}
