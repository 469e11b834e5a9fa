package repair

import (
	"strings"

	"github.com/gavelhq/gavel/internal/integrity"
)

// explicitTypes maps a checker-reported anomaly type straight to its
// repair type.
var explicitTypes = map[string]Type{
	"ADVERSARIAL_CONTENT":      TypeSanitization,
	"LOGIC_INCONSISTENCY":      TypeLogicReconciliation,
	"FORMAT_ERROR":             TypeFormatNormalization,
	"MISSING_DATA":             TypeMissingDataInference,
	"DUPLICATE_DATA":           TypeDuplicateResolution,
	"CROSS_REFERENCE_MISMATCH": TypeCrossReferenceFix,
}

// keywordRules drive best-effort inference over the free-text anomaly
// description when no explicit type is present. The list is ordered and
// first match wins; keep the order stable, reclassification of historic
// anomalies depends on it.
var keywordRules = []struct {
	repairType Type
	keywords   []string
}{
	{TypeSanitization, []string{"injection", "adversarial", "malicious", "redact"}},
	{TypeLogicReconciliation, []string{"inconsisten", "contradict", "logic", "conflict"}},
	{TypeFormatNormalization, []string{"format", "malformed", "normaliz", "unparse"}},
	{TypeMissingDataInference, []string{"missing", "absent", "incomplete", "empty"}},
	{TypeDuplicateResolution, []string{"duplicate", "repeated", "redundant"}},
	{TypeCrossReferenceFix, []string{"cross-reference", "cross reference", "mismatch", "does not match"}},
}

// Classify maps an anomaly to a repair type: explicit type lookup
// first, keyword inference second, SANITIZATION as the fail-closed
// default (the cheapest, fully deterministic remediation).
func Classify(check integrity.Result) Type {
	if t, ok := explicitTypes[check.AnomalyType]; ok {
		return t
	}

	description := strings.ToLower(check.AnomalyDetected)
	if description != "" {
		for _, rule := range keywordRules {
			for _, keyword := range rule.keywords {
				if strings.Contains(description, keyword) {
					return rule.repairType
				}
			}
		}
	}
	return TypeSanitization
}
