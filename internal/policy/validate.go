package policy

// ValidationResult reports ingestion-blocking errors and advisory
// warnings for a candidate policy. Warnings never block ingestion.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func validRisk(r RiskLevel) bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	default:
		return false
	}
}

func validMAI(m MAILevel) bool {
	switch m {
	case MAIInformational, MAIAdvisory, MAIMandatory:
		return true
	default:
		return false
	}
}

func validStatus(s ImplementationStatus) bool {
	switch s {
	case StatusEnforced, StatusEvidenced, StatusConfigurable, StatusPartial, "":
		return true
	default:
		return false
	}
}

// Validate checks a candidate policy. Errors block ingestion; warnings
// flag suspicious but acceptable combinations.
func Validate(p Policy) ValidationResult {
	result := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if p.ID == "" {
		result.Errors = append(result.Errors, "policy id is required")
	}
	if p.Title == "" {
		result.Errors = append(result.Errors, "policy title is required")
	}
	if p.Risk == "" {
		result.Errors = append(result.Errors, "risk level is required")
	} else if !validRisk(p.Risk) {
		result.Errors = append(result.Errors, "unknown risk level: "+string(p.Risk))
	}
	if p.MAI == "" {
		result.Errors = append(result.Errors, "MAI level is required")
	} else if !validMAI(p.MAI) {
		result.Errors = append(result.Errors, "unknown MAI level: "+string(p.MAI))
	}
	if !validStatus(p.Status) {
		result.Errors = append(result.Errors, "unknown implementation status: "+string(p.Status))
	}

	if p.Risk == RiskCritical && p.MAI == MAIInformational {
		result.Warnings = append(result.Warnings, "CRITICAL risk policy has INFORMATIONAL MAI level")
	}
	if p.MAI == MAIMandatory && len(p.ApprovalRoles) == 0 {
		result.Warnings = append(result.Warnings, "MANDATORY policy should specify approval roles")
	}
	if (p.Status == StatusEnforced || p.Status == StatusEvidenced) && len(p.EvidenceTemplates) == 0 {
		result.Warnings = append(result.Warnings, string(p.Status)+" policy has no evidence templates")
	}

	result.Valid = len(result.Errors) == 0
	return result
}
