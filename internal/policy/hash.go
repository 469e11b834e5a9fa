package policy

import (
	"sort"

	"github.com/gavelhq/gavel/internal/crypto"
)

// contentView projects the semantically meaningful fields of a policy.
// Identity (id, pack id) and timestamps are excluded so that renames and
// re-stamps alone never change the content hash.
func contentView(p Policy) map[string]any {
	requirements := make([]any, 0, len(p.Requirements))
	for _, r := range p.Requirements {
		requirements = append(requirements, map[string]any{
			"text":      r.Text,
			"check":     string(r.Check),
			"mandatory": r.Mandatory,
		})
	}

	templates := make([]any, 0, len(p.EvidenceTemplates))
	for _, t := range p.EvidenceTemplates {
		templates = append(templates, map[string]any{
			"type":            string(t.Type),
			"required_fields": t.RequiredFields,
			"required":        t.Required,
		})
	}

	return map[string]any{
		"control_family":     p.ControlFamily,
		"title":              p.Title,
		"description":        p.Description,
		"requirements":       requirements,
		"evidence_templates": templates,
		"approval_roles":     p.ApprovalRoles,
		"risk":               string(p.Risk),
		"mai":                string(p.MAI),
		"worker_types":       p.WorkerTypes,
		"domains":            p.Domains,
		"status":             string(p.Status),
		"gate_threshold":     p.GateThreshold,
		"active":             p.Active,
	}
}

// ContentHash computes the policy content hash over its canonical form.
func ContentHash(p Policy) (string, error) {
	return crypto.HashValue(contentView(p))
}

// PackHash digests the sorted member content hashes, so drift inside a
// pack is visible without re-canonicalizing every policy per query.
func PackHash(policies []Policy) (string, error) {
	hashes := make([]string, 0, len(policies))
	for _, p := range policies {
		hashes = append(hashes, p.ContentHash)
	}
	sort.Strings(hashes)
	return crypto.HashValue(hashes)
}

// DetectDrift recomputes the content hash from current fields and
// reports whether it diverges from the stored hash. Drift is reported,
// never auto-corrected: a drifted policy needs re-seeding or review
// before its evaluations can be trusted in an audit.
func DetectDrift(p Policy) (bool, error) {
	current, err := ContentHash(p)
	if err != nil {
		return false, err
	}
	return current != p.ContentHash, nil
}
