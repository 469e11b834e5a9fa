package policy

// RiskLevel classifies the blast radius of the governed action.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// MAILevel classifies how binding a policy's gate requirement is.
type MAILevel string

const (
	MAIInformational MAILevel = "INFORMATIONAL"
	MAIAdvisory      MAILevel = "ADVISORY"
	MAIMandatory     MAILevel = "MANDATORY"
)

// PackType orders packs for conflict resolution: BASE is the floor,
// DEPARTMENT overrides everything below it.
type PackType string

const (
	PackBase       PackType = "BASE"
	PackIndustry   PackType = "INDUSTRY"
	PackEnterprise PackType = "ENTERPRISE"
	PackDepartment PackType = "DEPARTMENT"
)

// ImplementationStatus describes how a policy is realized.
type ImplementationStatus string

const (
	StatusEnforced     ImplementationStatus = "ENFORCED"
	StatusEvidenced    ImplementationStatus = "EVIDENCED"
	StatusConfigurable ImplementationStatus = "CONFIGURABLE"
	StatusPartial      ImplementationStatus = "PARTIAL"
)

// CheckType describes how a requirement is verified.
type CheckType string

const (
	CheckAutomated     CheckType = "automated"
	CheckManual        CheckType = "manual"
	CheckEvidenceBased CheckType = "evidence-based"
)

// EvidenceType enumerates the proof artifacts a requirement can demand.
type EvidenceType string

const (
	EvidenceScreenshot     EvidenceType = "SCREENSHOT"
	EvidenceDocument       EvidenceType = "DOCUMENT"
	EvidenceLogEntry       EvidenceType = "LOG_ENTRY"
	EvidenceAttestation    EvidenceType = "ATTESTATION"
	EvidenceHashProof      EvidenceType = "HASH_PROOF"
	EvidenceApprovalRecord EvidenceType = "APPROVAL_RECORD"
)

// Requirement is a single check a policy imposes.
type Requirement struct {
	Text      string    `yaml:"text"`
	Check     CheckType `yaml:"check"`
	Mandatory bool      `yaml:"mandatory"`
}

// EvidenceTemplate describes what proof a requirement expects. Created
// alongside its policy and immutable thereafter.
type EvidenceTemplate struct {
	ID             string       `yaml:"id"`
	Type           EvidenceType `yaml:"type"`
	RequiredFields []string     `yaml:"required_fields"`
	Required       bool         `yaml:"required"`
}

// Policy is an atomic governance rule. Updates always replace the whole
// record and recompute ContentHash; partial mutation is not supported.
type Policy struct {
	ID                string               `yaml:"id"`
	PackID            string               `yaml:"pack_id"`
	ControlFamily     string               `yaml:"control_family"`
	Title             string               `yaml:"title"`
	Description       string               `yaml:"description"`
	Requirements      []Requirement        `yaml:"requirements"`
	EvidenceTemplates []EvidenceTemplate   `yaml:"evidence_templates"`
	ApprovalRoles     []string             `yaml:"approval_roles"`
	Risk              RiskLevel            `yaml:"risk"`
	MAI               MAILevel             `yaml:"mai"`
	WorkerTypes       []string             `yaml:"worker_types"`
	Domains           []string             `yaml:"domains"`
	Status            ImplementationStatus `yaml:"status"`
	GateThreshold     int                  `yaml:"gate_threshold"`
	Active            bool                 `yaml:"active"`
	ContentHash       string               `yaml:"-"`
	CreatedAt         string               `yaml:"-"`
	UpdatedAt         string               `yaml:"-"`
}

// Pack is a named, versioned collection of policies.
type Pack struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Version  string   `yaml:"version"`
	Type     PackType `yaml:"type"`
	Priority int      `yaml:"priority"`
}

// DefaultGateThreshold is the integrity score a conditional gate needs
// to auto-approve when a policy does not configure its own.
const DefaultGateThreshold = 85

// Normalize fills constructor-time defaults on a candidate policy.
func Normalize(p Policy) Policy {
	if p.GateThreshold <= 0 || p.GateThreshold > 100 {
		p.GateThreshold = DefaultGateThreshold
	}
	if p.Status == "" {
		p.Status = StatusPartial
	}
	return p
}

func typeRank(t PackType) int {
	switch t {
	case PackBase:
		return 0
	case PackIndustry:
		return 1
	case PackEnterprise:
		return 2
	case PackDepartment:
		return 3
	default:
		return -1
	}
}

// MorePrecedent reports whether pack a outranks pack b. Pack type
// precedence always dominates; the numeric priority only breaks ties
// within a tier, so no BASE pack can be configured above a DEPARTMENT
// pack.
func MorePrecedent(a, b Pack) bool {
	if typeRank(a.Type) != typeRank(b.Type) {
		return typeRank(a.Type) > typeRank(b.Type)
	}
	return a.Priority > b.Priority
}
