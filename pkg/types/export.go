package types

// ExportedPack is one chain node in an evidence export. It carries
// everything an independent verifier needs to re-run chain verification
// without access to the producing system.
type ExportedPack struct {
	PackID       string         `json:"pack_id"`
	ChainID      string         `json:"chain_id"`
	Seq          int            `json:"seq"`
	Payload      map[string]any `json:"payload"`
	ContentHash  string         `json:"content_hash"`
	PreviousID   string         `json:"previous_id,omitempty"`
	PreviousHash string         `json:"previous_hash,omitempty"`
	Sealed       bool           `json:"sealed"`
	CreatedAt    string         `json:"created_at"`
	SealedAt     string         `json:"sealed_at,omitempty"`
	KeyID        string         `json:"key_id,omitempty"`
	Sig          []byte         `json:"sig,omitempty"`
}

// ChainExport is the ordered export of one evidence chain.
type ChainExport struct {
	ChainID    string         `json:"chain_id"`
	ExportedAt string         `json:"exported_at"`
	Packs      []ExportedPack `json:"packs"`
}

// VerifyReport is the outcome of walking a chain from genesis. A broken
// chain reports the exact index of the first broken link so the
// investigation can be targeted.
type VerifyReport struct {
	ChainID     string `json:"chain_id"`
	OK          bool   `json:"ok"`
	Packs       int    `json:"packs"`
	BrokenIndex int    `json:"broken_index"` // -1 when OK
	Reason      string `json:"reason,omitempty"`
}

// GateDecisionInput is a human disposition for a gated pipeline step.
type GateDecisionInput struct {
	WorkflowID    string `json:"workflow_id"`
	StepID        string `json:"step_id"`
	Decision      string `json:"decision"` // approved | rejected
	ActorIdentity string `json:"actor_identity"`
}
