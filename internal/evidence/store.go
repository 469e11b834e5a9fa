package evidence

// Pack is one link in an append-only evidence chain. Payload is frozen
// the moment Sealed flips to true.
type Pack struct {
	ID           string
	ChainID      string
	Seq          int
	Payload      map[string]any
	ContentHash  string
	PreviousID   string
	PreviousHash string
	Sealed       bool
	CreatedAt    string
	SealedAt     string
	KeyID        string
	Sig          []byte
}

// Store persists evidence packs. Implementations must return chain
// members ordered by sequence number.
type Store interface {
	PutPack(p Pack) error
	GetPack(chainID, packID string) (Pack, bool, error)
	ListChain(chainID string) ([]Pack, error)
	Head(chainID string) (Pack, bool, error)
	Chains() ([]string, error)
}
