package evidence

import "errors"

var (
	// ErrChainBroken means an append referenced a predecessor that does
	// not exist or is not sealed. Fatal to the append; the owning
	// workflow instance must halt and be investigated.
	ErrChainBroken = errors.New("evidence chain broken")

	// ErrImmutableEvidence means a write was attempted on a sealed pack.
	// Always a programming or integration error.
	ErrImmutableEvidence = errors.New("evidence pack is sealed")

	// ErrTampered means a sealed pack's recomputed content hash no
	// longer matches its stored hash.
	ErrTampered = errors.New("evidence pack content hash mismatch")

	ErrUnknownPack  = errors.New("unknown evidence pack")
	ErrUnknownChain = errors.New("unknown evidence chain")
)
