package evidence

import (
	"fmt"
	"sync"

	"github.com/gavelhq/gavel/internal/crypto"
	"github.com/gavelhq/gavel/pkg/types"
)

// Signer seals packs with an authenticity proof next to the hash.
type Signer interface {
	KeyID() string
	Sign(digest []byte) ([]byte, error)
}

// Ledger maintains hash-linked evidence chains. Appends to one chain
// are serialized by a per-chain mutex; packs are sealed incrementally
// so a crash mid-workflow leaves a verifiably intact prefix.
type Ledger struct {
	store  Store
	signer Signer
	now    func() string
	newID  func() string

	mu     sync.Mutex
	chains map[string]*sync.Mutex
}

func NewLedger(store Store, signer Signer, now func() string, newID func() string) *Ledger {
	return &Ledger{
		store:  store,
		signer: signer,
		now:    now,
		newID:  newID,
		chains: map[string]*sync.Mutex{},
	}
}

func (l *Ledger) chainLock(chainID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.chains[chainID]
	if !ok {
		lock = &sync.Mutex{}
		l.chains[chainID] = lock
	}
	return lock
}

// Append creates a new unsealed pack whose PreviousHash points at the
// predecessor. The predecessor must exist, be sealed, and be the chain
// head, so the chain can never fork from a mid-chain pack; a genesis
// append (empty previousID) is only valid on an empty chain.
func (l *Ledger) Append(chainID string, payload map[string]any, previousID string) (Pack, error) {
	lock := l.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	contentHash, err := crypto.HashValue(payload)
	if err != nil {
		return Pack{}, err
	}

	pack := Pack{
		ID:          l.newID(),
		ChainID:     chainID,
		Payload:     payload,
		ContentHash: contentHash,
		CreatedAt:   l.now(),
	}

	if previousID == "" {
		head, ok, err := l.store.Head(chainID)
		if err != nil {
			return Pack{}, err
		}
		if ok {
			return Pack{}, fmt.Errorf("%w: genesis append on non-empty chain (head %s)", ErrChainBroken, head.ID)
		}
	} else {
		prev, ok, err := l.store.GetPack(chainID, previousID)
		if err != nil {
			return Pack{}, err
		}
		if !ok {
			return Pack{}, fmt.Errorf("%w: predecessor %s not found", ErrChainBroken, previousID)
		}
		if !prev.Sealed {
			return Pack{}, fmt.Errorf("%w: predecessor %s is not sealed", ErrChainBroken, previousID)
		}
		head, ok, err := l.store.Head(chainID)
		if err != nil {
			return Pack{}, err
		}
		if !ok || head.ID != prev.ID {
			return Pack{}, fmt.Errorf("%w: predecessor %s is not the chain head", ErrChainBroken, previousID)
		}
		pack.PreviousID = prev.ID
		pack.PreviousHash = prev.ContentHash
		pack.Seq = prev.Seq + 1
	}

	if err := l.store.PutPack(pack); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

// Amend replaces the payload of a still-unsealed pack and recomputes
// its content hash. Sealed packs reject any write.
func (l *Ledger) Amend(chainID, packID string, payload map[string]any) (Pack, error) {
	lock := l.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	pack, ok, err := l.store.GetPack(chainID, packID)
	if err != nil {
		return Pack{}, err
	}
	if !ok {
		return Pack{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	if pack.Sealed {
		return Pack{}, fmt.Errorf("%w: %s", ErrImmutableEvidence, packID)
	}

	contentHash, err := crypto.HashValue(payload)
	if err != nil {
		return Pack{}, err
	}
	pack.Payload = payload
	pack.ContentHash = contentHash

	if err := l.store.PutPack(pack); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

// Seal freezes a pack: stamps the seal time, signs the digest, and from
// then on every write fails with ErrImmutableEvidence.
func (l *Ledger) Seal(chainID, packID string) (Pack, error) {
	lock := l.chainLock(chainID)
	lock.Lock()
	defer lock.Unlock()

	pack, ok, err := l.store.GetPack(chainID, packID)
	if err != nil {
		return Pack{}, err
	}
	if !ok {
		return Pack{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	if pack.Sealed {
		return Pack{}, fmt.Errorf("%w: %s already sealed", ErrImmutableEvidence, packID)
	}

	pack.Sealed = true
	pack.SealedAt = l.now()

	if l.signer != nil {
		canonical, err := crypto.Canonicalize(pack.Payload)
		if err != nil {
			return Pack{}, err
		}
		sig, err := l.signer.Sign(crypto.DigestBytes(canonical))
		if err != nil {
			return Pack{}, err
		}
		pack.KeyID = l.signer.KeyID()
		pack.Sig = sig
	}

	if err := l.store.PutPack(pack); err != nil {
		return Pack{}, err
	}
	return pack, nil
}

// GetPack reads a pack. Sealed packs are re-hashed on every read; a
// mismatch surfaces as ErrTampered instead of silently returning the
// stored payload.
func (l *Ledger) GetPack(chainID, packID string) (Pack, error) {
	pack, ok, err := l.store.GetPack(chainID, packID)
	if err != nil {
		return Pack{}, err
	}
	if !ok {
		return Pack{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	if pack.Sealed {
		recomputed, err := crypto.HashValue(pack.Payload)
		if err != nil {
			return Pack{}, err
		}
		if recomputed != pack.ContentHash {
			return Pack{}, fmt.Errorf("%w: %s", ErrTampered, packID)
		}
	}
	return pack, nil
}

// VerifyChain walks the chain from genesis, recomputing every content
// hash and checking predecessor linkage. It reports the index of the
// first broken link rather than a generic corruption flag.
func (l *Ledger) VerifyChain(chainID string) (types.VerifyReport, error) {
	packs, err := l.store.ListChain(chainID)
	if err != nil {
		return types.VerifyReport{}, err
	}
	if len(packs) == 0 {
		return types.VerifyReport{}, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}
	return verifyPacks(chainID, packs), nil
}

// Export produces the ordered record list an independent verifier needs
// to re-run verification offline.
func (l *Ledger) Export(chainID string) (types.ChainExport, error) {
	packs, err := l.store.ListChain(chainID)
	if err != nil {
		return types.ChainExport{}, err
	}
	if len(packs) == 0 {
		return types.ChainExport{}, fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}

	export := types.ChainExport{ChainID: chainID, ExportedAt: l.now()}
	for _, p := range packs {
		export.Packs = append(export.Packs, types.ExportedPack{
			PackID:       p.ID,
			ChainID:      p.ChainID,
			Seq:          p.Seq,
			Payload:      p.Payload,
			ContentHash:  p.ContentHash,
			PreviousID:   p.PreviousID,
			PreviousHash: p.PreviousHash,
			Sealed:       p.Sealed,
			CreatedAt:    p.CreatedAt,
			SealedAt:     p.SealedAt,
			KeyID:        p.KeyID,
			Sig:          p.Sig,
		})
	}
	return export, nil
}

func verifyPacks(chainID string, packs []Pack) types.VerifyReport {
	report := types.VerifyReport{ChainID: chainID, Packs: len(packs), BrokenIndex: -1, OK: true}

	var prevHash string
	var prevID string
	for i, p := range packs {
		recomputed, err := crypto.HashValue(p.Payload)
		if err != nil {
			return brokenAt(report, i, "payload not canonicalizable: "+err.Error())
		}
		if recomputed != p.ContentHash {
			return brokenAt(report, i, "content hash mismatch")
		}

		if i == 0 {
			if p.PreviousHash != "" || p.PreviousID != "" {
				return brokenAt(report, i, "genesis pack has a predecessor")
			}
		} else {
			if p.PreviousID != prevID {
				return brokenAt(report, i, "predecessor id mismatch")
			}
			if p.PreviousHash != prevHash {
				return brokenAt(report, i, "predecessor hash mismatch")
			}
		}

		prevHash = recomputed
		prevID = p.ID
	}
	return report
}

func brokenAt(report types.VerifyReport, index int, reason string) types.VerifyReport {
	report.OK = false
	report.BrokenIndex = index
	report.Reason = reason
	return report
}

// VerifyExport re-runs chain verification against an export, with no
// access to the producing system's store.
func VerifyExport(export types.ChainExport) types.VerifyReport {
	packs := make([]Pack, 0, len(export.Packs))
	for _, p := range export.Packs {
		packs = append(packs, Pack{
			ID:           p.PackID,
			ChainID:      p.ChainID,
			Seq:          p.Seq,
			Payload:      p.Payload,
			ContentHash:  p.ContentHash,
			PreviousID:   p.PreviousID,
			PreviousHash: p.PreviousHash,
			Sealed:       p.Sealed,
			CreatedAt:    p.CreatedAt,
			SealedAt:     p.SealedAt,
			KeyID:        p.KeyID,
			Sig:          p.Sig,
		})
	}
	if len(packs) == 0 {
		return types.VerifyReport{ChainID: export.ChainID, BrokenIndex: -1, Reason: "empty export"}
	}
	return verifyPacks(export.ChainID, packs)
}
