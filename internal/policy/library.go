package policy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownPack   = errors.New("unknown pack")
	ErrUnknownPolicy = errors.New("unknown policy")
	ErrPackExists    = errors.New("pack already registered")
	ErrInvalidPack   = errors.New("invalid pack")
	ErrValidation    = errors.New("policy validation failed")
	ErrDriftDetected = errors.New("policy content drift detected")
)

// Query narrows resolution to a worker/domain/action context. Every
// field is optional; an empty field matches all policies on that
// dimension.
type Query struct {
	WorkerType    string
	Domain        string
	ControlFamily string
	MAI           MAILevel
	Risk          RiskLevel
}

// RejectedPolicy pairs a rejected candidate with its validation result.
type RejectedPolicy struct {
	ID     string
	Result ValidationResult
}

// IngestReport summarizes a bulk load. Invalid records are rejected
// individually; the batch always continues.
type IngestReport struct {
	Accepted int
	Rejected []RejectedPolicy
}

type packEntry struct {
	meta     Pack
	policies map[string]Policy
	hash     string
}

// Library stores policies grouped into packs and resolves which apply
// to a query context. Reads take a shared lock; all writes are
// serialized, which keeps each pack's hash consistent with its members.
type Library struct {
	mu    sync.RWMutex
	packs map[string]*packEntry
	now   func() string
}

func NewLibrary(now func() string) *Library {
	return &Library{packs: map[string]*packEntry{}, now: now}
}

// AddPack registers a pack. Its type must be one of the four known
// precedence tiers; priority only breaks ties within a tier.
func (l *Library) AddPack(meta Pack) error {
	if meta.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPack)
	}
	if typeRank(meta.Type) < 0 {
		return fmt.Errorf("%w: unknown pack type %q", ErrInvalidPack, meta.Type)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.packs[meta.ID]; ok {
		return fmt.Errorf("%w: %s", ErrPackExists, meta.ID)
	}
	l.packs[meta.ID] = &packEntry{meta: meta, policies: map[string]Policy{}}
	return nil
}

// Ingest bulk-loads candidate policies into a pack. Each record is
// validated first; invalid records are reported and skipped without
// aborting the batch. Accepted records are normalized, stamped and
// hashed before storage.
func (l *Library) Ingest(packID string, candidates []Policy) (IngestReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.packs[packID]
	if !ok {
		return IngestReport{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}

	report := IngestReport{}
	for _, candidate := range candidates {
		result := Validate(candidate)
		if !result.Valid {
			report.Rejected = append(report.Rejected, RejectedPolicy{ID: candidate.ID, Result: result})
			continue
		}

		p := Normalize(candidate)
		p.PackID = packID
		hash, err := ContentHash(p)
		if err != nil {
			return report, err
		}
		p.ContentHash = hash
		stamp := l.now()
		p.CreatedAt = stamp
		p.UpdatedAt = stamp

		entry.policies[p.ID] = p
		report.Accepted++
	}

	return report, l.refreshPackHash(entry)
}

// UpdatePolicy replaces a stored policy wholesale and recomputes both
// the content hash and the owning pack's hash. Partial mutation is not
// offered on purpose.
func (l *Library) UpdatePolicy(packID string, candidate Policy) (Policy, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.packs[packID]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	existing, ok := entry.policies[candidate.ID]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %s/%s", ErrUnknownPolicy, packID, candidate.ID)
	}

	result := Validate(candidate)
	if !result.Valid {
		return Policy{}, fmt.Errorf("%w: %v", ErrValidation, result.Errors)
	}

	p := Normalize(candidate)
	p.PackID = packID
	hash, err := ContentHash(p)
	if err != nil {
		return Policy{}, err
	}
	p.ContentHash = hash
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = l.now()

	entry.policies[p.ID] = p
	return p, l.refreshPackHash(entry)
}

func (l *Library) refreshPackHash(entry *packEntry) error {
	members := make([]Policy, 0, len(entry.policies))
	for _, p := range entry.policies {
		members = append(members, p)
	}
	hash, err := PackHash(members)
	if err != nil {
		return err
	}
	entry.hash = hash
	return nil
}

// Resolve returns the active policies whose applicability filters match
// the query, ordered by descending pack precedence with policy id as the
// stable tie-break. An empty filter list on a policy matches everything
// for that dimension.
func (l *Library) Resolve(q Query) []Policy {
	l.mu.RLock()
	defer l.mu.RUnlock()

	type ranked struct {
		policy Policy
		pack   Pack
	}
	var matches []ranked

	for _, entry := range l.packs {
		for _, p := range entry.policies {
			if !p.Active || !matchesQuery(p, q) {
				continue
			}
			matches = append(matches, ranked{policy: p, pack: entry.meta})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if MorePrecedent(matches[i].pack, matches[j].pack) {
			return true
		}
		if MorePrecedent(matches[j].pack, matches[i].pack) {
			return false
		}
		return matches[i].policy.ID < matches[j].policy.ID
	})

	out := make([]Policy, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.policy)
	}
	return out
}

// ResolveEffective collapses Resolve output to the winning policy per
// control family: the higher-precedence pack's policy shadows the rest.
func (l *Library) ResolveEffective(q Query) []Policy {
	resolved := l.Resolve(q)
	seen := map[string]bool{}
	out := make([]Policy, 0, len(resolved))
	for _, p := range resolved {
		if seen[p.ControlFamily] {
			continue
		}
		seen[p.ControlFamily] = true
		out = append(out, p)
	}
	return out
}

func matchesQuery(p Policy, q Query) bool {
	if q.WorkerType != "" && !matchesFilter(p.WorkerTypes, q.WorkerType) {
		return false
	}
	if q.Domain != "" && !matchesFilter(p.Domains, q.Domain) {
		return false
	}
	if q.ControlFamily != "" && p.ControlFamily != q.ControlFamily {
		return false
	}
	if q.MAI != "" && p.MAI != q.MAI {
		return false
	}
	if q.Risk != "" && p.Risk != q.Risk {
		return false
	}
	return true
}

func matchesFilter(filter []string, value string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == value {
			return true
		}
	}
	return false
}

// Policy looks up a single stored policy.
func (l *Library) Policy(packID, policyID string) (Policy, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.packs[packID]
	if !ok {
		return Policy{}, false
	}
	p, ok := entry.policies[policyID]
	return p, ok
}

// PackHash returns the stored hash for a pack.
func (l *Library) PackHash(packID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.packs[packID]
	if !ok {
		return "", false
	}
	return entry.hash, true
}

// Packs lists registered pack metadata in precedence order.
func (l *Library) Packs() []Pack {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Pack, 0, len(l.packs))
	for _, entry := range l.packs {
		out = append(out, entry.meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return MorePrecedent(out[i], out[j])
	})
	return out
}

// CheckDrift audits a stored policy for unlogged mutation. Callers must
// run this before trusting a policy's evaluated outcome in an audit
// context; a drifted policy returns ErrDriftDetected.
func (l *Library) CheckDrift(packID, policyID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.packs[packID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	p, ok := entry.policies[policyID]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPolicy, packID, policyID)
	}

	drifted, err := DetectDrift(p)
	if err != nil {
		return err
	}
	if drifted {
		return fmt.Errorf("%w: %s/%s", ErrDriftDetected, packID, policyID)
	}
	return nil
}
