package evidence

import (
	"sort"
	"sync"
)

// InMemoryStore keeps chains in process memory. Payloads are deep-copied
// on the way in and out so callers cannot mutate stored evidence through
// a shared reference.
type InMemoryStore struct {
	mu     sync.Mutex
	chains map[string]map[string]Pack
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chains: map[string]map[string]Pack{}}
}

func (s *InMemoryStore) PutPack(p Pack) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain, ok := s.chains[p.ChainID]
	if !ok {
		chain = map[string]Pack{}
		s.chains[p.ChainID] = chain
	}
	p.Payload = copyPayload(p.Payload)
	chain[p.ID] = p
	return nil
}

func (s *InMemoryStore) GetPack(chainID, packID string) (Pack, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.chains[chainID][packID]
	if !ok {
		return Pack{}, false, nil
	}
	p.Payload = copyPayload(p.Payload)
	return p, true, nil
}

func (s *InMemoryStore) ListChain(chainID string) ([]Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chain := s.chains[chainID]
	out := make([]Pack, 0, len(chain))
	for _, p := range chain {
		p.Payload = copyPayload(p.Payload)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *InMemoryStore) Head(chainID string) (Pack, bool, error) {
	packs, err := s.ListChain(chainID)
	if err != nil || len(packs) == 0 {
		return Pack{}, false, err
	}
	return packs[len(packs)-1], true, nil
}

func (s *InMemoryStore) Chains() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.chains))
	for id := range s.chains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Corrupt rewrites a stored pack's payload without touching its hash.
// Test hook for tamper-detection scenarios.
func (s *InMemoryStore) Corrupt(chainID, packID string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.chains[chainID][packID]; ok {
		p.Payload = copyPayload(payload)
		s.chains[chainID][packID] = p
	}
}

func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return copyPayload(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
