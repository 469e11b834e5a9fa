package genai

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedGenerator replays canned responses in order. Test double for
// the repair and integrity paths.
type ScriptedGenerator struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Calls     []string
}

func (g *ScriptedGenerator) Generate(_ context.Context, _ string, userMessage string, _ int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Calls = append(g.Calls, userMessage)
	if g.Err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalCall, g.Err)
	}
	if len(g.Responses) == 0 {
		return "", fmt.Errorf("%w: script exhausted", ErrExternalCall)
	}
	next := g.Responses[0]
	g.Responses = g.Responses[1:]
	return next, nil
}

// CallCount reports how many times the generator was invoked.
func (g *ScriptedGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
