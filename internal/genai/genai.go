// Package genai wraps the external text-generation collaborator. The
// core treats it purely as an unreliable remote function: every failure
// maps to ErrExternalCall and callers degrade to their no-change
// fallback instead of propagating.
package genai

import (
	"context"
	"errors"
)

var ErrExternalCall = errors.New("text generation call failed")

// Generator is the single abstraction through which the integrity
// checker and the reconciler reach the text-generation capability.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string, maxTokens int) (string, error)
}
