package repair

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/genai"
)

const reconcileSystemPrompt = `You repair anomalies in structured output from a governed agent workflow.
Rules:
- Preserve all legitimate data exactly as given.
- Prefer higher-authority sources: official records over free-text notes.
- Only change fields implicated by the anomaly.
Respond with JSON only:
{"repaired_payload": {...}, "changes": [{"field_path": "...", "before": ..., "after": ..., "reason": "...", "source": "...", "confidence": 0-100}]}`

// Reconciler delegates LOGIC_RECONCILIATION, MISSING_DATA_INFERENCE and
// CROSS_REFERENCE_FIX repairs to the external text-generation
// collaborator. Any failure returns the payload unchanged with zero
// changes; reconciliation is strictly best-effort.
type Reconciler struct {
	gen    genai.Generator
	logger *zap.Logger
}

func NewReconciler(gen genai.Generator, logger *zap.Logger) *Reconciler {
	return &Reconciler{gen: gen, logger: logger}
}

type reconcileReply struct {
	RepairedPayload map[string]any `json:"repaired_payload"`
	Changes         []Change       `json:"changes"`
}

func (r *Reconciler) Reconcile(ctx context.Context, payload map[string]any, anomaly string) (map[string]any, []Change) {
	if r == nil || r.gen == nil {
		return payload, nil
	}

	request := map[string]any{"anomaly": anomaly, "payload": payload}
	encoded, err := json.Marshal(request)
	if err != nil {
		return payload, nil
	}

	text, err := r.gen.Generate(ctx, reconcileSystemPrompt, string(encoded), 2048)
	if err != nil {
		r.logger.Warn("reconciliation call failed, keeping payload unchanged", zap.Error(err))
		return payload, nil
	}

	var reply reconcileReply
	if err := json.Unmarshal([]byte(extractJSON(text)), &reply); err != nil {
		r.logger.Warn("reconciliation reply malformed, keeping payload unchanged", zap.Error(err))
		return payload, nil
	}
	if reply.RepairedPayload == nil {
		return payload, nil
	}

	for i := range reply.Changes {
		if reply.Changes[i].Confidence < 0 {
			reply.Changes[i].Confidence = 0
		}
		if reply.Changes[i].Confidence > 100 {
			reply.Changes[i].Confidence = 100
		}
		if reply.Changes[i].Source == "" {
			reply.Changes[i].Source = "reconciliation"
		}
	}
	return reply.RepairedPayload, reply.Changes
}

func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
