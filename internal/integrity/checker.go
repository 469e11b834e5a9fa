// Package integrity scores agent output for trustworthiness. The check
// combines a deterministic pattern scan with one optional external
// classification call; the external path is best-effort and the check
// degrades to heuristic-only when it fails.
package integrity

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/gavelhq/gavel/internal/genai"
)

// ResilienceThreshold is the integrity score at which a payload is
// considered clean enough to proceed without repair.
const ResilienceThreshold = 85

const patternPenalty = 25

// Result is the outcome of one automated integrity check.
type Result struct {
	Resilient       bool     `json:"resilient"`
	IntegrityScore  int      `json:"integrity_score"`
	AnomalyDetected string   `json:"anomaly_detected,omitempty"`
	AnomalyType     string   `json:"anomaly_type,omitempty"`
	AffectedFields  []string `json:"affected_fields,omitempty"`
}

// Checker runs the automated integrity check. The generator is
// optional; with a nil generator the check is purely rule-based.
type Checker struct {
	gen    genai.Generator
	logger *zap.Logger
}

func NewChecker(gen genai.Generator, logger *zap.Logger) *Checker {
	return &Checker{gen: gen, logger: logger}
}

// Check scans payload string leaves against the adversarial pattern
// list, then asks the external classifier for a second opinion. The
// lower of the two scores wins; external failure is non-fatal.
func (c *Checker) Check(ctx context.Context, payload map[string]any) Result {
	result := c.scan(payload)

	if c.gen != nil {
		if external, ok := c.classify(ctx, payload); ok {
			result = merge(result, external)
		}
	}

	result.Resilient = result.AnomalyDetected == "" && result.IntegrityScore >= ResilienceThreshold
	return result
}

func (c *Checker) scan(payload map[string]any) Result {
	result := Result{IntegrityScore: 100}

	var matched []string
	WalkStrings(payload, func(path, value string) {
		for _, pattern := range AdversarialPatterns() {
			if pattern.Regex.MatchString(value) {
				matched = append(matched, pattern.Name)
				result.AffectedFields = append(result.AffectedFields, path)
				break
			}
		}
	})

	if len(matched) > 0 {
		result.IntegrityScore -= patternPenalty * len(matched)
		if result.IntegrityScore < 0 {
			result.IntegrityScore = 0
		}
		result.AnomalyType = "ADVERSARIAL_CONTENT"
		result.AnomalyDetected = "adversarial patterns matched: " + strings.Join(matched, ", ")
	}
	return result
}

const classifySystemPrompt = `You are an output integrity classifier for a governed agent workflow.
Given a JSON payload, respond with JSON only:
{"integrity_score": 0-100, "anomaly_detected": "<description or empty>", "anomaly_type": "<LOGIC_INCONSISTENCY|FORMAT_ERROR|MISSING_DATA|DUPLICATE_DATA|CROSS_REFERENCE_MISMATCH|ADVERSARIAL_CONTENT or empty>", "affected_fields": ["path", ...]}`

type externalVerdict struct {
	IntegrityScore  int      `json:"integrity_score"`
	AnomalyDetected string   `json:"anomaly_detected"`
	AnomalyType     string   `json:"anomaly_type"`
	AffectedFields  []string `json:"affected_fields"`
}

func (c *Checker) classify(ctx context.Context, payload map[string]any) (externalVerdict, bool) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return externalVerdict{}, false
	}

	text, err := c.gen.Generate(ctx, classifySystemPrompt, string(encoded), 512)
	if err != nil {
		c.logger.Debug("external classification unavailable", zap.Error(err))
		return externalVerdict{}, false
	}

	var verdict externalVerdict
	if err := json.Unmarshal([]byte(extractJSON(text)), &verdict); err != nil {
		c.logger.Debug("external classification malformed", zap.Error(err))
		return externalVerdict{}, false
	}
	if verdict.IntegrityScore < 0 || verdict.IntegrityScore > 100 {
		return externalVerdict{}, false
	}
	return verdict, true
}

func merge(heuristic Result, external externalVerdict) Result {
	out := heuristic
	if external.IntegrityScore < out.IntegrityScore {
		out.IntegrityScore = external.IntegrityScore
	}
	if out.AnomalyDetected == "" && external.AnomalyDetected != "" {
		out.AnomalyDetected = external.AnomalyDetected
		out.AnomalyType = external.AnomalyType
	}
	out.AffectedFields = appendMissing(out.AffectedFields, external.AffectedFields)
	return out
}

func appendMissing(base, extra []string) []string {
	seen := map[string]bool{}
	for _, f := range base {
		seen[f] = true
	}
	for _, f := range extra {
		if !seen[f] {
			base = append(base, f)
			seen[f] = true
		}
	}
	return base
}

// extractJSON tolerates models that wrap their JSON answer in prose or
// code fences by slicing from the first brace to the last.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return text
	}
	return text[start : end+1]
}
