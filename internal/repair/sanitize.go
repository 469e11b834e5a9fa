package repair

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gavelhq/gavel/internal/integrity"
)

// RedactionMarker replaces adversarial content in sanitized payloads.
const RedactionMarker = "[REDACTED]"

const (
	adversarialConfidence = 95
	fieldRuleConfidence   = 90
)

type fieldRule struct {
	name    string
	matches func(fieldName string) bool
	apply   func(value string) string
	reason  string
}

var ssnCleaner = regexp.MustCompile(`[^0-9-]`)
var traversalCleaner = regexp.MustCompile(`\.\./|\.\.\\`)
var shellMetaCleaner = regexp.MustCompile("[;&|$`<>]")

var fieldRules = []fieldRule{
	{
		name:    "ssn_digits_only",
		matches: func(f string) bool { return strings.Contains(f, "ssn") },
		apply:   func(v string) string { return ssnCleaner.ReplaceAllString(v, "") },
		reason:  "SSN fields may only contain digits and hyphens",
	},
	{
		name:    "filename_safe_chars",
		matches: func(f string) bool { return strings.Contains(f, "filename") || strings.Contains(f, "file_name") },
		apply: func(v string) string {
			return shellMetaCleaner.ReplaceAllString(traversalCleaner.ReplaceAllString(v, ""), "")
		},
		reason: "filenames may not contain traversal sequences or shell metacharacters",
	},
}

// Sanitize deterministically walks every string leaf, redacts matches
// of the fixed adversarial pattern list, then applies field-name-keyed
// rules. Every replacement is recorded with a fixed confidence and a
// source tag naming the rule that fired. The input payload is never
// mutated.
func Sanitize(payload map[string]any) (map[string]any, []Change) {
	var changes []Change
	sanitized := sanitizeMap("", payload, &changes)
	return sanitized, changes
}

func sanitizeMap(base string, m map[string]any, changes *[]Change) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		out[key] = sanitizeValue(joinPath(base, key), key, m[key], changes)
	}
	return out
}

func sanitizeValue(path, fieldName string, v any, changes *[]Change) any {
	switch value := v.(type) {
	case string:
		return sanitizeString(path, fieldName, value, changes)
	case map[string]any:
		return sanitizeMap(path, value, changes)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = sanitizeValue(joinPath(path, strconv.Itoa(i)), fieldName, item, changes)
		}
		return out
	default:
		return v
	}
}

func sanitizeString(path, fieldName, value string, changes *[]Change) string {
	current := value

	for _, pattern := range integrity.AdversarialPatterns() {
		replaced := pattern.Regex.ReplaceAllString(current, RedactionMarker)
		if replaced != current {
			*changes = append(*changes, Change{
				FieldPath:  path,
				Before:     current,
				After:      replaced,
				Reason:     "adversarial content redacted",
				Source:     "adversarial_pattern:" + pattern.Name,
				Confidence: adversarialConfidence,
			})
			current = replaced
		}
	}

	lowerField := strings.ToLower(fieldName)
	for _, rule := range fieldRules {
		if !rule.matches(lowerField) {
			continue
		}
		cleaned := rule.apply(current)
		if cleaned != current {
			*changes = append(*changes, Change{
				FieldPath:  path,
				Before:     current,
				After:      cleaned,
				Reason:     rule.reason,
				Source:     "field_rule:" + rule.name,
				Confidence: fieldRuleConfidence,
			})
			current = cleaned
		}
	}
	return current
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
