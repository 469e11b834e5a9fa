package integrity

import (
	"regexp"
	"sort"
	"strconv"
)

// Pattern is one adversarial content rule. The list is fixed: the same
// rules that lower the integrity score here drive redaction in the
// sanitizer, so detection and remediation never disagree.
type Pattern struct {
	Name  string
	Regex *regexp.Regexp
}

var adversarialPatterns = []Pattern{
	{Name: "prompt_injection", Regex: regexp.MustCompile(`(?i)(ignore|disregard) (all )?(previous|prior) (instructions|prompts|context)`)},
	{Name: "prompt_injection_role", Regex: regexp.MustCompile(`(?i)you are now (a|an|the) |new system prompt`)},
	{Name: "path_traversal", Regex: regexp.MustCompile(`\.\./|\.\.\\`)},
	{Name: "script_injection", Regex: regexp.MustCompile(`(?i)<script\b|javascript:|onerror\s*=`)},
	// A backtick alone is ordinary markdown; it only counts when it
	// opens a shell command.
	{Name: "command_injection", Regex: regexp.MustCompile("\\$\\(|`\\s*(rm|curl|wget|nc|sh|bash)\\b|;\\s*(rm|curl|wget|nc)\\s")},
	{Name: "credential_harvest", Regex: regexp.MustCompile(`(?i)(enter|send|provide|confirm) your (password|credentials|api.?key|ssn)`)},
}

// AdversarialPatterns returns the fixed adversarial content rules.
func AdversarialPatterns() []Pattern {
	return adversarialPatterns
}

// WalkStrings visits every string leaf of a payload in a deterministic
// order, calling fn with the dotted field path and the value.
func WalkStrings(payload map[string]any, fn func(path, value string)) {
	walkValue("", payload, fn)
}

func walkValue(path string, v any, fn func(path, value string)) {
	switch value := v.(type) {
	case string:
		fn(path, value)
	case map[string]any:
		for _, key := range sortedKeys(value) {
			walkValue(joinPath(path, key), value[key], fn)
		}
	case []any:
		for i, item := range value {
			walkValue(joinPath(path, strconv.Itoa(i)), item, fn)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
