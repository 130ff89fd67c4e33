// Package grading contains the core of the service: the per-company
// orchestration loop that grades every scoring-guide question against
// retrieved evidence, and the parser for the model's delimited text output.
package grading

import "strings"

// Sentinel values recorded when a model response does not follow the
// mandated output template.
const (
	SentinelScore       = "N/A"
	SentinelExplanation = "No explanation provided"
	SentinelContext     = "No context provided"
)

const delimiter = "---"

// Field prefixes are case-sensitive and located independently of each
// other, so a response may populate any subset of them.
const (
	scorePrefix       = "Score:"
	explanationPrefix = "Explanation:"
	contextPrefix     = "Context:"
)

// Parsed holds the three fields extracted from a model response. Score is
// opaque text; no numeric validation is applied.
type Parsed struct {
	Score       string
	Explanation string
	Context     string
}

// Sentinel returns the triple recorded for unusable model output.
func Sentinel() Parsed {
	return Parsed{
		Score:       SentinelScore,
		Explanation: SentinelExplanation,
		Context:     SentinelContext,
	}
}

// Parse extracts the structured fields from a raw model response. The
// response is expected to contain a "---" delimiter followed by Score:,
// Explanation: and Context: lines. A missing delimiter yields the sentinel
// triple; within a delimited response, each missing field independently
// yields an empty string.
func Parse(raw string) Parsed {
	parts := strings.Split(raw, delimiter)
	if len(parts) < 2 {
		return Sentinel()
	}

	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	return Parsed{
		Score:       fieldValue(lines, scorePrefix),
		Explanation: fieldValue(lines, explanationPrefix),
		Context:     fieldValue(lines, contextPrefix),
	}
}

// fieldValue returns the trimmed value of the first line carrying the
// prefix, or the empty string when no line matches.
func fieldValue(lines []string, prefix string) string {
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}
