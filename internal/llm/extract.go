package llm

import "strings"

// Ordered marker table for locating the final answer inside scaffolded model
// output. The first marker present in the text (table order, not textual
// position) wins and the search stops.
var finalMarkers = []string{
	"Final Response:",
	"Final Answer:",
}

// ExtractFinalResponse strips known reasoning scaffolding from model output.
// A marker with trailing content yields that content, trimmed. A marker with
// nothing after it yields the empty string; an empty answer after a marker is
// still an answer, not a miss. Text without any marker is returned unchanged.
func ExtractFinalResponse(text string) string {
	for _, marker := range finalMarkers {
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		start := idx + len(marker)
		if start < len(text) {
			return strings.TrimSpace(text[start:])
		}
		return ""
	}

	// Colon-less variant emitted by reasoning models: a "Thinking" section
	// followed by a bare "Final Response" heading.
	if strings.Contains(text, "Thinking") && strings.Contains(text, "Final Response") {
		const heading = "Final Response"
		idx := strings.Index(text, heading)
		if start := idx + len(heading); start < len(text) {
			return strings.TrimSpace(text[start:])
		}
		return text
	}

	return text
}
