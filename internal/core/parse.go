package core

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Expert model output is adversarial to strict parsing: scores arrive inside
// markdown fences, surrounded by prose, or truncated. Parsing therefore never
// fails with a Go error; every failure becomes an *EvalError value that is
// persisted alongside the raw text for diagnosis.

// EvalError kinds, stable in the persisted result file.
const (
	ErrKindStructure    = "Invalid JSON structure"
	ErrKindDecode       = "JSONDecodeError"
	ErrKindNotMapping   = "Parsed JSON is not a dictionary"
	ErrKindNoResponse   = "Expert model failed to respond"
	ErrKindEmptyHistory = "Empty dialogue history for evaluation"
	ErrKindNoClient     = "Expert client not initialized"
	ErrKindPromptFormat = "Expert prompt formatting error"
)

// rawResponseLimit caps how much raw expert text is carried inside an error
// object; enough for diagnosis without bloating the result file.
const rawResponseLimit = 2000

// EvalError is the tagged failure value produced when an expert verdict
// cannot be obtained or decoded. It marshals into the result file with the
// same shape a successful verdict would occupy.
type EvalError struct {
	Kind        string `json:"error"`
	Details     string `json:"details,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

func (e *EvalError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Details)
	}
	return e.Kind
}

var fencedJSONRe = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// ParseExpertEvaluation recovers the structured verdict from the expert
// model's free-text reply. Candidate span: the first fenced block labeled
// json, else the substring from the first '{' to the last '}'. The decoded
// mapping is returned unmodified; criterion names are not schema-checked
// here, that belongs to consumers of the result file.
func ParseExpertEvaluation(text string) (map[string]any, *EvalError) {
	var span string
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		span = m[1]
	} else {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end < 0 || start >= end {
			// No structural error truncation: the raw text is the only
			// evidence of what the model said, keep it verbatim.
			return nil, &EvalError{Kind: ErrKindStructure, RawResponse: text}
		}
		span = text[start : end+1]
	}

	var decoded any
	if err := json.Unmarshal([]byte(span), &decoded); err != nil {
		return nil, &EvalError{
			Kind:        ErrKindDecode,
			Details:     err.Error(),
			RawResponse: truncateRaw(text),
		}
	}

	mapping, ok := decoded.(map[string]any)
	if !ok {
		return nil, &EvalError{
			Kind:        ErrKindNotMapping,
			Details:     fmt.Sprintf("decoded value has type %T", decoded),
			RawResponse: truncateRaw(text),
		}
	}
	return mapping, nil
}

func truncateRaw(text string) string {
	if len(text) < rawResponseLimit {
		return text
	}
	return text[:rawResponseLimit] + "..."
}
