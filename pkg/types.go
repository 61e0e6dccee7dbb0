package pkg

import (
	"encoding/json"
	"fmt"
)

// Case is one structured medical record from the evaluation set. The file
// format is externally owned, so the record is kept as a raw mapping and
// never mutated; accessors below pull out the sections the prompts need.
type Case map[string]any

// Section keys used by the evaluation set. The case files are authored in
// Chinese and the keys are part of the data format, not of this code.
const (
	KeyPatientInfo    = "患者个人信息" // patient personal info
	KeyConsultInfo    = "问诊信息"   // consultation info
	KeyOtherInfo      = "其余信息"   // ancillary info
	KeyDiagnosis      = "诊断结果"   // ground-truth diagnosis result
	KeyDiagnosisBasis = "诊断依据"   // ground-truth diagnosis basis
)

// ID resolves the stable identity of the case: the "id" field, then
// "case_id", then a positional fallback derived from the input index.
func (c Case) ID(index int) string {
	for _, key := range []string{"id", "case_id"} {
		switch v := c[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("case_index_%d", index)
}

// Section returns the serialized form of one case section. A missing
// section serializes as an empty object rather than failing, and plain
// string values are passed through unquoted.
func (c Case) Section(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return "{}"
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Result statuses persisted to the output file. These are part of the
// result-file format and must stay stable across runs.
const (
	StatusCompleted        = "Completed"
	StatusSimulationFailed = "Simulation Failed"
	StatusEvaluationFailed = "Evaluation Failed"
	StatusEvalParsingError = "Completed with Evaluation Parsing Error"
	StatusEvalNoResponse   = "Completed with Evaluation Error (No Response)"
	StatusUnhandled        = "Unhandled Exception"
)

// DialogueMessage is one entry of a persisted dialogue transcript.
type DialogueMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the per-case record appended to the output file. Multi-turn
// runs fill DialogueHistory, one-step runs fill ModelOutput; Evaluation is
// either the expert's score mapping or a tagged error object.
type Result struct {
	CaseID          string            `json:"case_id"`
	Status          string            `json:"status"`
	DialogueHistory []DialogueMessage `json:"dialogue_history,omitempty"`
	ModelOutput     string            `json:"model_output,omitempty"`
	Evaluation      any               `json:"evaluation,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}
