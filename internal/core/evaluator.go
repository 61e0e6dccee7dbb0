package core

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
	"github.com/mazai-xiangji/TCMD-Bench/internal/prompt"
	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// multiTurnJSONFormat describes the verdict shape the expert prompt asks
// for in multi-turn mode: three criteria, each with a score and a reason.
const multiTurnJSONFormat = `{
    "问诊评分": {
        "reason": "给出该分数的简要理由",
        "score": "评分（1-10）"
    },
    "诊断依据评分": {
        "reason": "给出该分数的简要理由",
        "score": "评分（1-10）"
    },
    "诊断结果评分": {
        "reason": "给出该分数的简要理由",
        "score": "评分（1-10）"
    }
}`

// Evaluator scores a completed multi-turn transcript with the expert model.
type Evaluator struct {
	Expert   llm.Caller
	Template *prompt.Template // placeholders: json_format, expert_full_info, dialogue
	Model    string           // for log lines only
}

// EvaluateDialogue sends case data plus the doctor's transcript to the
// expert model and returns the parsed verdict. The returned value is always
// usable for persistence: either the expert's score mapping or an
// *EvalError; ok reports which.
func (e *Evaluator) EvaluateDialogue(ctx context.Context, c pkg.Case, history []llm.Message) (verdict any, ok bool) {
	if e.Expert == nil {
		return &EvalError{Kind: ErrKindNoClient}, false
	}
	if len(history) == 0 {
		return &EvalError{Kind: ErrKindEmptyHistory}, false
	}

	// Forced-failure placeholders carry no clinical content; the expert
	// must never see them.
	clean := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if strings.HasPrefix(m.Content, ErrorMarkerPrefix) {
			continue
		}
		clean = append(clean, m)
	}
	dialogueJSON, err := json.MarshalIndent(clean, "", "    ")
	if err != nil {
		return &EvalError{Kind: ErrKindPromptFormat, Details: err.Error()}, false
	}

	rendered, err := e.Template.Render(map[string]string{
		"json_format":      multiTurnJSONFormat,
		"expert_full_info": expertFullInfo(c),
		"dialogue":         string(dialogueJSON),
	})
	if err != nil {
		return &EvalError{Kind: ErrKindPromptFormat, Details: err.Error()}, false
	}

	log.Printf("evaluator: sending transcript to expert model %s", e.Model)
	reply, err := e.Expert.Respond(ctx, []llm.Message{{Role: llm.RoleUser, Content: rendered}})
	if err != nil {
		log.Printf("evaluator: expert model failed: %v", err)
		return &EvalError{Kind: ErrKindNoResponse}, false
	}

	mapping, perr := ParseExpertEvaluation(reply)
	if perr != nil {
		log.Printf("evaluator: could not parse expert verdict: %v", perr)
		return perr, false
	}
	return mapping, true
}
