package core

import (
	"context"
	"log"

	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
	"github.com/mazai-xiangji/TCMD-Bench/internal/prompt"
	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// OneStep runs the single-shot diagnosis path: one doctor call, one expert
// call, no dialogue simulation. It always returns a persistable result.
// The doctor template holds the fixed diagnosis instructions; the expected
// verdict shape is embedded in the expert template.
type OneStep struct {
	Test    llm.Caller
	Expert  llm.Caller
	Prompts prompt.Set // one_step_doctor, one_step_expert
}

// Evaluate processes one case and returns its result record. Failures are
// encoded in the record's status; only the caller's recover boundary handles
// anything worse.
func (o *OneStep) Evaluate(ctx context.Context, caseID string, c pkg.Case) pkg.Result {
	res := pkg.Result{CaseID: caseID}

	if o.Test == nil || o.Expert == nil {
		res.Status = pkg.StatusSimulationFailed
		res.ErrorMessage = "test and expert backends are required"
		return res
	}

	doctorTmpl := o.Prompts.Get(PromptOneStepDoctor)
	if doctorTmpl == nil {
		res.Status = pkg.StatusSimulationFailed
		res.ErrorMessage = "one_step_doctor template missing"
		return res
	}
	instruction, err := doctorTmpl.Render(nil)
	if err != nil {
		res.Status = pkg.StatusSimulationFailed
		res.ErrorMessage = err.Error()
		return res
	}
	// The diagnosis instruction is the system message; the case info travels
	// as its own user message.
	doctorMsgs := []llm.Message{
		{Role: llm.RoleSystem, Content: instruction},
		{Role: llm.RoleUser, Content: oneStepDoctorInfo(c)},
	}

	log.Printf("onestep: requesting diagnosis for case %s", caseID)
	doctorOut, err := o.Test.Respond(ctx, doctorMsgs)
	if err != nil {
		log.Printf("onestep: doctor model failed for case %s: %v", caseID, err)
		res.Status = pkg.StatusSimulationFailed
		res.ErrorMessage = err.Error()
		return res
	}
	res.ModelOutput = doctorOut

	tmpl := o.Prompts.Get(PromptOneStepExpert)
	if tmpl == nil {
		res.Status = pkg.StatusEvaluationFailed
		res.Evaluation = &EvalError{Kind: ErrKindPromptFormat, Details: "one_step_expert template missing"}
		return res
	}
	rendered, err := tmpl.Render(map[string]string{
		"expert_full_info": expertFullInfo(c),
		"doctor_output":    doctorOut,
	})
	if err != nil {
		res.Status = pkg.StatusEvaluationFailed
		res.Evaluation = &EvalError{Kind: ErrKindPromptFormat, Details: err.Error()}
		return res
	}

	log.Printf("onestep: requesting evaluation for case %s", caseID)
	reply, err := o.Expert.Respond(ctx, []llm.Message{{Role: llm.RoleUser, Content: rendered}})
	if err != nil {
		log.Printf("onestep: expert model failed for case %s: %v", caseID, err)
		res.Status = pkg.StatusEvalNoResponse
		return res
	}

	mapping, perr := ParseExpertEvaluation(reply)
	if perr != nil {
		log.Printf("onestep: could not parse verdict for case %s: %v", caseID, perr)
		res.Status = pkg.StatusEvalParsingError
		res.Evaluation = perr
		return res
	}
	res.Status = pkg.StatusCompleted
	res.Evaluation = mapping
	return res
}
