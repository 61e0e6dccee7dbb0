package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
	"github.com/mazai-xiangji/TCMD-Bench/internal/prompt"
	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

// Prompt set role names shared between the loader and the simulator.
const (
	PromptPatient   = "patient"
	PromptDoctor    = "doctor"
	PromptAssistant = "assistant"
	PromptRouter    = "router"
	PromptExpert    = "expert"

	PromptOneStepDoctor = "one_step_doctor"
	PromptOneStepExpert = "one_step_expert"
)

// openingDoctorLine seeds every consultation; the patient answers it before
// the doctor model ever speaks.
const openingDoctorLine = "你好，请问有哪里不舒服的吗"

// assistantMarker is the leading token the doctor model uses to address the
// assistant instead of the patient. It is stripped before forwarding.
const assistantMarker = "<对助理>"

// ErrorMarkerPrefix tags placeholder messages appended to the transcript
// when a participant fails to respond. The evaluator filters them out before
// the transcript reaches the expert.
const ErrorMarkerPrefix = "[ERROR:"

const (
	markerDoctorFailed    = "[ERROR: Doctor Model Failed to Respond]"
	markerPatientFailed   = "[ERROR: Patient Failed to Respond]"
	markerAssistantFailed = "[ERROR: Assistant Failed to Respond]"
	markerFinalFailed     = "[ERROR: Failed to generate final diagnosis after max turns]"
)

// ErrSimulationFailed marks a case where no usable transcript could be
// produced at all (missing template, bad placeholder, or no opening
// exchange). Partial mid-dialogue failures do NOT produce this error; the
// transcript collected so far is still returned for evaluation.
var ErrSimulationFailed = errors.New("core: dialogue simulation failed")

// Simulator drives the multi-turn consultation state machine for one case.
// All dialogue state lives inside Run; a Simulator is safe to reuse across
// cases processed sequentially.
type Simulator struct {
	Sim      llm.Caller // patient and assistant agents
	Test     llm.Caller // doctor under test
	Router   *Router
	Prompts  prompt.Set
	MaxTurns int
}

// Run simulates the consultation and returns the doctor-under-test's
// transcript with the leading system message removed. An empty slice (no
// completed exchange) is a valid result, not a failure.
func (s *Simulator) Run(ctx context.Context, c pkg.Case) ([]llm.Message, error) {
	if s.Sim == nil || s.Test == nil {
		return nil, fmt.Errorf("%w: simulation and test backends are required", ErrSimulationFailed)
	}

	patientSys, doctorSys, assistantSys, err := s.systemPrompts(c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSimulationFailed, err)
	}

	doctorMsgs := []llm.Message{{Role: llm.RoleSystem, Content: doctorSys}}
	patientMsgs := []llm.Message{{Role: llm.RoleSystem, Content: patientSys}}
	assistantMsgs := []llm.Message{{Role: llm.RoleSystem, Content: assistantSys}}

	// Opening exchange. Without it there is no consultation to speak of, so
	// a failure here aborts the whole case.
	patientMsgs = append(patientMsgs, llm.Message{Role: llm.RoleUser, Content: openingDoctorLine})
	log.Printf("dialogue: turn 0, doctor opens: %s", openingDoctorLine)

	patientReply, err := s.Sim.Respond(ctx, patientMsgs)
	if err != nil {
		return nil, fmt.Errorf("%w: no initial patient reply: %v", ErrSimulationFailed, err)
	}
	log.Printf("dialogue: turn 0, patient replies: %s", clip(patientReply, 100))
	patientMsgs = append(patientMsgs, llm.Message{Role: llm.RoleAssistant, Content: patientReply})
	doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleUser, Content: patientReply})

	routerStopped := false
	exchangeFailed := false
	turn := 0
	for turn < s.MaxTurns {
		turn++
		log.Printf("dialogue: --- turn %d/%d ---", turn, s.MaxTurns)

		doctorOut, err := s.Test.Respond(ctx, doctorMsgs)
		if err != nil {
			log.Printf("dialogue: doctor model failed on turn %d: %v", turn, err)
			doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleAssistant, Content: markerDoctorFailed})
			exchangeFailed = true
			break
		}
		log.Printf("dialogue: turn %d, doctor: %s", turn, clip(doctorOut, 150))
		doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleAssistant, Content: doctorOut})

		next := s.Router.Route(ctx, doctorOut)
		if next == NextExpert {
			log.Printf("dialogue: router directed to expert, consultation concluded")
			routerStopped = true
			break
		}

		// The forwarded query never carries the addressing marker.
		query := doctorOut
		if strings.HasPrefix(strings.TrimSpace(doctorOut), assistantMarker) {
			query = strings.TrimSpace(strings.Replace(doctorOut, assistantMarker, "", 1))
		}

		if next == NextAssistant {
			assistantMsgs = append(assistantMsgs, llm.Message{Role: llm.RoleUser, Content: query})
			reply, err := s.Sim.Respond(ctx, assistantMsgs)
			if err != nil {
				log.Printf("dialogue: assistant failed on turn %d: %v", turn, err)
				doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleUser, Content: markerAssistantFailed})
				exchangeFailed = true
				break
			}
			log.Printf("dialogue: turn %d, assistant: %s", turn, clip(reply, 100))
			assistantMsgs = append(assistantMsgs, llm.Message{Role: llm.RoleAssistant, Content: reply})
			doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleUser, Content: reply})
		} else {
			patientMsgs = append(patientMsgs, llm.Message{Role: llm.RoleUser, Content: query})
			reply, err := s.Sim.Respond(ctx, patientMsgs)
			if err != nil {
				log.Printf("dialogue: patient failed on turn %d: %v", turn, err)
				doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleUser, Content: markerPatientFailed})
				exchangeFailed = true
				break
			}
			log.Printf("dialogue: turn %d, patient: %s", turn, clip(reply, 100))
			patientMsgs = append(patientMsgs, llm.Message{Role: llm.RoleAssistant, Content: reply})
			doctorMsgs = append(doctorMsgs, llm.Message{Role: llm.RoleUser, Content: reply})
		}
	}

	// Turn budget exhausted without the router concluding the consultation:
	// force one final diagnosis from the full transcript so far. A loop that
	// ended on a participant failure does not get the extra call.
	if turn >= s.MaxTurns && !routerStopped && !exchangeFailed {
		log.Printf("dialogue: max turns (%d) reached, forcing final diagnosis", s.MaxTurns)
		doctorMsgs = append(doctorMsgs, s.forceFinalDiagnosis(ctx, doctorMsgs))
	}

	if len(doctorMsgs) <= 1 {
		return []llm.Message{}, nil
	}
	return doctorMsgs[1:], nil
}

// systemPrompts renders the three agent system prompts from the case data.
func (s *Simulator) systemPrompts(c pkg.Case) (patient, doctor, assistant string, err error) {
	pt := s.Prompts.Get(PromptPatient)
	dt := s.Prompts.Get(PromptDoctor)
	at := s.Prompts.Get(PromptAssistant)
	if pt == nil || dt == nil || at == nil {
		return "", "", "", errors.New("missing patient/doctor/assistant prompt template")
	}

	patient, err = pt.Render(map[string]string{"patient_full_info": patientFullInfo(c)})
	if err != nil {
		return "", "", "", err
	}
	// The doctor prompt is static role instructions with no case data.
	doctor, err = dt.Render(nil)
	if err != nil {
		return "", "", "", err
	}
	assistant, err = at.Render(map[string]string{"assistant_full_info": assistantFullInfo(c)})
	if err != nil {
		return "", "", "", err
	}
	return patient, doctor, assistant, nil
}

// forceFinalDiagnosis issues a synthetic single-message prompt carrying the
// serialized transcript and returns the doctor's answer (or an error marker)
// as the transcript's closing message.
func (s *Simulator) forceFinalDiagnosis(ctx context.Context, doctorMsgs []llm.Message) llm.Message {
	history := "[Error serializing dialogue history]"
	if b, err := json.MarshalIndent(doctorMsgs[1:], "", "  "); err == nil {
		history = string(b)
	}

	instruction := fmt.Sprintf(
		"请根据你跟患者/助理的对话内容，推断出患者可能的疾病，诊断结果包括病名和中医证型，同时给出详细的诊断依据。对话内容如下：\n%s",
		history)

	out, err := s.Test.Respond(ctx, []llm.Message{{Role: llm.RoleUser, Content: instruction}})
	if err != nil {
		log.Printf("dialogue: forced final diagnosis failed: %v", err)
		return llm.Message{Role: llm.RoleAssistant, Content: markerFinalFailed}
	}
	log.Printf("dialogue: forced final diagnosis: %s", clip(out, 150))
	return llm.Message{Role: llm.RoleAssistant, Content: out}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
