package core

import (
	"context"
	"log"
	"strings"

	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
	"github.com/mazai-xiangji/TCMD-Bench/internal/prompt"
)

// NextRole is the participant selected to answer the doctor's latest
// utterance. It is recomputed every turn from that utterance alone and is
// never cached.
type NextRole int

const (
	NextPatient NextRole = iota
	NextAssistant
	NextExpert
)

func (r NextRole) String() string {
	switch r {
	case NextAssistant:
		return "assistant"
	case NextExpert:
		return "expert"
	default:
		return "patient"
	}
}

// Role tokens the simulated agents use on the wire. The dialogue protocol is
// Chinese; the tokens are data, not code.
const (
	tokenPatient   = "患者"
	tokenAssistant = "助理"
	tokenExpert    = "专家"
)

// Ordered dispatch table for the router's reply. First substring match wins;
// the order is the routing priority and is exercised directly by tests.
var routeTokens = []struct {
	token string
	role  NextRole
}{
	{tokenPatient, NextPatient},
	{tokenAssistant, NextAssistant},
	{tokenExpert, NextExpert},
}

// Router decides which participant should respond next. It shares the
// simulation backend with the patient and assistant agents.
type Router struct {
	Sim      llm.Caller       // nil when the simulation backend is not configured
	Template *prompt.Template // router prompt with a {dialogue_context} placeholder
	Model    string           // for log lines only
}

// Route classifies the doctor's latest utterance. Defaults are asymmetric on
// purpose: an unavailable routing capability ends the dialogue (expert),
// while a router that answered unintelligibly or failed transiently keeps
// the consultation going (patient).
func (r *Router) Route(ctx context.Context, doctorUtterance string) NextRole {
	if r.Sim == nil {
		log.Printf("router: simulation backend unavailable, defaulting to expert")
		return NextExpert
	}
	if r.Template == nil {
		log.Printf("router: prompt template missing, defaulting to patient")
		return NextPatient
	}

	rendered, err := r.Template.Render(map[string]string{"dialogue_context": doctorUtterance})
	if err != nil {
		log.Printf("router: prompt render failed (%v), defaulting to patient", err)
		return NextPatient
	}

	reply, err := r.Sim.Respond(ctx, []llm.Message{{Role: llm.RoleUser, Content: rendered}})
	if err != nil {
		log.Printf("router: %s call failed (%v), defaulting to patient", r.Model, err)
		return NextPatient
	}

	lower := strings.ToLower(reply)
	for _, entry := range routeTokens {
		if strings.Contains(lower, entry.token) {
			return entry.role
		}
	}
	log.Printf("router: unrecognized reply %q, defaulting to patient", reply)
	return NextPatient
}
