// Command tcmdbench evaluates a doctor language model on structured TCM
// cases, either by simulating a multi-turn consultation and scoring the
// transcript, or by scoring a single-shot diagnosis.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/mazai-xiangji/TCMD-Bench/internal/config"
	"github.com/mazai-xiangji/TCMD-Bench/internal/core"
	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
	"github.com/mazai-xiangji/TCMD-Bench/internal/prompt"
	"github.com/mazai-xiangji/TCMD-Bench/internal/store"
	"github.com/mazai-xiangji/TCMD-Bench/pkg"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	log.Printf("mode: %s, cases: %s, output: %s", cfg.Mode, cfg.CasePath, cfg.OutputPath)
	log.Printf("test model: %s, expert model: %s", cfg.Test.Model, cfg.Expert.Model)
	if cfg.Mode == config.ModeMultiTurn {
		log.Printf("simulation model: %s, max dialogue turns: %d", cfg.Sim.Model, cfg.MaxDialogueTurns)
	}

	// Required prompt templates are a startup concern: a missing file or an
	// unreadable template means no case could ever be processed.
	var promptNames map[string]string
	if cfg.Mode == config.ModeMultiTurn {
		promptNames = cfg.MultiTurnPrompts()
	} else {
		promptNames = cfg.OneStepPrompts()
	}
	prompts, err := prompt.LoadSet(cfg.PromptsDir, promptNames)
	if err != nil {
		log.Fatalf("failed to load prompts for mode %s: %v", cfg.Mode, err)
	}
	log.Printf("loaded %d prompt templates from %s", len(prompts), cfg.PromptsDir)

	testClient := llm.NewClient(llm.Config{
		BaseURL:    cfg.Test.BaseURL,
		APIKey:     cfg.Test.APIKey,
		Model:      cfg.Test.Model,
		TestModel:  true,
		OutputPath: cfg.OutputPath,
	})
	expertClient := llm.NewClient(llm.Config{
		BaseURL: cfg.Expert.BaseURL,
		APIKey:  cfg.Expert.APIKey,
		Model:   cfg.Expert.Model,
	})

	var simClient llm.Caller
	var simulator *core.Simulator
	var evaluator *core.Evaluator
	var oneStep *core.OneStep

	switch cfg.Mode {
	case config.ModeMultiTurn:
		if cfg.Sim.BaseURL == "" {
			log.Fatalf("simulation backend is required for multi-turn mode")
		}
		simClient = llm.NewClient(llm.Config{
			BaseURL: cfg.Sim.BaseURL,
			APIKey:  cfg.Sim.APIKey,
			Model:   cfg.Sim.Model,
		})
		simulator = &core.Simulator{
			Sim:  simClient,
			Test: testClient,
			Router: &core.Router{
				Sim:      simClient,
				Template: prompts.Get(core.PromptRouter),
				Model:    cfg.Sim.Model,
			},
			Prompts:  prompts,
			MaxTurns: cfg.MaxDialogueTurns,
		}
		evaluator = &core.Evaluator{
			Expert:   expertClient,
			Template: prompts.Get(core.PromptExpert),
			Model:    cfg.Expert.Model,
		}
	case config.ModeOneStep:
		oneStep = &core.OneStep{Test: testClient, Expert: expertClient, Prompts: prompts}
	}

	cases, err := store.LoadCases(cfg.CasePath)
	if err != nil {
		log.Fatalf("failed to load cases: %v", err)
	}
	results, err := store.OpenResults(cfg.OutputPath)
	if err != nil {
		log.Fatalf("failed to open result file: %v", err)
	}
	log.Printf("loaded %d cases, found %d existing results", len(cases), results.Len())

	var archive *store.Archive
	if cfg.ArchiveDSN != "" {
		archive, err = store.OpenArchive(cfg.ArchiveDSN)
		if err != nil {
			log.Fatalf("failed to open results archive: %v", err)
		}
		defer archive.Close()
		log.Printf("archiving results to Postgres, run id %s", archive.RunID())
	}

	ctx := context.Background()
	processed, skipped := 0, 0
	for i, c := range cases {
		caseID := c.ID(i)
		if results.Has(caseID) {
			skipped++
			continue
		}
		log.Printf("--- processing case %d/%d (id: %s) ---", i+1, len(cases), caseID)

		res := processCase(ctx, cfg.Mode, caseID, c, simulator, evaluator, oneStep)
		if err := results.Append(res); err != nil {
			// Keep going: losing one save must not abort a long batch run.
			log.Printf("CRITICAL: failed to save result for case %s: %v", caseID, err)
		}
		if archive != nil {
			if err := archive.Record(ctx, res); err != nil {
				log.Printf("archive write failed for case %s: %v", caseID, err)
			}
		}
		processed++
	}

	log.Printf("processing finished: %d processed, %d skipped, %d total results in %s",
		processed, skipped, results.Len(), cfg.OutputPath)
}

// processCase runs one case in the selected mode. A panic anywhere inside a
// case becomes an Unhandled Exception record; one catastrophic case never
// aborts the run.
func processCase(ctx context.Context, mode, caseID string, c pkg.Case,
	simulator *core.Simulator, evaluator *core.Evaluator, oneStep *core.OneStep) (res pkg.Result) {

	defer func() {
		if r := recover(); r != nil {
			log.Printf("unhandled panic processing case %s: %v", caseID, r)
			res = pkg.Result{
				CaseID:       caseID,
				Status:       pkg.StatusUnhandled,
				ErrorMessage: fmt.Sprint(r),
			}
		}
	}()

	if mode == config.ModeOneStep {
		return oneStep.Evaluate(ctx, caseID, c)
	}

	history, err := simulator.Run(ctx, c)
	if err != nil {
		log.Printf("simulation failed for case %s: %v", caseID, err)
		return pkg.Result{CaseID: caseID, Status: pkg.StatusSimulationFailed, ErrorMessage: err.Error()}
	}
	log.Printf("simulation completed for case %s, %d messages", caseID, len(history))

	res = pkg.Result{CaseID: caseID, DialogueHistory: toRecord(history)}
	verdict, ok := evaluator.EvaluateDialogue(ctx, c, history)
	res.Evaluation = verdict
	if ok {
		res.Status = pkg.StatusCompleted
	} else {
		log.Printf("evaluation failed for case %s", caseID)
		res.Status = pkg.StatusEvaluationFailed
	}
	return res
}

func toRecord(history []llm.Message) []pkg.DialogueMessage {
	out := make([]pkg.DialogueMessage, len(history))
	for i, m := range history {
		out[i] = pkg.DialogueMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
