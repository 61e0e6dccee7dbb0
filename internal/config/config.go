// Package config assembles the run configuration from defaults, environment
// variables (including a local .env file), and command-line flags, in that
// order of precedence.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Execution modes.
const (
	ModeMultiTurn = "multi-turn"
	ModeOneStep   = "one-step"
)

// Prompt template filenames, resolved relative to PromptsDir.
const (
	PatientPromptFile       = "patient.txt"
	DoctorPromptFile        = "doctor.txt"
	AssistantPromptFile     = "assistant.txt"
	RouterPromptFile        = "router.txt"
	ExpertPromptFile        = "expert.txt"
	OneStepDoctorPromptFile = "one_step_doctor.txt"
	OneStepExpertPromptFile = "one_step_expert.txt"
)

const unconfiguredKey = "YOUR_SIM_API_KEY_HERE"

// Backend describes one logical chat-completion endpoint.
type Backend struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Config is the fully resolved run configuration. It is built once in main
// and passed down explicitly; nothing reads it from ambient state.
type Config struct {
	Mode       string
	CasePath   string
	OutputPath string
	PromptsDir string

	Sim    Backend // patient / assistant / router simulation
	Expert Backend // scoring
	Test   Backend // model under test

	MaxDialogueTurns int
	ArchiveDSN       string // optional Postgres mirror, empty to disable
}

// Load parses args (excluding the program name) over environment defaults.
// A .env file in the working directory is honored the same way environment
// variables are.
func Load(args []string) (*Config, error) {
	godotenv.Load()

	fs := flag.NewFlagSet("tcmdbench", flag.ContinueOnError)
	cfg := &Config{}

	fs.StringVar(&cfg.Mode, "mode", envOr("TCMD_MODE", ModeMultiTurn),
		"execution mode: multi-turn or one-step")
	fs.StringVar(&cfg.CasePath, "cases", envOr("TCMD_CASE_PATH", "./data/tcmd_eval.json"),
		"path to the structured medical cases JSON file")
	fs.StringVar(&cfg.OutputPath, "output", envOr("TCMD_OUTPUT_PATH", "./results/evaluation_results.json"),
		"path of the evaluation results JSON file")
	fs.StringVar(&cfg.PromptsDir, "prompts-dir", envOr("TCMD_PROMPTS_DIR", "./prompts"),
		"directory containing the prompt template files")

	fs.StringVar(&cfg.Sim.BaseURL, "sim-base-url", envOr("TCMD_SIM_BASE_URL", "https://api.openai.com/v1"),
		"base URL of the simulation LLM API (multi-turn mode)")
	fs.StringVar(&cfg.Sim.APIKey, "sim-api-key", os.Getenv("TCMD_SIM_API_KEY"),
		"API key for the simulation LLM API (multi-turn mode)")
	fs.StringVar(&cfg.Sim.Model, "sim-model", envOr("TCMD_SIM_MODEL", "gpt-4o-mini"),
		"model name for the simulation LLM (multi-turn mode)")

	fs.StringVar(&cfg.Expert.BaseURL, "expert-base-url", envOr("TCMD_EXPERT_BASE_URL", "https://api.openai.com/v1"),
		"base URL of the expert evaluator LLM API")
	fs.StringVar(&cfg.Expert.APIKey, "expert-api-key", os.Getenv("TCMD_EXPERT_API_KEY"),
		"API key for the expert evaluator LLM API")
	fs.StringVar(&cfg.Expert.Model, "expert-model", envOr("TCMD_EXPERT_MODEL", "gpt-4o"),
		"model name for the expert evaluator LLM")

	fs.StringVar(&cfg.Test.BaseURL, "test-base-url", envOr("TCMD_TEST_BASE_URL", "http://localhost:5000/v1"),
		"base URL of the model-under-test API")
	fs.StringVar(&cfg.Test.APIKey, "test-api-key", envOr("TCMD_TEST_API_KEY", "EMPTY"),
		"API key for the model-under-test API")
	fs.StringVar(&cfg.Test.Model, "test-model", envOr("TCMD_TEST_MODEL", "LLM_API"),
		"served model name of the model under test")

	fs.IntVar(&cfg.MaxDialogueTurns, "max-dialogue-turns", envOrInt("TCMD_MAX_DIALOGUE_TURNS", 10),
		"maximum number of doctor turns in multi-turn mode")
	fs.StringVar(&cfg.ArchiveDSN, "archive-dsn", os.Getenv("TCMD_ARCHIVE_DSN"),
		"optional Postgres DSN; results are mirrored there when set")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Mode != ModeMultiTurn && cfg.Mode != ModeOneStep {
		return nil, fmt.Errorf("config: invalid mode %q (want %s or %s)", cfg.Mode, ModeMultiTurn, ModeOneStep)
	}
	if cfg.MaxDialogueTurns <= 0 {
		return nil, fmt.Errorf("config: max-dialogue-turns must be positive, got %d", cfg.MaxDialogueTurns)
	}

	// Warnings, not errors: local deployments legitimately run without keys.
	if cfg.Mode == ModeMultiTurn && (cfg.Sim.APIKey == "" || cfg.Sim.APIKey == unconfiguredKey) {
		log.Printf("config: simulation API key looks unconfigured (needed for multi-turn mode)")
	}
	if cfg.Expert.APIKey == "" || cfg.Expert.APIKey == unconfiguredKey {
		log.Printf("config: expert API key looks unconfigured")
	}
	if cfg.Test.BaseURL == "" || cfg.Test.Model == "" {
		log.Printf("config: test model URL (%q) or name (%q) is missing", cfg.Test.BaseURL, cfg.Test.Model)
	}
	return cfg, nil
}

// MultiTurnPrompts maps prompt-set role names to template filenames for
// multi-turn mode.
func (c *Config) MultiTurnPrompts() map[string]string {
	return map[string]string{
		"patient":   PatientPromptFile,
		"doctor":    DoctorPromptFile,
		"assistant": AssistantPromptFile,
		"router":    RouterPromptFile,
		"expert":    ExpertPromptFile,
	}
}

// OneStepPrompts maps prompt-set role names to template filenames for
// one-step mode.
func (c *Config) OneStepPrompts() map[string]string {
	return map[string]string{
		"one_step_doctor": OneStepDoctorPromptFile,
		"one_step_expert": OneStepExpertPromptFile,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		log.Printf("config: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}
