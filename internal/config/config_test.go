package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeMultiTurn {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeMultiTurn)
	}
	if cfg.MaxDialogueTurns != 10 {
		t.Errorf("MaxDialogueTurns = %d, want 10", cfg.MaxDialogueTurns)
	}
	if cfg.ArchiveDSN != "" {
		t.Errorf("ArchiveDSN = %q, want empty by default", cfg.ArchiveDSN)
	}
}

func TestLoadFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("TCMD_MODE", ModeOneStep)
	t.Setenv("TCMD_TEST_MODEL", "env-model")

	cfg, err := Load([]string{"-mode", ModeMultiTurn})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeMultiTurn {
		t.Errorf("Mode = %q, want flag value to win over environment", cfg.Mode)
	}
	// Environment still fills everything the flags left alone.
	if cfg.Test.Model != "env-model" {
		t.Errorf("Test.Model = %q, want environment value", cfg.Test.Model)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	_, err := Load([]string{"-mode", "three-step"})
	if err == nil {
		t.Fatal("want error for invalid mode")
	}
	if !strings.Contains(err.Error(), "three-step") {
		t.Errorf("error %q should name the rejected mode", err)
	}
}

func TestLoadRejectsNonPositiveTurns(t *testing.T) {
	if _, err := Load([]string{"-max-dialogue-turns", "0"}); err == nil {
		t.Fatal("want error for zero dialogue turns")
	}
}

func TestLoadNonIntegerTurnsEnvFallsBack(t *testing.T) {
	t.Setenv("TCMD_MAX_DIALOGUE_TURNS", "plenty")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxDialogueTurns != 10 {
		t.Errorf("MaxDialogueTurns = %d, want default 10", cfg.MaxDialogueTurns)
	}
}

func TestPromptNameMaps(t *testing.T) {
	cfg := &Config{}
	multi := cfg.MultiTurnPrompts()
	for _, role := range []string{"patient", "doctor", "assistant", "router", "expert"} {
		if multi[role] == "" {
			t.Errorf("multi-turn prompt map missing role %q", role)
		}
	}
	one := cfg.OneStepPrompts()
	for _, role := range []string{"one_step_doctor", "one_step_expert"} {
		if one[role] == "" {
			t.Errorf("one-step prompt map missing role %q", role)
		}
	}
}
