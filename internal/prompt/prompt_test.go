package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTemplate(t *testing.T, dir, name, text string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppendsTxtSuffix(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "router.txt", "对话内容：{dialogue_context}")

	tmpl, err := Load(dir, "router")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := tmpl.Render(map[string]string{"dialogue_context": "你好"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "对话内容：你好" {
		t.Errorf("Render = %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir(), "missing.txt"); err == nil {
		t.Fatal("want error for missing template file")
	}
}

func TestRenderUnboundPlaceholder(t *testing.T) {
	tmpl := New("expert", "{json_format} and {expert_full_info}")
	_, err := tmpl.Render(map[string]string{"json_format": "{}"})
	if err == nil {
		t.Fatal("want error for unbound placeholder")
	}
	if !strings.Contains(err.Error(), "expert_full_info") {
		t.Errorf("error %q should name the unbound placeholder", err)
	}
}

func TestRenderStaticTemplate(t *testing.T) {
	tmpl := New("doctor", "你将扮演一名中医医生。")
	got, err := tmpl.Render(nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "你将扮演一名中医医生。" {
		t.Errorf("Render = %q", got)
	}
}

func TestRenderLeavesLiteralJSONAlone(t *testing.T) {
	// Templates may embed literal JSON shapes; only {word} placeholders are
	// substituted.
	tmpl := New("one_step_expert", "格式：{\n  \"score\": 1\n}\n输出：{doctor_output}")
	got, err := tmpl.Render(map[string]string{"doctor_output": "诊断"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "\"score\": 1") || !strings.Contains(got, "输出：诊断") {
		t.Errorf("Render = %q", got)
	}
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "patient.txt", "{patient_full_info}")
	writeTemplate(t, dir, "doctor.txt", "static")

	set, err := LoadSet(dir, map[string]string{"patient": "patient.txt", "doctor": "doctor.txt"})
	if err != nil {
		t.Fatalf("LoadSet: %v", err)
	}
	if set.Get("patient") == nil || set.Get("doctor") == nil {
		t.Error("loaded templates missing from set")
	}
	if set.Get("router") != nil {
		t.Error("Get should return nil for absent roles")
	}

	if _, err := LoadSet(dir, map[string]string{"router": "router.txt"}); err == nil {
		t.Error("LoadSet should fail on the first missing file")
	}
}
