package pkg

import (
	"encoding/json"
	"testing"
)

func TestCaseID(t *testing.T) {
	tests := []struct {
		name  string
		c     Case
		index int
		want  string
	}{
		{"string id", Case{"id": "c-7"}, 0, "c-7"},
		{"case_id fallback", Case{"case_id": "alt-3"}, 0, "alt-3"},
		{"id wins over case_id", Case{"id": "a", "case_id": "b"}, 0, "a"},
		{"numeric id from decoded JSON", Case{"id": float64(12)}, 0, "12"},
		{"empty string id falls through", Case{"id": "", "case_id": "alt"}, 0, "alt"},
		{"positional fallback", Case{}, 4, "case_index_4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.ID(tt.index); got != tt.want {
				t.Errorf("ID(%d) = %q, want %q", tt.index, got, tt.want)
			}
		})
	}
}

func TestCaseSection(t *testing.T) {
	c := Case{
		KeyConsultInfo: map[string]any{"主诉": "头痛"},
		KeyDiagnosisBasis: "肝阳上亢，上扰清窍。",
	}
	if got := c.Section(KeyDiagnosisBasis); got != "肝阳上亢，上扰清窍。" {
		t.Errorf("string section = %q, want pass-through", got)
	}
	if got := c.Section(KeyPatientInfo); got != "{}" {
		t.Errorf("missing section = %q, want empty object", got)
	}
	got := c.Section(KeyConsultInfo)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("structured section %q is not valid JSON: %v", got, err)
	}
	if decoded["主诉"] != "头痛" {
		t.Errorf("structured section = %q", got)
	}
}

func TestResultOmitsEmptyFields(t *testing.T) {
	b, err := json.Marshal(Result{CaseID: "c1", Status: StatusSimulationFailed, ErrorMessage: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"dialogue_history", "model_output", "evaluation"} {
		if _, ok := m[absent]; ok {
			t.Errorf("marshaled result should omit empty %q", absent)
		}
	}
	if m["case_id"] != "c1" || m["error_message"] != "boom" {
		t.Errorf("marshaled result = %v", m)
	}
}
