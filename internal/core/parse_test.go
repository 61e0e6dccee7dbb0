package core

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseExpertEvaluationFencedJSON(t *testing.T) {
	text := "评分如下：\n```json\n{\"问诊评分\":{\"score\":7,\"reason\":\"ok\"}}\n```\n以上。"
	got, perr := ParseExpertEvaluation(text)
	if perr != nil {
		t.Fatalf("ParseExpertEvaluation error: %v", perr)
	}
	want := map[string]any{
		"问诊评分": map[string]any{"score": float64(7), "reason": "ok"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseExpertEvaluation = %#v, want %#v", got, want)
	}
}

func TestParseExpertEvaluationBracesFallback(t *testing.T) {
	text := `这是我的评估。{"诊断结果评分": {"score": 3, "reason": "病名不符"}} 供参考。`
	got, perr := ParseExpertEvaluation(text)
	if perr != nil {
		t.Fatalf("ParseExpertEvaluation error: %v", perr)
	}
	inner, ok := got["诊断结果评分"].(map[string]any)
	if !ok || inner["score"] != float64(3) {
		t.Errorf("ParseExpertEvaluation = %#v", got)
	}
}

func TestParseExpertEvaluationNoStructure(t *testing.T) {
	text := "抱歉，我无法给出评分。"
	got, perr := ParseExpertEvaluation(text)
	if got != nil || perr == nil {
		t.Fatalf("want structural error, got %#v, %v", got, perr)
	}
	if perr.Kind != ErrKindStructure {
		t.Errorf("Kind = %q, want %q", perr.Kind, ErrKindStructure)
	}
	// No JSON was found, so the raw text is the only evidence; it must be
	// preserved verbatim, not truncated.
	if perr.RawResponse != text {
		t.Errorf("RawResponse = %q, want original text", perr.RawResponse)
	}
}

func TestParseExpertEvaluationDecodeFailure(t *testing.T) {
	text := "{这不是合法的JSON}"
	got, perr := ParseExpertEvaluation(text)
	if got != nil || perr == nil {
		t.Fatalf("want decode error, got %#v, %v", got, perr)
	}
	if perr.Kind != ErrKindDecode {
		t.Errorf("Kind = %q, want %q", perr.Kind, ErrKindDecode)
	}
	if perr.Details == "" {
		t.Error("decode error should carry the decoder message")
	}
	if perr.RawResponse != text {
		t.Errorf("RawResponse = %q", perr.RawResponse)
	}
}

func TestParseExpertEvaluationTruncatesLongRawText(t *testing.T) {
	text := "{bad json " + strings.Repeat("x", 3000) + "}"
	_, perr := ParseExpertEvaluation(text)
	if perr == nil {
		t.Fatal("want decode error")
	}
	if len(perr.RawResponse) != rawResponseLimit+len("...") {
		t.Errorf("RawResponse length = %d, want %d", len(perr.RawResponse), rawResponseLimit+3)
	}
	if !strings.HasSuffix(perr.RawResponse, "...") {
		t.Error("truncated raw text should end with ellipsis")
	}
}

func TestParseExpertEvaluationFencePreferredOverBraces(t *testing.T) {
	// A fenced block wins even when stray braces appear earlier in the text.
	text := "前言 {not json} 然后：\n```json\n{\"a\": {\"score\": 1, \"reason\": \"r\"}}\n```"
	got, perr := ParseExpertEvaluation(text)
	if perr != nil {
		t.Fatalf("ParseExpertEvaluation error: %v", perr)
	}
	if _, ok := got["a"]; !ok {
		t.Errorf("ParseExpertEvaluation = %#v, want fenced content", got)
	}
}
