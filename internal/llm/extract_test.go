package llm

import "testing"

func TestExtractFinalResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "final answer marker",
			in:   "blah Final Answer: 42",
			want: "42",
		},
		{
			name: "final response marker with surrounding whitespace",
			in:   "reasoning...\nFinal Response:   舌红苔黄，肝火上炎。\n",
			want: "舌红苔黄，肝火上炎。",
		},
		{
			name: "no marker returns input unchanged",
			in:   "你好，请问哪里不舒服？",
			want: "你好，请问哪里不舒服？",
		},
		{
			name: "marker table order decides, not textual position",
			in:   "Final Response: A then Final Answer: B",
			want: "A then Final Answer: B",
		},
		{
			// An empty answer after a marker is still an answer, not a miss.
			name: "marker with no trailing content yields empty",
			in:   "some reasoning Final Answer:",
			want: "",
		},
		{
			name: "thinking with colon-less final response heading",
			in:   "Thinking\nthe patient likely has...\nFinal Response\n肝郁脾虚证",
			want: "肝郁脾虚证",
		},
		{
			name: "thinking with trailing heading and nothing after",
			in:   "Thinking about it. Final Response",
			want: "Thinking about it. Final Response",
		},
		{
			name: "empty input",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractFinalResponse(tt.in); got != tt.want {
				t.Errorf("ExtractFinalResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
