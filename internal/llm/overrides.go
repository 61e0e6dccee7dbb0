package llm

import "strings"

const defaultMaxTokens = 1024

// Some local test deployments need request tweaks: truncated output budgets,
// an explicit stop sequence, or streaming. They are recognized by substrings
// of the run's output path or the served model name. This is a deliberate
// data-driven table rather than branching, so priority and coverage can be
// exercised by tests directly.
type override struct {
	pathMatch  string // substring of the output path, if non-empty
	modelMatch string // substring of the model name, if non-empty

	maxTokens int
	stop      []string
	stream    bool
}

var testModelOverrides = []override{
	{pathMatch: "lingdan", maxTokens: 256, stop: []string{"<|im_end|>"}},
	{pathMatch: "HuatuoGPT", maxTokens: 256, stop: []string{"<|im_end|>"}},
	{modelMatch: "qwen3", stream: true},
}

func applyOverrides(c *Client, outputPath, model string) {
	for _, o := range testModelOverrides {
		matched := false
		if o.pathMatch != "" && strings.Contains(outputPath, o.pathMatch) {
			matched = true
		}
		if o.modelMatch != "" && strings.Contains(model, o.modelMatch) {
			matched = true
		}
		if !matched {
			continue
		}
		if o.maxTokens > 0 {
			c.maxTokens = o.maxTokens
		}
		if len(o.stop) > 0 {
			c.stop = o.stop
		}
		if o.stream {
			c.stream = true
		}
	}
}
