package core

import (
	"context"

	"github.com/mazai-xiangji/TCMD-Bench/internal/llm"
)

// fakeCaller scripts a backend for tests. Each call is recorded with a copy
// of its message history; respond decides the reply from the call index and
// the history it received.
type fakeCaller struct {
	calls   [][]llm.Message
	respond func(call int, messages []llm.Message) (string, error)
}

func (f *fakeCaller) Respond(_ context.Context, messages []llm.Message) (string, error) {
	snapshot := make([]llm.Message, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)
	return f.respond(len(f.calls), snapshot)
}

// reply builds a fakeCaller that always answers the same text.
func reply(text string) *fakeCaller {
	return &fakeCaller{respond: func(int, []llm.Message) (string, error) {
		return text, nil
	}}
}

// fail builds a fakeCaller that always errors.
func fail(err error) *fakeCaller {
	return &fakeCaller{respond: func(int, []llm.Message) (string, error) {
		return "", err
	}}
}

func (f *fakeCaller) lastContent() string {
	if len(f.calls) == 0 {
		return ""
	}
	last := f.calls[len(f.calls)-1]
	return last[len(last)-1].Content
}
