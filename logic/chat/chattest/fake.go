// Package chattest provides a scripted chat.Completer for tests.
package chattest

import (
	"context"
	"sync"

	"lexanalyzer/logic/chat"
)

type Call struct {
	Prompt  string
	Options chat.Options
}

// Fake answers with Respond when set, otherwise with Replies in order,
// repeating the last one. It is safe for concurrent use.
type Fake struct {
	Respond func(prompt string, o chat.Options) string
	Replies []string

	mu    sync.Mutex
	calls []Call
}

func Reply(replies ...string) *Fake {
	return &Fake{Replies: replies}
}

func (f *Fake) Complete(ctx context.Context, prompt string, opts ...chat.Option) string {
	o := chat.ApplyOptions(opts...)

	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, Call{Prompt: prompt, Options: o})
	f.mu.Unlock()

	if f.Respond != nil {
		return f.Respond(prompt, o)
	}
	if len(f.Replies) == 0 {
		return ""
	}
	if n >= len(f.Replies) {
		n = len(f.Replies) - 1
	}
	return f.Replies[n]
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
