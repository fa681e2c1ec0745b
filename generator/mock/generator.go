package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hubgen"
)

const Name = "mock"

// Reply is one scripted outcome. Err takes precedence over Text.
type Reply struct {
	Text string
	Err  error
}

// Generator replays scripted replies in order and records every request.
// Once the script is exhausted the last reply repeats; with no script it
// echoes a fixed canned line so offline demos still print something.
type Generator struct {
	mu       sync.Mutex
	replies  []Reply
	next     int
	requests []hubgen.Request
}

func NewGenerator(replies ...Reply) *Generator {
	return &Generator{replies: replies}
}

// Texts is a shorthand for a script of successful replies.
func Texts(texts ...string) []Reply {
	out := make([]Reply, len(texts))
	for i, t := range texts {
		out[i] = Reply{Text: t}
	}
	return out
}

func (g *Generator) Name() string { return Name }

func (g *Generator) Generate(ctx context.Context, req hubgen.Request) (hubgen.Response, error) {
	if err := ctx.Err(); err != nil {
		return hubgen.Response{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.requests = append(g.requests, req)
	slog.Info("MOCK_GENERATOR: Invoked", "call", len(g.requests), "model", req.ModelID)

	var r Reply
	switch {
	case len(g.replies) == 0:
		r = Reply{Text: fmt.Sprintf("%s\nSoft ears in the grass\nclover trembles in the wind\nthe rabbit is still", req.Prompt)}
	case g.next < len(g.replies):
		r = g.replies[g.next]
		g.next++
	default:
		r = g.replies[len(g.replies)-1]
	}

	if r.Err != nil {
		return hubgen.Response{}, r.Err
	}
	return hubgen.Response{
		Text:         r.Text,
		ModelID:      req.ModelID,
		FinishReason: "stop",
		TokenCount:   len(r.Text),
	}, nil
}

// Requests returns a copy of every request received so far.
func (g *Generator) Requests() []hubgen.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]hubgen.Request(nil), g.requests...)
}

func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

var _ hubgen.Generator = (*Generator)(nil)
