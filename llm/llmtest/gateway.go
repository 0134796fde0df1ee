// Package llmtest provides a scripted llm.Gateway for tests.
package llmtest

import (
	"context"
	"sync"

	"capstone/llm"
)

// Gateway replays Chunks for every Stream call and records the requests.
// When Hold is non-nil the stream pauses after the first chunk until Hold is
// closed or the context ends.
type Gateway struct {
	Chunks []llm.Chunk
	Hold   chan struct{}
	KeyErr error

	mu       sync.Mutex
	requests []llm.Request
}

func Reply(texts ...string) *Gateway {
	g := &Gateway{}
	for _, text := range texts {
		g.Chunks = append(g.Chunks, llm.Chunk{Text: text})
	}
	return g
}

func (g *Gateway) Stream(ctx context.Context, req llm.Request) <-chan llm.Chunk {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		for i, c := range g.Chunks {
			if i == 1 && g.Hold != nil {
				select {
				case <-g.Hold:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (g *Gateway) ValidateKey(ctx context.Context, apiKey string) error {
	return g.KeyErr
}

// Requests returns a copy of every request seen so far.
func (g *Gateway) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}
