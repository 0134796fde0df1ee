package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Mock echoes the prompt back word by word. It needs no credential and is
// meant for local development (LLM_PROVIDER=mock).
type Mock struct {
	Delay time.Duration
}

func NewMock() *Mock {
	return &Mock{Delay: 20 * time.Millisecond}
}

func (m *Mock) Stream(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		reply := fmt.Sprintf("You said: %s", req.Prompt.Text)
		if req.Prompt.Attachment != nil {
			reply += fmt.Sprintf(" (with %s, %d bytes)", req.Prompt.Attachment.MIMEType, len(req.Prompt.Attachment.Data))
		}
		for i, word := range strings.SplitAfter(reply, " ") {
			if i > 0 && m.Delay > 0 {
				select {
				case <-time.After(m.Delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(ctx, out, Chunk{Text: word}) {
				return
			}
		}
	}()

	return out
}

func (m *Mock) ValidateKey(ctx context.Context, apiKey string) error {
	return nil
}
