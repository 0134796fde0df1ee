// Package llm talks to the hosted model. Every backend streams its reply as
// a sequence of Chunks on a channel that is closed when the reply ends.
package llm

import (
	"context"
	"strings"

	"capstone/model"
)

// Attachment is a file sent inline with the user turn.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Turn is one role-tagged entry of the model context.
type Turn struct {
	Role       model.Role
	Text       string
	Attachment *Attachment
}

type Request struct {
	APIKey            string
	SystemInstruction string
	History           []Turn
	Prompt            Turn
}

// Chunk carries either a piece of text or the error that ended the stream.
// An error chunk is always the last value before the channel closes.
type Chunk struct {
	Text string
	Err  error
}

type Gateway interface {
	// Stream starts generation. The returned channel is closed once the reply
	// is complete, ctx is cancelled, or a terminal error chunk was sent.
	Stream(ctx context.Context, req Request) <-chan Chunk
	// ValidateKey returns nil when apiKey is accepted by the provider.
	ValidateKey(ctx context.Context, apiKey string) error
}

var keyErrorPhrases = []string{
	"api key not valid",
	"api_key_invalid",
	"permission denied",
	"permissiondenied",
	"incorrect api key",
	"invalid api key",
	"invalid x-api-key",
	"401 unauthorized",
	"403 forbidden",
}

// IsKeyError reports whether err means the credential was rejected.
func IsKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range keyErrorPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// send delivers c unless ctx is done first.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
