package llm

import (
	"context"

	"capstone/model"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Gemini streams replies from the Google generative language API. A client
// is built per call because the credential can differ per request.
type Gemini struct {
	model string
}

func NewGemini(modelName string) *Gemini {
	return &Gemini{model: modelName}
}

func (g *Gemini) Stream(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		client, err := genai.NewClient(ctx, option.WithAPIKey(req.APIKey))
		if err != nil {
			send(ctx, out, Chunk{Err: errors.Wrap(err, "failed to create gemini client")})
			return
		}
		defer client.Close()

		gm := client.GenerativeModel(g.model)
		if req.SystemInstruction != "" {
			gm.SystemInstruction = genai.NewUserContent(genai.Text(req.SystemInstruction))
		}

		cs := gm.StartChat()
		for _, turn := range req.History {
			cs.History = append(cs.History, &genai.Content{
				Role:  geminiRole(turn.Role),
				Parts: geminiParts(turn),
			})
		}

		iter := cs.SendMessageStream(ctx, geminiParts(req.Prompt)...)
		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				send(ctx, out, Chunk{Err: err})
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			if !send(ctx, out, Chunk{Text: text}) {
				return
			}
		}
	}()

	return out
}

func (g *Gemini) ValidateKey(ctx context.Context, apiKey string) error {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return errors.Wrap(err, "failed to create gemini client")
	}
	defer client.Close()

	_, err = client.ListModels(ctx).Next()
	if err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func geminiRole(role model.Role) string {
	if role == model.RoleModel {
		return "model"
	}
	return "user"
}

func geminiParts(turn Turn) []genai.Part {
	parts := []genai.Part{genai.Text(turn.Text)}
	if turn.Attachment != nil {
		parts = append(parts, genai.Blob{MIMEType: turn.Attachment.MIMEType, Data: turn.Attachment.Data})
	}
	return parts
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text
}
