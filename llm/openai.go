package llm

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"capstone/model"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"
)

// OpenAI streams replies from any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	baseURL string
	model   string
}

func NewOpenAI(baseURL, modelName string) *OpenAI {
	return &OpenAI{baseURL: baseURL, model: modelName}
}

func (o *OpenAI) client(apiKey string) openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		opts = append(opts, option.WithBaseURL(o.baseURL))
	}
	return openai.NewClient(opts...)
}

func (o *OpenAI) Stream(ctx context.Context, req Request) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		client := o.client(req.APIKey)
		params := openai.ChatCompletionNewParams{
			Model:    o.model,
			Messages: openAIMessages(req),
		}

		stream := client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, out, Chunk{Text: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, out, Chunk{Err: normalizeOpenAIError(err)})
		}
	}()

	return out
}

func (o *OpenAI) ValidateKey(ctx context.Context, apiKey string) error {
	client := o.client(apiKey)
	if _, err := client.Models.List(ctx); err != nil {
		return normalizeOpenAIError(err)
	}
	return nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.SystemInstruction != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemInstruction))
	}
	for _, turn := range req.History {
		if turn.Role == model.RoleModel {
			msgs = append(msgs, openai.AssistantMessage(turn.Text))
			continue
		}
		msgs = append(msgs, openAIUserMessage(turn))
	}
	return append(msgs, openAIUserMessage(req.Prompt))
}

func openAIUserMessage(turn Turn) openai.ChatCompletionMessageParamUnion {
	if turn.Attachment == nil {
		return openai.UserMessage(turn.Text)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", turn.Attachment.MIMEType, base64.StdEncoding.EncodeToString(turn.Attachment.Data))
	var part openai.ChatCompletionContentPartUnionParam
	if strings.HasPrefix(turn.Attachment.MIMEType, "image/") {
		part = openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL})
	} else {
		part = openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
			FileData: openai.String(dataURL),
			Filename: openai.String(turn.Attachment.Filename),
		})
	}
	return openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(turn.Text),
		part,
	})
}

// normalizeOpenAIError makes credential rejections recognizable by IsKeyError.
func normalizeOpenAIError(err error) error {
	var apiErr *openai.Error
	if stderrors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, "invalid api key")
		}
	}
	return err
}
