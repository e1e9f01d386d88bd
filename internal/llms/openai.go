package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

// OpenAIProvider is a pluggable Provider backed by the official
// github.com/openai/openai-go SDK, selected when ai.provider = "openai".
// The teacher's own pkg/llms.openai.go never actually called this SDK
// despite carrying it in go.mod (its Complete method is a hand-rolled
// stub); this is the real implementation, grounded on the SDK's
// documented Chat Completions usage and wired to the same Request/
// Response shape as CustomProvider.
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	if apiKey == "" {
		return nil
	}
	return &OpenAIProvider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, m := range req.Messages {
		if m.Role == "system" {
			messages = append(messages, openai.SystemMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       req.Model,
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	})
	if err != nil {
		return Response{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("no choices returned from openai")
	}
	return Response{Content: resp.Choices[0].Message.Content}, nil
}
