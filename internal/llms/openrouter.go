package llms

import (
	"context"
	"errors"
	"fmt"

	"github.com/revrost/go-openrouter"
)

// OpenRouterProvider is a pluggable Provider backed by
// github.com/revrost/go-openrouter, selected when ai.provider =
// "openrouter". Grounded on the teacher's pkg/llms.OpenRouterProvider,
// trimmed of its model-catalog/popularity-sorting code (SubX's matcher
// only ever makes one Complete call per pass, it never lists models).
type OpenRouterProvider struct {
	client *openrouter.Client
}

func NewOpenRouterProvider(apiKey string) *OpenRouterProvider {
	if apiKey == "" {
		return nil
	}
	return &OpenRouterProvider{client: openrouter.NewClient(apiKey)}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

func (p *OpenRouterProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]openrouter.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		role := openrouter.ChatMessageRoleUser
		if m.Role == "system" {
			role = openrouter.ChatMessageRoleSystem
		}
		messages[i] = openrouter.ChatCompletionMessage{Role: role, Content: openrouter.Content{Text: m.Content}}
	}

	resp, err := p.client.CreateChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: float32(req.Temperature),
		Messages:    messages,
	})
	if err != nil {
		var apiErr *openrouter.APIError
		if errors.As(err, &apiErr) {
			return Response{}, fmt.Errorf("openrouter API error (code %v): %s", apiErr.Code, apiErr.Message)
		}
		return Response{}, fmt.Errorf("openrouter chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("no choices returned from openrouter")
	}
	return Response{Content: resp.Choices[0].Message.Content.Text}, nil
}
