package llms

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GoogleProvider is a pluggable Provider backed by google.golang.org/genai,
// selected when ai.provider = "google". Grounded on the teacher's
// pkg/llms.GoogleProvider, trimmed to the non-streaming path since the
// matcher never streams (it needs the whole JSON envelope before it can
// parse a decision).
type GoogleProvider struct {
	client *genai.Client
}

func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating google genai client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Complete(ctx context.Context, req Request) (Response, error) {
	if p.client == nil {
		return Response{}, errors.New("google provider not initialized")
	}

	var systemText string
	var userText string
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemText = m.Content
		} else {
			userText = m.Content
		}
	}

	contents := []*genai.Content{{Parts: []*genai.Part{genai.NewPartFromText(userText)}, Role: genai.RoleUser}}
	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if systemText != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleModel)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, genConfig)
	if err != nil {
		var apiErr *genai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, fmt.Errorf("google API error (code %d, status %s)", apiErr.Code, apiErr.Status)
		}
		return Response{}, fmt.Errorf("google generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, errors.New("no candidates returned from google")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	return Response{Content: text}, nil
}
