package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CustomProvider implements Provider against any OpenAI-compatible chat
// completions endpoint, per spec.md §4's AI wire protocol: POST
// ${baseURL}/chat/completions with {model, temperature, messages}, bearer
// auth when apiKey is set. Grounded directly on the teacher's
// pkg/llms.CustomLLMProvider, the one provider in that package that
// actually implements the wire protocol over net/http rather than a
// vendor SDK stub.
type CustomProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewCustomProvider builds a CustomProvider for baseURL (no trailing
// slash expected; it is trimmed defensively) and apiKey (may be empty).
func NewCustomProvider(baseURL, apiKey string) *CustomProvider {
	return &CustomProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (p *CustomProvider) Name() string { return "custom" }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// HTTPError carries the status code so the retry policy can distinguish
// transient (5xx, 429) from fatal (4xx) failures per spec §4.7 step 5.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("AI provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (p *CustomProvider) Complete(ctx context.Context, req Request) (Response, error) {
	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages:    messages,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshalling chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("building HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("sending request to %s: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       string(respBody),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decoding chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("no choices returned by AI provider")
	}
	return Response{Content: parsed.Choices[0].Message.Content}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := time.ParseDuration(header + "s"); err == nil {
		return secs
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 0
}
