// Package llms provides the pluggable AI provider abstraction behind C7,
// the AI Matcher, grounded on the teacher's pkg/llms.Provider interface
// generalized to SubX's single matcher use (one Complete call per
// matching pass, no streaming, no model registry).
package llms

import "context"

// Message is one chat-completion message, matching the OpenAI-compatible
// wire protocol's {role, content} shape of spec.md §4.
type Message struct {
	Role    string
	Content string
}

// Request is the parameters of one completion call, built from the
// matcher's prompt and the ai.* configuration section.
type Request struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// Response carries the provider's raw text reply, which the matcher then
// parses as the strict-JSON match envelope.
type Response struct {
	Content string
}

// Provider is implemented by every wire-protocol backend SubX can talk
// to. Custom is the primary implementation (the literal
// ${base_url}/chat/completions contract of spec §4); OpenAI/OpenRouter/
// Google are pluggable variants selected by ai.provider.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
}
