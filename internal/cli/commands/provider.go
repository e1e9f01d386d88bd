package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/subx-cli/subx/internal/config"
	"github.com/subx-cli/subx/internal/llms"
)

// buildProvider selects the llms.Provider named by cfg.AI.Provider and
// wraps it in the retry/backoff envelope of spec.md §4.7 step 5.
func buildProvider(ctx context.Context, cfg *config.Snapshot, logger zerolog.Logger) (llms.Provider, error) {
	var inner llms.Provider
	switch cfg.AI.Provider {
	case "openai":
		p := llms.NewOpenAIProvider(cfg.AI.APIKey)
		if p == nil {
			return nil, fmt.Errorf("ai.provider=openai requires ai.api_key")
		}
		inner = p
	case "openrouter":
		p := llms.NewOpenRouterProvider(cfg.AI.APIKey)
		if p == nil {
			return nil, fmt.Errorf("ai.provider=openrouter requires ai.api_key")
		}
		inner = p
	case "google":
		p, err := llms.NewGoogleProvider(ctx, cfg.AI.APIKey)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("ai.provider=google requires ai.api_key")
		}
		inner = p
	case "custom", "":
		inner = llms.NewCustomProvider(cfg.AI.BaseURL, cfg.AI.APIKey)
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}

	delay := time.Duration(cfg.AI.RetryDelayMs) * time.Millisecond
	return llms.NewRetryingProvider(inner, cfg.AI.RetryAttempts, delay, logger), nil
}
