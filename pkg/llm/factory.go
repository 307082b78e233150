package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/config"
)

// NewChatClient builds the chat backend selected by configuration.
// Endpoints are rewritten for Docker so a localhost gateway keeps working
// when the engine itself runs in a container.
func NewChatClient(cfg *config.ModelsConfig, logger *zap.Logger) (ChatClient, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewClient(&Config{
			Endpoint:       config.ResolveURLForDocker(cfg.OpenAIBaseURL),
			Model:          cfg.ChatModel,
			APIKey:         cfg.OpenAIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(cfg.AnthropicKey, cfg.AnthropicModel, logger)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Provider)
	}
}

// NewEmbedder builds the embedding backend selected by configuration.
func NewEmbedder(ctx context.Context, cfg *config.ModelsConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai", "":
		return NewClient(&Config{
			Endpoint:       config.ResolveURLForDocker(cfg.OpenAIBaseURL),
			Model:          cfg.ChatModel,
			APIKey:         cfg.OpenAIKey,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDim:   cfg.EmbeddingDim,
		}, logger)
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.GeminiKey, cfg.EmbeddingModel, cfg.EmbeddingDim, logger)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// NewSpanPredictor builds the extractive QA span client, or returns nil when
// no span endpoint is configured. Callers treat a nil predictor as "heuristic
// fallback only".
func NewSpanPredictor(cfg *config.ModelsConfig, logger *zap.Logger) (SpanPredictor, error) {
	if cfg.SpanModelURL == "" {
		return nil, nil
	}
	return NewSpanClient(config.ResolveURLForDocker(cfg.SpanModelURL), cfg.SpanModelKey, logger)
}
