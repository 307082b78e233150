// Package llm provides clients for the model backends: chat generation,
// sentence embeddings, and extractive span prediction.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible endpoints for both chat
// completion and embeddings. A circuit breaker guards the endpoint so a dead
// gateway fails fast and callers reach their degraded paths instead of
// stalling on every request.
type Client struct {
	client     *openai.Client
	endpoint   string
	model      string
	embedModel string
	embedDim   int
	breaker    *CircuitBreaker
	logger     *zap.Logger
}

// Config holds configuration for creating an OpenAI-compatible client.
type Config struct {
	Endpoint       string // Base URL, e.g., "https://api.openai.com/v1"; empty uses the public API
	Model          string // Chat model name
	APIKey         string // Optional for local endpoints
	EmbeddingModel string // Embedding model name
	EmbeddingDim   int    // Expected embedding dimensionality
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = newHTTPClient()
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	return &Client{
		client:     openai.NewClientWithConfig(clientConfig),
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		embedModel: embedModel,
		embedDim:   cfg.EmbeddingDim,
		breaker:    NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:     logger.Named("llm"),
	}, nil
}

// Complete generates a chat completion.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (string, error) {
	if allowed, err := c.breaker.Allow(); !allowed {
		return "", NewError(ErrorTypeEndpoint, "chat backend circuit open", true, err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: userPrompt},
	}

	c.logger.Debug("chat request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(userPrompt)),
		zap.Float32("temperature", params.Temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		TopP:        params.TopP,
	})
	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Error("chat request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		c.breaker.RecordFailure()
		return "", NewError(ErrorTypeModel, "no choices in response", false, nil)
	}

	c.breaker.RecordSuccess()
	c.logger.Info("chat request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// Embed generates an embedding vector for the input text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple inputs in one call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if allowed, err := c.breaker.Allow(); !allowed {
		return nil, NewError(ErrorTypeEndpoint, "embedding backend circuit open", true, err)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: texts,
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, ClassifyError(err)
	}

	if len(resp.Data) != len(texts) {
		c.breaker.RecordFailure()
		return nil, NewError(ErrorTypeModel,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data)), false, nil)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			c.breaker.RecordFailure()
			return nil, NewError(ErrorTypeModel, "empty embedding in response", false, nil)
		}
		embeddings[i] = d.Embedding
	}

	c.breaker.RecordSuccess()
	return embeddings, nil
}

// Dimension returns the configured embedding dimensionality.
func (c *Client) Dimension() int {
	return c.embedDim
}

// Model returns the configured chat model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() CircuitState {
	return c.breaker.State()
}
