package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient is the alternate chat backend speaking the Anthropic
// Messages API. The same circuit breaker discipline as the OpenAI-compatible
// client applies.
type AnthropicClient struct {
	client  *anthropic.Client
	model   string
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewAnthropicClient creates an Anthropic-backed chat client.
func NewAnthropicClient(apiKey, model string, logger *zap.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicClient{
		client:  anthropic.NewClient(apiKey),
		model:   model,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:  logger.Named("anthropic"),
	}, nil
}

// Complete generates a chat completion.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (string, error) {
	if allowed, err := c.breaker.Allow(); !allowed {
		return "", NewError(ErrorTypeEndpoint, "chat backend circuit open", true, err)
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	req := anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(userPrompt),
		},
		MaxTokens: maxTokens,
		System:    systemPrompt,
	}
	if params.Temperature > 0 {
		temperature := params.Temperature
		req.Temperature = &temperature
	}
	if params.TopP > 0 {
		topP := params.TopP
		req.TopP = &topP
	}

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Error("chat request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	if len(resp.Content) == 0 {
		c.breaker.RecordFailure()
		return "", NewError(ErrorTypeModel, "no content in response", false, nil)
	}

	c.breaker.RecordSuccess()
	c.logger.Info("chat request completed",
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Content[0].GetText(), nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}
