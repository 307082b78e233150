package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiEmbedder is the alternate embedding backend over Google's
// generative language API. The same circuit breaker discipline as the
// OpenAI-compatible client applies.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dim     int
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewGeminiEmbedder creates a Gemini-backed embedder.
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dim int, logger *zap.Logger) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = "text-embedding-004"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiEmbedder{
		client:  client,
		model:   model,
		dim:     dim,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:  logger.Named("gemini"),
	}, nil
}

// Embed generates an embedding vector for the input text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if allowed, err := e.breaker.Allow(); !allowed {
		return nil, NewError(ErrorTypeEndpoint, "embedding backend circuit open", true, err)
	}

	em := e.client.EmbeddingModel(e.model)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		e.breaker.RecordFailure()
		return nil, ClassifyError(err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		e.breaker.RecordFailure()
		return nil, NewError(ErrorTypeModel, "no embedding in response", false, nil)
	}

	e.breaker.RecordSuccess()
	return res.Embedding.Values, nil
}

// EmbedBatch generates embeddings for multiple inputs using batched requests.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if allowed, err := e.breaker.Allow(); !allowed {
		return nil, NewError(ErrorTypeEndpoint, "embedding backend circuit open", true, err)
	}

	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		e.breaker.RecordFailure()
		return nil, ClassifyError(err)
	}

	if len(res.Embeddings) != len(texts) {
		e.breaker.RecordFailure()
		return nil, NewError(ErrorTypeModel,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(res.Embeddings)), false, nil)
	}

	embeddings := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			e.breaker.RecordFailure()
			return nil, NewError(ErrorTypeModel, "empty embedding in response", false, nil)
		}
		embeddings[i] = emb.Values
	}

	e.breaker.RecordSuccess()
	return embeddings, nil
}

// Dimension returns the configured embedding dimensionality.
func (e *GeminiEmbedder) Dimension() int {
	return e.dim
}

// Model returns the configured model name.
func (e *GeminiEmbedder) Model() string {
	return e.model
}

// Close releases the underlying API client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
