// Package llm provides clients for the model backends: chat generation,
// sentence embeddings, and extractive span prediction.
package llm

import (
	"context"
)

// GenerateParams are the decoding parameters for a generation call. They are
// the unit the feedback adapter nudges per user and task.
type GenerateParams struct {
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"max_length"`
	TopP        float32 `json:"top_p"`
}

// ChatClient generates text from a system prompt and user prompt.
// Use this interface for dependency injection to enable mocking in tests.
type ChatClient interface {
	// Complete generates a single completion.
	Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (string, error)

	// Model returns the configured model name.
	Model() string
}

// Embedder produces fixed-dimension sentence embeddings.
type Embedder interface {
	// Embed generates an embedding vector for the input text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple inputs.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimensionality.
	Dimension() int

	// Model returns the configured model name.
	Model() string
}

// SpanPrediction is an extractive answer span with its confidence.
type SpanPrediction struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// SpanPredictor runs extractive question answering over a passage.
type SpanPredictor interface {
	// PredictSpan returns the best answer span for a question over a passage.
	PredictSpan(ctx context.Context, question, passage string) (SpanPrediction, error)
}

// Ensure concrete clients satisfy the interfaces at compile time.
var (
	_ ChatClient    = (*Client)(nil)
	_ Embedder      = (*Client)(nil)
	_ ChatClient    = (*AnthropicClient)(nil)
	_ Embedder      = (*GeminiEmbedder)(nil)
	_ SpanPredictor = (*SpanClient)(nil)
)
