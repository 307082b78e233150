package llm

import (
	"context"
)

// MockChatClient is a configurable mock for testing chat generation.
// Set the function fields to control behavior in tests.
type MockChatClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns empty string and nil error.
	CompleteFunc func(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification
	CompleteCalls  int
	LastUserPrompt string
	LastParams     GenerateParams
}

// NewMockChatClient creates a new mock with sensible defaults.
func NewMockChatClient() *MockChatClient {
	return &MockChatClient{
		ModelName: "mock-model",
	}
}

// Complete implements ChatClient.
func (m *MockChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string, params GenerateParams) (string, error) {
	m.CompleteCalls++
	m.LastUserPrompt = userPrompt
	m.LastParams = params
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, systemPrompt, userPrompt, params)
	}
	return "", nil
}

// Model implements ChatClient.
func (m *MockChatClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Reset clears call tracking counters.
func (m *MockChatClient) Reset() {
	m.CompleteCalls = 0
	m.LastUserPrompt = ""
	m.LastParams = GenerateParams{}
}

// Ensure MockChatClient implements ChatClient at compile time.
var _ ChatClient = (*MockChatClient)(nil)

// MockEmbedder is a configurable mock for testing embedding callers.
type MockEmbedder struct {
	// EmbedFunc is called when Embed is invoked.
	// If nil, returns a deterministic vector derived from the text length.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedBatchFunc is called when EmbedBatch is invoked.
	// If nil, falls back to Embed per input.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Dim is returned by Dimension. Defaults to 4.
	Dim int

	// Call tracking for verification
	EmbedCalls      int
	EmbedBatchCalls int
}

// NewMockEmbedder creates a new mock embedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{Dim: 4}
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	vec := make([]float32, m.Dimension())
	for i := range vec {
		vec[i] = float32(len(text)%7+i) / 10
	}
	return vec, nil
}

// EmbedBatch implements Embedder.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.EmbedBatchCalls++
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension implements Embedder.
func (m *MockEmbedder) Dimension() int {
	if m.Dim <= 0 {
		return 4
	}
	return m.Dim
}

// Model implements Embedder.
func (m *MockEmbedder) Model() string {
	return "mock-embedder"
}

// Ensure MockEmbedder implements Embedder at compile time.
var _ Embedder = (*MockEmbedder)(nil)

// MockSpanPredictor is a configurable mock for testing extractive QA.
type MockSpanPredictor struct {
	// PredictSpanFunc is called when PredictSpan is invoked.
	// If nil, returns an empty prediction and nil error.
	PredictSpanFunc func(ctx context.Context, question, passage string) (SpanPrediction, error)

	// Call tracking for verification
	PredictSpanCalls int
}

// NewMockSpanPredictor creates a new mock span predictor.
func NewMockSpanPredictor() *MockSpanPredictor {
	return &MockSpanPredictor{}
}

// PredictSpan implements SpanPredictor.
func (m *MockSpanPredictor) PredictSpan(ctx context.Context, question, passage string) (SpanPrediction, error) {
	m.PredictSpanCalls++
	if m.PredictSpanFunc != nil {
		return m.PredictSpanFunc(ctx, question, passage)
	}
	return SpanPrediction{}, nil
}

// Ensure MockSpanPredictor implements SpanPredictor at compile time.
var _ SpanPredictor = (*MockSpanPredictor)(nil)
