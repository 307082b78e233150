package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SpanClient calls an extractive QA model served over an HF-style inference
// endpoint. A circuit breaker guards the endpoint so a dead model server
// degrades QA to its heuristic fallback instead of stalling every request.
type SpanClient struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	breaker    *CircuitBreaker
	logger     *zap.Logger
}

// NewSpanClient creates a span prediction client for the given endpoint.
func NewSpanClient(endpoint, apiKey string, logger *zap.Logger) (*SpanClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	httpClient := newHTTPClient()
	httpClient.Timeout = 15 * time.Second

	return &SpanClient{
		httpClient: httpClient,
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		apiKey:     apiKey,
		breaker:    NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:     logger.Named("span"),
	}, nil
}

type spanRequest struct {
	Inputs spanInputs `json:"inputs"`
}

type spanInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

// PredictSpan returns the best answer span for a question over a passage.
func (c *SpanClient) PredictSpan(ctx context.Context, question, passage string) (SpanPrediction, error) {
	if allowed, err := c.breaker.Allow(); !allowed {
		return SpanPrediction{}, NewError(ErrorTypeEndpoint, "span model circuit open", true, err)
	}

	body, err := json.Marshal(spanRequest{
		Inputs: spanInputs{Question: question, Context: passage},
	})
	if err != nil {
		return SpanPrediction{}, fmt.Errorf("marshal span request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return SpanPrediction{}, fmt.Errorf("build span request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Error("span request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return SpanPrediction{}, ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("span model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		return SpanPrediction{}, ClassifyError(err)
	}

	prediction, err := decodeSpanResponse(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return SpanPrediction{}, NewError(ErrorTypeModel, "undecodable span response", false, err)
	}

	c.breaker.RecordSuccess()
	c.logger.Debug("span prediction",
		zap.Float64("score", prediction.Score),
		zap.Int("answer_len", len(prediction.Answer)),
		zap.Duration("elapsed", time.Since(start)))

	return prediction, nil
}

// decodeSpanResponse accepts both shapes HF deployments answer with: a single
// prediction object or a one-element array of predictions.
func decodeSpanResponse(r io.Reader) (SpanPrediction, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return SpanPrediction{}, err
	}

	var single SpanPrediction
	if err := json.Unmarshal(raw, &single); err == nil && single.Answer != "" {
		return single, nil
	}

	var many []SpanPrediction
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}

	return SpanPrediction{}, fmt.Errorf("unrecognized span response: %s", strings.TrimSpace(string(raw)))
}

// BreakerState exposes the circuit state for health reporting.
func (c *SpanClient) BreakerState() CircuitState {
	return c.breaker.State()
}
