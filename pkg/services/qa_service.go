package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/cache"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/french"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/retrieval"
	"github.com/plumelab/plume-engine/pkg/retry"
)

// Stage B takes over below this span score or answer length.
const (
	spanMinScore       = 0.5
	spanMinAnswerRunes = 10
)

// qaMaxChunks caps how many retrieved chunks feed the assembled context.
const qaMaxChunks = 5

// ContextProvider assembles retrieval context for a question. Implemented by
// retrieval.Retriever; abstracted so tests can stub retrieval.
type ContextProvider interface {
	Search(ctx context.Context, userID int64, query string, topK int) ([]retrieval.Result, error)
	ContextForQA(results []retrieval.Result) string
}

// QAResult is an extractive answer over the supplied or retrieved context.
// Confidence is in [0,1]; every source is an excerpt of the context that
// produced the answer.
type QAResult struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// QAService answers questions over user documents and supplied context.
type QAService interface {
	// Answer resolves a question. When explicitContext is empty and the
	// caller is authenticated, context is assembled from the user's
	// indexed documents. userID 0 means anonymous.
	Answer(ctx context.Context, userID int64, question, explicitContext string) (*QAResult, error)
}

type qaService struct {
	span      llm.SpanPredictor
	retriever ContextProvider
	cache     *cache.Cache
	limits    config.LimitsConfig
	logger    *zap.Logger
}

// NewQAService creates a new QA service. The retriever may be nil when no
// embedder is configured; answers then rely on explicit context only.
func NewQAService(span llm.SpanPredictor, retriever ContextProvider, resultCache *cache.Cache, limits config.LimitsConfig, logger *zap.Logger) QAService {
	return &qaService{
		span:      span,
		retriever: retriever,
		cache:     resultCache,
		limits:    limits,
		logger:    logger,
	}
}

func (s *qaService) Answer(ctx context.Context, userID int64, question, explicitContext string) (*QAResult, error) {
	if isBlank(question) {
		return nil, apperrors.Validation("question is required")
	}
	if max := s.limits.MaxQuestionChars; max > 0 && utf8.RuneCountInString(question) > max {
		return nil, apperrors.Validation(fmt.Sprintf("question exceeds the maximum of %d characters", max))
	}
	if max := s.limits.MaxContextChars; max > 0 && utf8.RuneCountInString(explicitContext) > max {
		return nil, apperrors.Validation(fmt.Sprintf("context exceeds the maximum of %d characters", max))
	}

	qaContext := strings.TrimSpace(explicitContext)
	if qaContext == "" && userID != 0 && s.retriever != nil {
		qaContext = s.retrieveContext(ctx, userID, question)
	}

	// Key on question and context: the context already encodes whose
	// documents informed the answer.
	key := cache.Fingerprint(cache.OpQA, question, qaContext)
	result, _, err := cache.GetOrCompute(ctx, s.cache, cache.OpQA, key, func(ctx context.Context) (*QAResult, error) {
		return s.answer(ctx, question, qaContext), nil
	})
	if err != nil {
		// Unreachable today (answer never errors) but the cache contract
		// requires handling it.
		return nil, err
	}
	return result, nil
}

// retrieveContext assembles context from the user's indexed documents.
// Retrieval trouble degrades to no context.
func (s *qaService) retrieveContext(ctx context.Context, userID int64, question string) string {
	results, err := s.retriever.Search(ctx, userID, question, qaMaxChunks)
	if err != nil {
		s.logger.Warn("retrieval unavailable, answering without context",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return ""
	}
	return s.retriever.ContextForQA(results)
}

// answer runs the two-stage selection. It never returns an error: a missing
// model or empty context degrade to the disclaimer or the heuristic.
func (s *qaService) answer(ctx context.Context, question, qaContext string) *QAResult {
	if qaContext == "" {
		return &QAResult{
			Question:   question,
			Answer:     prompts.NoContextDisclaimer,
			Confidence: 0,
			Sources:    []string{},
		}
	}

	prediction := s.predictSpan(ctx, question, qaContext)

	answer := strings.TrimSpace(prediction.Answer)
	confidence := clamp01(prediction.Score)
	var sources []string

	if prediction.Score < spanMinScore || utf8.RuneCountInString(answer) < spanMinAnswerRunes {
		answer, confidence, sources = heuristicAnswer(question, qaContext, prediction.Score)
		confidence = clamp01(confidence)
	} else {
		sources = spanSources(qaContext, answer)
	}

	if answer == "" {
		return &QAResult{
			Question:   question,
			Answer:     prompts.NoContextDisclaimer,
			Confidence: 0,
			Sources:    []string{},
		}
	}

	if sources == nil {
		sources = []string{}
	}
	return &QAResult{
		Question:   question,
		Answer:     prompts.QAAnswer(answer, confidence),
		Confidence: confidence,
		Sources:    sources,
	}
}

// predictSpan runs Stage A with the model retry policy. Failures degrade to
// a zero-score prediction so Stage B takes over.
func (s *qaService) predictSpan(ctx context.Context, question, qaContext string) llm.SpanPrediction {
	if s.span == nil {
		return llm.SpanPrediction{}
	}

	callCtx, done := llm.WithCallDeadline(ctx, s.limits, s.logger, "qa_span")
	defer done()

	prediction, err := retry.DoWithResult(callCtx, retry.ModelConfig(), func() (llm.SpanPrediction, error) {
		return s.span.PredictSpan(callCtx, question, qaContext)
	})
	if err != nil {
		s.logger.Warn("span model unavailable, falling back to heuristic",
			zap.Error(err))
		return llm.SpanPrediction{}
	}
	return prediction
}

// spanSources locates the sentence quoting the extracted span so sources
// stay excerpts of the context.
func spanSources(qaContext, answer string) []string {
	for _, sentence := range french.SplitSentences(qaContext) {
		if strings.Contains(sentence, answer) {
			return []string{sentence}
		}
	}
	return []string{truncateAtPeriod(qaContext, heuristicMaxSentenceRunes)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ensure qaService implements QAService at compile time.
var _ QAService = (*qaService)(nil)
