package services

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/cache"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/langtool"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/retry"
)

// GrammarChecker is the checker backend behind the grammar engine.
type GrammarChecker interface {
	Check(ctx context.Context, text string) ([]langtool.Match, error)
}

// GrammarResult is a corrected text with the substitutions that produced it.
// Applying every correction at its offset to OriginalText reproduces
// CorrectedText; corrections never overlap.
type GrammarResult struct {
	OriginalText  string                `json:"original_text"`
	CorrectedText string                `json:"corrected_text"`
	Corrections   []langtool.Correction `json:"corrections"`
}

// GrammarService corrects French text against the grammar backend.
type GrammarService interface {
	Correct(ctx context.Context, text string) (*GrammarResult, error)
}

type grammarService struct {
	checker GrammarChecker
	cache   *cache.Cache
	limits  config.LimitsConfig
	logger  *zap.Logger
}

// NewGrammarService creates a new grammar service.
func NewGrammarService(checker GrammarChecker, resultCache *cache.Cache, limits config.LimitsConfig, logger *zap.Logger) GrammarService {
	return &grammarService{
		checker: checker,
		cache:   resultCache,
		limits:  limits,
		logger:  logger,
	}
}

// Correct runs the checker over text and applies the non-overlapping plan.
// Checker trouble degrades to the input unchanged with no corrections; a
// degraded result is never cached, so the next request tries the checker
// again.
func (s *grammarService) Correct(ctx context.Context, text string) (*GrammarResult, error) {
	if isBlank(text) {
		return &GrammarResult{
			OriginalText:  text,
			CorrectedText: text,
			Corrections:   []langtool.Correction{},
		}, nil
	}

	if max := s.limits.MaxGrammarChars; max > 0 && utf8.RuneCountInString(text) > max {
		return nil, apperrors.Validation(fmt.Sprintf("text exceeds the maximum of %d characters", max))
	}

	key := cache.Fingerprint(cache.OpGrammar, text)
	result, fromCache, err := cache.GetOrCompute(ctx, s.cache, cache.OpGrammar, key, func(ctx context.Context) (*GrammarResult, error) {
		callCtx, done := llm.WithCallDeadline(ctx, s.limits, s.logger, "grammar_check")
		defer done()

		matches, err := retry.DoWithResult(callCtx, retry.ModelConfig(), func() ([]langtool.Match, error) {
			return s.checker.Check(callCtx, text)
		})
		if err != nil {
			return nil, fmt.Errorf("grammar check failed: %w", err)
		}

		plan := langtool.Corrections(text, matches)
		if plan == nil {
			plan = []langtool.Correction{}
		}
		return &GrammarResult{
			OriginalText:  text,
			CorrectedText: langtool.Apply(text, plan),
			Corrections:   plan,
		}, nil
	})
	if err != nil {
		s.logger.Warn("grammar checker unavailable, returning text unchanged",
			zap.Int("text_chars", utf8.RuneCountInString(text)),
			zap.Error(err))
		return &GrammarResult{
			OriginalText:  text,
			CorrectedText: text,
			Corrections:   []langtool.Correction{},
		}, nil
	}

	if fromCache {
		s.logger.Debug("grammar result served from cache")
	}
	return result, nil
}

// Ensure grammarService implements GrammarService at compile time.
var _ GrammarService = (*grammarService)(nil)
