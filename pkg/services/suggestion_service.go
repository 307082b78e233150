package services

import (
	"context"
	"fmt"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/cache"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/logging"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/retry"
)

// maxSuggestions caps how many suggestions one call returns.
const maxSuggestions = 5

// SuggestionsResult is the parsed model response for a suggestions call.
type SuggestionsResult struct {
	Suggestions []string `json:"suggestions"`
}

// SuggestionService proposes concrete writing improvements over a draft
// excerpt.
type SuggestionService interface {
	// Suggest returns up to five French writing suggestions for text.
	// Model trouble degrades to an empty list; userID 0 means anonymous.
	Suggest(ctx context.Context, userID int64, text string) (*SuggestionsResult, error)
}

type suggestionService struct {
	chat   llm.ChatClient
	params ParamsAdapter
	cache  *cache.Cache
	limits config.LimitsConfig
	logger *zap.Logger
}

// NewSuggestionService creates a new suggestion service.
func NewSuggestionService(chat llm.ChatClient, params ParamsAdapter, resultCache *cache.Cache, limits config.LimitsConfig, logger *zap.Logger) SuggestionService {
	return &suggestionService{
		chat:   chat,
		params: params,
		cache:  resultCache,
		limits: limits,
		logger: logger,
	}
}

func (s *suggestionService) Suggest(ctx context.Context, userID int64, text string) (*SuggestionsResult, error) {
	if isBlank(text) {
		return nil, apperrors.Validation("text is required")
	}
	if max := s.limits.MaxReformulationChars; max > 0 && utf8.RuneCountInString(text) > max {
		return nil, apperrors.Validation(fmt.Sprintf("text exceeds the maximum of %d characters", max))
	}

	key := cache.Fingerprint(cache.OpSuggestions, text, strconv.FormatInt(userID, 10))
	result, fromCache, err := cache.GetOrCompute(ctx, s.cache, cache.OpSuggestions, key, func(ctx context.Context) (*SuggestionsResult, error) {
		params := s.adaptedParams(ctx, userID)

		callCtx, done := llm.WithCallDeadline(ctx, s.limits, s.logger, "suggestions")
		defer done()

		raw, err := retry.DoWithResult(callCtx, retry.ModelConfig(), func() (string, error) {
			return s.chat.Complete(callCtx, prompts.SuggestionsSystemPrompt, prompts.BuildSuggestionsPrompt(text), params)
		})
		if err != nil {
			return nil, fmt.Errorf("suggestions failed: %w", err)
		}

		// Local reasoning models prepend <think> blocks; surface them at
		// debug level, the JSON parser below strips them anyway.
		if thinking := llm.ExtractThinking(raw); thinking != "" {
			s.logger.Debug("model reasoning preceding suggestions",
				zap.String("thinking", logging.SanitizeText(thinking)))
		}

		parsed, err := llm.ParseJSONResponse[SuggestionsResult](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse suggestions response: %w", err)
		}

		suggestions := make([]string, 0, len(parsed.Suggestions))
		for _, suggestion := range parsed.Suggestions {
			if isBlank(suggestion) {
				continue
			}
			suggestions = append(suggestions, suggestion)
			if len(suggestions) == maxSuggestions {
				break
			}
		}
		if len(suggestions) == 0 {
			return nil, fmt.Errorf("model returned no usable suggestions")
		}
		return &SuggestionsResult{Suggestions: suggestions}, nil
	})
	if err != nil {
		s.logger.Warn("suggestions unavailable, returning an empty list",
			zap.Error(err))
		return &SuggestionsResult{Suggestions: []string{}}, nil
	}

	if fromCache {
		s.logger.Debug("suggestions served from cache")
	}
	return result, nil
}

func (s *suggestionService) adaptedParams(ctx context.Context, userID int64) llm.GenerateParams {
	if s.params == nil || userID == 0 {
		return DefaultGenerateParams()
	}
	return s.params.AdaptedParams(ctx, userID, models.ModuleGeneral)
}

// Ensure suggestionService implements SuggestionService at compile time.
var _ SuggestionService = (*suggestionService)(nil)
