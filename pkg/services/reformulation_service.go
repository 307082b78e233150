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
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/retry"
)

// TaskReformulation keys feedback and parameter adaptation for the
// reformulation engine.
const TaskReformulation = "reformulation"

// ParamsAdapter supplies per-user decoding parameters for a task. Implemented
// by the feedback service; a nil adapter means defaults for everyone.
type ParamsAdapter interface {
	AdaptedParams(ctx context.Context, userID int64, task string) llm.GenerateParams
}

// ReformulationResult is a rewritten text with its style and change notes.
// Changes always carries "style"; "error" is set when the model was
// unavailable and the original text came back untouched.
type ReformulationResult struct {
	OriginalText     string            `json:"original_text"`
	ReformulatedText string            `json:"reformulated_text"`
	Style            string            `json:"style"`
	Changes          map[string]string `json:"changes"`
}

// ReformulationService rewrites French text into a target register.
type ReformulationService interface {
	// Reformulate rewrites text in the named style. An empty style selects
	// academic. userID 0 means anonymous and gets default decoding params.
	Reformulate(ctx context.Context, userID int64, text, style string) (*ReformulationResult, error)
}

type reformulationService struct {
	chat   llm.ChatClient
	params ParamsAdapter
	cache  *cache.Cache
	limits config.LimitsConfig
	logger *zap.Logger
}

// NewReformulationService creates a new reformulation service.
func NewReformulationService(chat llm.ChatClient, params ParamsAdapter, resultCache *cache.Cache, limits config.LimitsConfig, logger *zap.Logger) ReformulationService {
	return &reformulationService{
		chat:   chat,
		params: params,
		cache:  resultCache,
		limits: limits,
		logger: logger,
	}
}

func (s *reformulationService) Reformulate(ctx context.Context, userID int64, text, style string) (*ReformulationResult, error) {
	if style == "" {
		style = prompts.StyleAcademic
	}
	if !prompts.IsValidStyle(style) {
		return nil, apperrors.Validation(fmt.Sprintf("unknown reformulation style %q", style))
	}
	if max := s.limits.MaxReformulationChars; max > 0 && utf8.RuneCountInString(text) > max {
		return nil, apperrors.Validation(fmt.Sprintf("text exceeds the maximum of %d characters", max))
	}

	if isBlank(text) {
		return &ReformulationResult{
			OriginalText:     text,
			ReformulatedText: text,
			Style:            style,
			Changes:          map[string]string{"style": style},
		}, nil
	}

	// Adapted params differ per user, so the user is part of the key.
	key := cache.Fingerprint(cache.OpReformulation, text, style, strconv.FormatInt(userID, 10))
	result, fromCache, err := cache.GetOrCompute(ctx, s.cache, cache.OpReformulation, key, func(ctx context.Context) (*ReformulationResult, error) {
		params := s.adaptedParams(ctx, userID)
		system := prompts.ReformulationSystemPrompt(style)
		user := prompts.BuildReformulationPrompt(text)

		callCtx, done := llm.WithCallDeadline(ctx, s.limits, s.logger, "reformulation")
		defer done()

		raw, err := retry.DoWithResult(callCtx, retry.ModelConfig(), func() (string, error) {
			return s.chat.Complete(callCtx, system, user, params)
		})
		if err != nil {
			return nil, fmt.Errorf("reformulation failed: %w", err)
		}

		cleaned := prompts.CleanReformulation(raw)
		if cleaned == "" {
			return nil, fmt.Errorf("model returned an empty reformulation")
		}
		return &ReformulationResult{
			OriginalText:     text,
			ReformulatedText: cleaned,
			Style:            style,
			Changes:          map[string]string{"style": style},
		}, nil
	})
	if err != nil {
		s.logger.Warn("reformulation model unavailable, returning text unchanged",
			zap.String("style", style),
			zap.Error(err))
		return &ReformulationResult{
			OriginalText:     text,
			ReformulatedText: text,
			Style:            style,
			Changes: map[string]string{
				"style": style,
				"error": prompts.ReformulationUnavailable,
			},
		}, nil
	}

	if fromCache {
		s.logger.Debug("reformulation served from cache", zap.String("style", style))
	}
	return result, nil
}

func (s *reformulationService) adaptedParams(ctx context.Context, userID int64) llm.GenerateParams {
	if s.params == nil || userID == 0 {
		return DefaultGenerateParams()
	}
	return s.params.AdaptedParams(ctx, userID, TaskReformulation)
}

// Ensure reformulationService implements ReformulationService at compile time.
var _ ReformulationService = (*reformulationService)(nil)
