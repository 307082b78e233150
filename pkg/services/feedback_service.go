package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/llm"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/repositories"
)

// Parameter adaptation bounds and thresholds. Below adaptMinSamples the
// defaults are returned untouched; preferences look at the latest
// prefsWindow entries only.
const (
	adaptMinSamples = 5
	prefsWindow     = 100

	minTemperature float32 = 0.3
	maxTemperature float32 = 1.2
	minMaxTokens           = 48
	maxMaxTokens           = 512
	minTopP        float32 = 0.5
	maxTopP        float32 = 1.0
)

// DefaultGenerateParams are the decoding parameters used before any feedback
// has accumulated, and for anonymous callers.
func DefaultGenerateParams() llm.GenerateParams {
	return llm.GenerateParams{
		Temperature: 0.7,
		MaxTokens:   256,
		TopP:        0.9,
	}
}

// FeedbackRequest is the payload for explicit feedback on a module result.
type FeedbackRequest struct {
	TaskType     string          `json:"task_type"`
	FeedbackType string          `json:"feedback_type"`
	Rating       *int            `json:"rating,omitempty"`
	Comment      string          `json:"comment,omitempty"`
	Metadata     models.JSONBMap `json:"metadata,omitempty"`
}

// Preferences summarizes a user's recent feedback for one task type.
// Positive counts entries scoring 4 or above on the 1..5 scale, negative
// those scoring 2 or below, so thumbs and explicit ratings aggregate on the
// same axis.
type Preferences struct {
	TaskType       string         `json:"task_type"`
	Samples        int            `json:"samples"`
	Positive       int            `json:"positive"`
	Negative       int            `json:"negative"`
	MeanScore      float64        `json:"mean_score"`
	PreferredStyle string         `json:"preferred_style,omitempty"`
	StyleCounts    map[string]int `json:"style_counts,omitempty"`
}

// FeedbackService records user feedback and turns it into per-user decoding
// parameters.
type FeedbackService interface {
	// Record stores explicit feedback after validating it.
	Record(ctx context.Context, userID int64, req *FeedbackRequest) (*models.FeedbackEntry, error)
	// RecordImplicit stores an automatic signal from a pipeline run: positive
	// on success, negative when an error surfaced to the user. Storage
	// trouble is logged, never surfaced.
	RecordImplicit(ctx context.Context, userID int64, task string, success bool)
	// Preferences recomputes the user's preference summary from the latest
	// feedback window.
	Preferences(ctx context.Context, userID int64, task string) (*Preferences, error)
	// Stats aggregates the user's feedback per task type.
	Stats(ctx context.Context, userID int64) ([]*models.FeedbackStats, error)
	// AdaptedParams returns the decoding parameters for a user and task,
	// falling back to defaults when preferences cannot be loaded.
	AdaptedParams(ctx context.Context, userID int64, task string) llm.GenerateParams
}

type feedbackService struct {
	repo   repositories.FeedbackRepository
	logger *zap.Logger
}

// NewFeedbackService creates a new feedback service.
func NewFeedbackService(repo repositories.FeedbackRepository, logger *zap.Logger) FeedbackService {
	return &feedbackService{
		repo:   repo,
		logger: logger,
	}
}

func (s *feedbackService) Record(ctx context.Context, userID int64, req *FeedbackRequest) (*models.FeedbackEntry, error) {
	entry := &models.FeedbackEntry{
		UserID:       userID,
		TaskType:     req.TaskType,
		FeedbackType: req.FeedbackType,
		Rating:       req.Rating,
		Comment:      req.Comment,
		Metadata:     req.Metadata,
	}
	if err := entry.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	return entry, nil
}

func (s *feedbackService) RecordImplicit(ctx context.Context, userID int64, task string, success bool) {
	if userID == 0 || !models.IsValidModuleType(task) {
		return
	}

	feedbackType := models.FeedbackPositive
	if !success {
		feedbackType = models.FeedbackNegative
	}
	entry := &models.FeedbackEntry{
		UserID:       userID,
		TaskType:     task,
		FeedbackType: feedbackType,
		Metadata:     models.JSONBMap{"implicit": true},
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record implicit feedback",
			zap.Int64("user_id", userID),
			zap.String("task", task),
			zap.Error(err))
	}
}

func (s *feedbackService) Preferences(ctx context.Context, userID int64, task string) (*Preferences, error) {
	entries, err := s.repo.ListRecent(ctx, userID, task, prefsWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback window: %w", err)
	}

	prefs := &Preferences{
		TaskType: task,
		Samples:  len(entries),
	}
	if len(entries) == 0 {
		return prefs, nil
	}

	styleCounts := make(map[string]int)
	sum := 0
	for _, entry := range entries {
		score := entry.Score()
		sum += score
		switch {
		case score >= 4:
			prefs.Positive++
		case score <= 2:
			prefs.Negative++
		}
		if style, ok := entry.Metadata["style"].(string); ok && style != "" {
			styleCounts[style]++
		}
	}
	prefs.MeanScore = float64(sum) / float64(len(entries))

	if len(styleCounts) > 0 {
		prefs.StyleCounts = styleCounts
		names := make([]string, 0, len(styleCounts))
		for name := range styleCounts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if styleCounts[name] > styleCounts[prefs.PreferredStyle] {
				prefs.PreferredStyle = name
			}
		}
	}

	return prefs, nil
}

func (s *feedbackService) Stats(ctx context.Context, userID int64) ([]*models.FeedbackStats, error) {
	stats, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback stats: %w", err)
	}
	return stats, nil
}

func (s *feedbackService) AdaptedParams(ctx context.Context, userID int64, task string) llm.GenerateParams {
	defaults := DefaultGenerateParams()
	if userID == 0 {
		return defaults
	}

	prefs, err := s.Preferences(ctx, userID, task)
	if err != nil {
		s.logger.Warn("failed to load preferences, using default params",
			zap.Int64("user_id", userID),
			zap.String("task", task),
			zap.Error(err))
		return defaults
	}
	return AdaptParams(prefs, defaults)
}

// AdaptParams nudges the decoding parameters from a preference summary. The
// curve is a single monotone step on the smoothed positive:negative ratio
// r = (positive+1)/(negative+1):
//
//	r >= 2   keep the temperature, allow 25% longer output
//	r <= 0.5 cool the temperature halfway toward 0.5, shorten output by
//	         25% and tighten nucleus sampling
//
// Fewer than adaptMinSamples entries leave the defaults untouched. The
// result is always clamped to Temperature [0.3, 1.2], MaxTokens [48, 512]
// and TopP [0.5, 1.0].
func AdaptParams(prefs *Preferences, defaults llm.GenerateParams) llm.GenerateParams {
	params := defaults
	if prefs == nil || prefs.Samples < adaptMinSamples {
		return clampParams(params)
	}

	ratio := float64(prefs.Positive+1) / float64(prefs.Negative+1)
	switch {
	case ratio >= 2:
		params.MaxTokens = int(float64(params.MaxTokens) * 1.25)
	case ratio <= 0.5:
		params.Temperature -= (params.Temperature - 0.5) / 2
		params.MaxTokens = int(float64(params.MaxTokens) * 0.75)
		params.TopP -= 0.05
	}
	return clampParams(params)
}

func clampParams(p llm.GenerateParams) llm.GenerateParams {
	if p.Temperature < minTemperature {
		p.Temperature = minTemperature
	}
	if p.Temperature > maxTemperature {
		p.Temperature = maxTemperature
	}
	if p.MaxTokens < minMaxTokens {
		p.MaxTokens = minMaxTokens
	}
	if p.MaxTokens > maxMaxTokens {
		p.MaxTokens = maxMaxTokens
	}
	if p.TopP < minTopP {
		p.TopP = minTopP
	}
	if p.TopP > maxTopP {
		p.TopP = maxTopP
	}
	return p
}

// Ensure feedbackService implements FeedbackService at compile time.
var (
	_ FeedbackService = (*feedbackService)(nil)
	_ ParamsAdapter   = (*feedbackService)(nil)
)
