package models

import (
	"fmt"
	"time"
)

// Feedback types.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
	FeedbackRating   = "rating"
)

// FeedbackRetention caps how many feedback entries are kept per user.
// Older rows are pruned when new ones arrive.
const FeedbackRetention = 1000

// FeedbackEntry records a user's reaction to one module result. Rating is
// set only for 'rating' feedback and stays within 1..5.
type FeedbackEntry struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	TaskType     string    `json:"task_type"`     // 'grammar', 'qa', 'reformulation', 'general'
	FeedbackType string    `json:"feedback_type"` // 'positive', 'negative', 'rating'
	Rating       *int      `json:"rating,omitempty"`
	Comment      string    `json:"comment,omitempty"`
	Metadata     JSONBMap  `json:"metadata,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks the entry's type fields and the rating bounds.
func (f *FeedbackEntry) Validate() error {
	if !IsValidModuleType(f.TaskType) {
		return fmt.Errorf("invalid task type %q", f.TaskType)
	}
	switch f.FeedbackType {
	case FeedbackPositive, FeedbackNegative:
		if f.Rating != nil {
			return fmt.Errorf("rating is only allowed for %q feedback", FeedbackRating)
		}
	case FeedbackRating:
		if f.Rating == nil {
			return fmt.Errorf("%q feedback requires a rating", FeedbackRating)
		}
		if *f.Rating < 1 || *f.Rating > 5 {
			return fmt.Errorf("rating %d out of range 1..5", *f.Rating)
		}
	default:
		return fmt.Errorf("invalid feedback type %q", f.FeedbackType)
	}
	return nil
}

// Score maps the entry onto the 1..5 scale used by the parameter adapter:
// explicit ratings pass through, positive counts as 4, negative as 2.
func (f *FeedbackEntry) Score() int {
	switch f.FeedbackType {
	case FeedbackRating:
		if f.Rating != nil {
			return *f.Rating
		}
		return 3
	case FeedbackPositive:
		return 4
	case FeedbackNegative:
		return 2
	}
	return 3
}

// FeedbackStats summarizes a user's feedback for one task type. AverageScore
// uses the same 1..5 mapping as Score.
type FeedbackStats struct {
	TaskType     string  `json:"task_type"`
	Total        int     `json:"total"`
	Positive     int     `json:"positive"`
	Negative     int     `json:"negative"`
	Ratings      int     `json:"ratings"`
	AverageScore float64 `json:"average_score"`
}
