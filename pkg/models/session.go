package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatSession groups messages for one conversation. A session can be shared
// read-only via its share token; the token exists exactly while the session
// is shared.
type ChatSession struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Title      string     `json:"title"`
	IsShared   bool       `json:"is_shared"`
	ShareToken *uuid.UUID `json:"share_token,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Share marks the session shared, minting a token if none exists yet.
// Re-sharing keeps the existing token so previously handed-out links stay
// valid.
func (s *ChatSession) Share() uuid.UUID {
	if s.ShareToken == nil {
		token := uuid.New()
		s.ShareToken = &token
	}
	s.IsShared = true
	return *s.ShareToken
}

// Unshare revokes sharing and discards the token. A later Share mints a
// fresh token, invalidating old links.
func (s *ChatSession) Unshare() {
	s.IsShared = false
	s.ShareToken = nil
}
