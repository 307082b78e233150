package models

import "time"

// Message roles within a chat session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Module types a message can belong to.
const (
	ModuleGrammar       = "grammar"
	ModuleQA            = "qa"
	ModuleReformulation = "reformulation"
	ModuleGeneral       = "general"
)

// Message is one turn in a chat session. Messages are append-only; metadata
// carries module-specific payloads such as correction lists or QA sources.
type Message struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	Role       string    `json:"role"`        // 'user', 'assistant'
	Content    string    `json:"content"`
	ModuleType string    `json:"module_type"` // 'grammar', 'qa', 'reformulation', 'general'
	Metadata   JSONBMap  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsValidRole checks if the given message role is valid.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// IsValidModuleType checks if the given module type is valid.
func IsValidModuleType(moduleType string) bool {
	switch moduleType {
	case ModuleGrammar, ModuleQA, ModuleReformulation, ModuleGeneral:
		return true
	}
	return false
}
