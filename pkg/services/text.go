// Package services contains the application services: the text engines
// (grammar, QA, reformulation, suggestions), the chat dispatcher that routes
// conversation turns to them, and the account-facing services for users,
// sessions, documents, feedback and API keys.
package services

import "strings"

// isBlank reports whether s contains no non-whitespace rune.
func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
