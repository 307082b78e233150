package audit

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// Finding kinds reported by ScreenText.
const (
	FindingSQLi = "sqli"
	FindingXSS  = "xss"
)

// snippetRunes caps how much of the offending text is carried into events.
const snippetRunes = 120

// ScreenFinding describes one suspicious pattern detected in user input.
type ScreenFinding struct {
	Kind        string `json:"kind"`
	Field       string `json:"field"`
	Fingerprint string `json:"fingerprint,omitempty"` // libinjection fingerprint, sqli only
	Snippet     string `json:"snippet"`
}

// ScreenText checks user-supplied text for SQL injection and XSS patterns.
// All queries are parameterized and transcripts are rendered escaped, so
// findings feed security events rather than blocking the request: an essay
// about SQL is still a valid essay.
func ScreenText(field, text string) []ScreenFinding {
	if text == "" {
		return nil
	}

	var findings []ScreenFinding

	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		findings = append(findings, ScreenFinding{
			Kind:        FindingSQLi,
			Field:       field,
			Fingerprint: string(fingerprint),
			Snippet:     snippet(text),
		})
	}

	if libinjection.IsXSS(text) {
		findings = append(findings, ScreenFinding{
			Kind:    FindingXSS,
			Field:   field,
			Snippet: snippet(text),
		})
	}

	return findings
}

// snippet truncates text to a loggable size without splitting runes.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes])
}
