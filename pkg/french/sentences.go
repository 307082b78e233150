package french

import (
	"regexp"
	"strings"
)

var (
	sentenceSplitter  = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
	paragraphSplitter = regexp.MustCompile(`\n\s*\n`)
)

// SplitSentences segments text on terminal punctuation. A trailing fragment
// without terminal punctuation is kept as its own sentence.
func SplitSentences(text string) []string {
	matches := sentenceSplitter.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var sentences []string
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	// Keep any trailing text after the last terminal mark
	if tail := strings.TrimSpace(text[matches[len(matches)-1][1]:]); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// SplitParagraphs segments text on blank lines.
func SplitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range paragraphSplitter.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}
