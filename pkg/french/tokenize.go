package french

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize lowercases text and splits it into word tokens. Apostrophes and
// hyphens separate tokens, so elided articles ("l'unité") split cleanly.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// ContentWords returns the tokens of a question that carry lexical content:
// longer than three runes and not on the stoplist.
func ContentWords(text string) []string {
	var words []string
	for _, tok := range Tokenize(text) {
		if utf8.RuneCountInString(tok) <= 3 {
			continue
		}
		if IsStopword(tok) {
			continue
		}
		words = append(words, tok)
	}
	return words
}

// StripStopwords filters function words out of a token stream.
func StripStopwords(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
