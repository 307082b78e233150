package services

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/plumelab/plume-engine/pkg/french"
)

// Sentence bounds for the heuristic: shorter fragments carry too little to
// quote, longer ones stop being an excerpt.
const (
	heuristicMinSentenceRunes = 20
	heuristicMaxSentenceRunes = 400
	heuristicKeepThreshold    = 0.2
	heuristicTopSentences     = 3
)

// definitionalMarkers boost sentences that define or decompose a concept,
// which is what academic questions usually ask for.
var definitionalMarkers = []string{"est", "sont", "composé", "structure", "définition", "signifie"}

type scoredExcerpt struct {
	text  string
	score float64
}

// heuristicAnswer selects the sentences of context that best cover the
// question's content words. It is fully deterministic: same question and
// context always select the same excerpts.
//
// Returns the joined answer, its confidence, and the source excerpts. When
// no sentence qualifies it falls back to the best paragraph, confidence
// floored at 0.4 or the span score, whichever is higher.
func heuristicAnswer(question, context string, spanScore float64) (string, float64, []string) {
	contentWords := french.ContentWords(question)

	kept := make([]scoredExcerpt, 0, 8)
	for _, sentence := range french.SplitSentences(context) {
		runes := utf8.RuneCountInString(sentence)
		if runes < heuristicMinSentenceRunes || runes > heuristicMaxSentenceRunes {
			continue
		}
		score := excerptScore(sentence, contentWords)
		if score > heuristicKeepThreshold {
			kept = append(kept, scoredExcerpt{text: sentence, score: score})
		}
	}

	if len(kept) == 0 {
		return paragraphFallback(context, contentWords, spanScore)
	}

	// Stable sort keeps document order among equal scores.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if len(kept) > heuristicTopSentences {
		kept = kept[:heuristicTopSentences]
	}

	sources := make([]string, len(kept))
	for i, s := range kept {
		sources[i] = s.text
	}

	answer := strings.Join(sources, " ")
	confidence := kept[0].score * 1.5
	if confidence > 0.75 {
		confidence = 0.75
	}
	return answer, confidence, sources
}

// excerptScore is the fraction of the question's content words present in
// the excerpt, plus a 0.3 bonus when the excerpt carries a definitional
// marker. Without content words there is nothing to match.
func excerptScore(excerpt string, contentWords []string) float64 {
	if len(contentWords) == 0 {
		return 0
	}

	tokens := make(map[string]struct{})
	for _, tok := range french.Tokenize(excerpt) {
		tokens[tok] = struct{}{}
	}

	matches := 0
	for _, word := range contentWords {
		if _, ok := tokens[word]; ok {
			matches++
		}
	}

	score := float64(matches) / float64(len(contentWords))
	for _, marker := range definitionalMarkers {
		if _, ok := tokens[marker]; ok {
			score += 0.3
			break
		}
	}
	return score
}

// paragraphFallback quotes the best-matching paragraph, truncated to the
// sentence-size cap at the last period inside it.
func paragraphFallback(context string, contentWords []string, spanScore float64) (string, float64, []string) {
	paragraphs := french.SplitParagraphs(context)
	if len(paragraphs) == 0 {
		return "", 0, nil
	}

	best := paragraphs[0]
	bestScore := excerptScore(best, contentWords)
	for _, p := range paragraphs[1:] {
		if score := excerptScore(p, contentWords); score > bestScore {
			best, bestScore = p, score
		}
	}

	excerpt := truncateAtPeriod(best, heuristicMaxSentenceRunes)
	confidence := spanScore
	if confidence < 0.4 {
		confidence = 0.4
	}
	return excerpt, confidence, []string{excerpt}
}

// truncateAtPeriod cuts text to at most max runes, backing up to the last
// period inside the cut when one exists.
func truncateAtPeriod(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	cut := runes[:max]
	if idx := strings.LastIndex(string(cut), "."); idx >= 0 {
		return string(cut)[:idx+1]
	}
	return string(cut)
}
