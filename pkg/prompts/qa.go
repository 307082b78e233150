package prompts

import "fmt"

// NoContextDisclaimer is the canned answer when QA has no material to ground
// a response. Confidence is zero by construction.
const NoContextDisclaimer = "Je ne dispose pas de suffisamment d'éléments pour répondre " +
	"à cette question avec fiabilité. Vous pouvez téléverser un document pertinent ou " +
	"préciser le contexte de votre question."

// Confidence band labels, highest first.
const (
	BandVeryHigh = "très élevée"
	BandHigh     = "élevée"
	BandModerate = "modérée"
	BandLow      = "faible"
)

// ConfidenceBand maps a confidence score onto its French band label.
func ConfidenceBand(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return BandVeryHigh
	case confidence >= 0.6:
		return BandHigh
	case confidence >= 0.4:
		return BandModerate
	default:
		return BandLow
	}
}

// QAAnswer wraps an extracted answer with the academic preamble naming the
// confidence band. Answers at confidence 0.3 or below pass through unwrapped;
// at that level a preamble would lend unearned authority.
func QAAnswer(answer string, confidence float64) string {
	if confidence <= 0.3 {
		return answer
	}
	return fmt.Sprintf("D'après les éléments consultés (confiance %s) : %s",
		ConfidenceBand(confidence), answer)
}
