// Package prompts holds the French prompt and phrasing catalogue: system
// prompts per reformulation style, conversation framing, and the canned
// academic phrasing around QA answers. Keeping every user-visible French
// string here keeps the services free of literals and the register uniform.
package prompts

import (
	"fmt"
	"strings"
)

// Reformulation style names. Academic is the default.
const (
	StyleAcademic       = "academic"
	StyleFormal         = "formal"
	StyleSimple         = "simple"
	StyleParaphrase     = "paraphrase"
	StyleSimplification = "simplification"
)

// Style describes one reformulation register for the style catalogue.
type Style struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// styleOrder fixes the catalogue ordering; the default style comes first.
var styleOrder = []string{
	StyleAcademic,
	StyleFormal,
	StyleSimple,
	StyleParaphrase,
	StyleSimplification,
}

var styles = map[string]Style{
	StyleAcademic: {
		Name:        StyleAcademic,
		Label:       "Académique",
		Description: "Registre soutenu, nominalisations et précautions rhétoriques propres à l'écrit universitaire.",
	},
	StyleFormal: {
		Name:        StyleFormal,
		Label:       "Formel",
		Description: "Registre poli et soigné, sans contractions ni tournures familières.",
	},
	StyleSimple: {
		Name:        StyleSimple,
		Label:       "Simple",
		Description: "Vocabulaire courant et phrases courtes, accessible à tous les lecteurs.",
	},
	StyleParaphrase: {
		Name:        StyleParaphrase,
		Label:       "Paraphrase",
		Description: "Reformulation maximale de la surface du texte en préservant strictement le sens.",
	},
	StyleSimplification: {
		Name:        StyleSimplification,
		Label:       "Simplification",
		Description: "Phrases raccourcies et référents explicites pour faciliter la lecture.",
	},
}

var styleSystemPrompts = map[string]string{
	StyleAcademic: "Tu es un assistant de rédaction universitaire francophone. " +
		"Réécris le texte fourni dans un registre académique soutenu : privilégie les nominalisations, " +
		"introduit des précautions rhétoriques (il semble que, on peut considérer que) lorsque l'affirmation est forte, " +
		"et bannis les tournures orales. Conserve exactement le sens et les informations du texte. " +
		"Réponds uniquement avec le texte réécrit, sans commentaire ni guillemets.",
	StyleFormal: "Tu es un assistant de rédaction francophone. " +
		"Réécris le texte fourni dans un registre formel et poli : supprime les contractions et les familiarités, " +
		"emploie le vouvoiement lorsque le texte s'adresse à quelqu'un, et soigne les formules. " +
		"Conserve exactement le sens du texte. " +
		"Réponds uniquement avec le texte réécrit, sans commentaire ni guillemets.",
	StyleSimple: "Tu es un assistant de rédaction francophone. " +
		"Réécris le texte fourni en langage simple : remplace le vocabulaire rare par des mots courants " +
		"et découpe les phrases longues. Conserve toutes les informations du texte. " +
		"Réponds uniquement avec le texte réécrit, sans commentaire ni guillemets.",
	StyleParaphrase: "Tu es un assistant de rédaction francophone. " +
		"Paraphrase le texte fourni : change au maximum la formulation, la structure des phrases et le lexique, " +
		"tout en préservant strictement le sens et les informations. " +
		"Réponds uniquement avec le texte réécrit, sans commentaire ni guillemets.",
	StyleSimplification: "Tu es un assistant de rédaction francophone. " +
		"Simplifie le texte fourni : raccourcis les phrases, une idée par phrase, " +
		"et remplace les pronoms ambigus par leur référent explicite. Conserve toutes les informations. " +
		"Réponds uniquement avec le texte réécrit, sans commentaire ni guillemets.",
}

// Styles returns the reformulation style catalogue in display order.
func Styles() []Style {
	out := make([]Style, 0, len(styleOrder))
	for _, name := range styleOrder {
		out = append(out, styles[name])
	}
	return out
}

// IsValidStyle reports whether name is a known reformulation style.
func IsValidStyle(name string) bool {
	_, ok := styles[name]
	return ok
}

// ReformulationSystemPrompt returns the system prompt carrying the style
// intent. Unknown styles fall back to academic; callers validate first.
func ReformulationSystemPrompt(style string) string {
	if prompt, ok := styleSystemPrompts[style]; ok {
		return prompt
	}
	return styleSystemPrompts[StyleAcademic]
}

// BuildReformulationPrompt wraps the user text for a reformulation call.
func BuildReformulationPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Texte à réécrire :\n\n")
	b.WriteString(strings.TrimSpace(text))
	return b.String()
}

// CleanReformulation strips the framing some models add around the rewritten
// text: surrounding quotes and a leading announcement line ending with a
// colon. Inner content is preserved verbatim.
func CleanReformulation(output string) string {
	s := strings.TrimSpace(output)

	// Leading "Voici le texte réécrit :" style preamble on its own line.
	if idx := strings.Index(s, "\n"); idx > 0 {
		first := strings.TrimSpace(s[:idx])
		if strings.HasSuffix(first, ":") || strings.HasSuffix(first, " :") {
			s = strings.TrimSpace(s[idx+1:])
		}
	}

	for _, quote := range []struct{ open, close string }{
		{`"`, `"`},
		{"«", "»"},
		{"“", "”"},
	} {
		if strings.HasPrefix(s, quote.open) && strings.HasSuffix(s, quote.close) && len(s) > len(quote.open)+len(quote.close) {
			s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, quote.open), quote.close))
			break
		}
	}

	return s
}

// ReformulationUnavailable is the user-facing note set when the model could
// not be reached and the original text is returned untouched.
const ReformulationUnavailable = "Le modèle de reformulation est momentanément indisponible ; " +
	"le texte original a été conservé."

// BuildSuggestionsPrompt asks for writing suggestions over a draft.
func BuildSuggestionsPrompt(text string) string {
	return fmt.Sprintf("Voici un extrait de rédaction académique :\n\n%s\n\n"+
		"Propose des améliorations concrètes.", strings.TrimSpace(text))
}

// SuggestionsSystemPrompt frames the writing-suggestions call. The response
// contract is JSON so the service can parse reliably.
const SuggestionsSystemPrompt = "Tu es un relecteur de travaux universitaires francophone. " +
	"Analyse l'extrait fourni et propose entre trois et cinq suggestions d'amélioration " +
	"portant sur la structure, le registre, la clarté ou l'argumentation. " +
	"Réponds uniquement en JSON, sous la forme {\"suggestions\": [\"…\", \"…\"]}, " +
	"chaque suggestion étant une phrase complète en français."
