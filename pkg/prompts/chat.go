package prompts

import (
	"fmt"
	"strings"
)

// GeneralSystemPrompt frames free-form conversation turns. The assistant
// stays inside the academic-writing mission instead of open-ended chat.
const GeneralSystemPrompt = "Tu es Plume, un assistant d'écriture académique francophone. " +
	"Tu aides les étudiants et les chercheurs à améliorer leurs textes : correction, " +
	"reformulation, structuration, méthodologie de rédaction. " +
	"Réponds en français, de manière concise et concrète. " +
	"Si la demande sort de la rédaction académique, ramène poliment la conversation vers ce cadre."

// GeneralUnavailable is the chat reply when the model cannot be reached.
const GeneralUnavailable = "Je ne parviens pas à joindre le modèle pour le moment. " +
	"Réessayez dans un instant."

// GrammarNoCorrections is the chat reply when the grammar engine finds
// nothing to fix.
const GrammarNoCorrections = "Je n'ai relevé aucune faute. Votre texte semble correct."

// GrammarChatReply frames a corrected text as a conversation reply.
func GrammarChatReply(corrected string, count int) string {
	if count == 0 {
		return GrammarNoCorrections
	}
	if count == 1 {
		return "Voici votre texte corrigé (1 correction) :\n\n" + corrected
	}
	return fmt.Sprintf("Voici votre texte corrigé (%d corrections) :\n\n%s", count, corrected)
}

// Exchange is one prior turn handed to the general pipeline for context.
type Exchange struct {
	Role    string
	Content string
}

// BuildGeneralPrompt renders the recent conversation and the new message
// into a single user prompt for the chat model.
func BuildGeneralPrompt(history []Exchange, message string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation récente :\n")
		for _, turn := range history {
			speaker := "Étudiant"
			if turn.Role == "assistant" {
				speaker = "Plume"
			}
			b.WriteString(fmt.Sprintf("%s : %s\n", speaker, turn.Content))
		}
		b.WriteString("\n")
	}

	b.WriteString("Nouveau message :\n")
	b.WriteString(strings.TrimSpace(message))
	return b.String()
}
