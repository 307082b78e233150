package prompts

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSessionTitle names sessions created without an explicit title.
const DefaultSessionTitle = "Nouvelle conversation"

// ExportTurn is one message of a transcript being rendered to Markdown.
type ExportTurn struct {
	Role       string
	ModuleType string
	Content    string
}

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// FrenchDate renders a date the way it appears in exported documents.
func FrenchDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
}

// Assistant turns carry the module that produced them; general turns are
// unlabeled.
var exportModuleLabels = map[string]string{
	"grammar":       "correction",
	"qa":            "question-réponse",
	"reformulation": "reformulation",
}

// BuildSessionMarkdown renders a session transcript as a standalone
// Markdown document for export and shared views.
func BuildSessionMarkdown(title string, createdAt time.Time, turns []ExportTurn) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("*Conversation du %s*\n", FrenchDate(createdAt)))

	for _, turn := range turns {
		b.WriteString("\n---\n\n")

		speaker := "Vous"
		if turn.Role == "assistant" {
			speaker = "Plume"
		}
		if label := exportModuleLabels[turn.ModuleType]; turn.Role == "assistant" && label != "" {
			b.WriteString(fmt.Sprintf("**%s** *(%s)* :\n\n", speaker, label))
		} else {
			b.WriteString(fmt.Sprintf("**%s** :\n\n", speaker))
		}

		b.WriteString(strings.TrimSpace(turn.Content))
		b.WriteString("\n")
	}

	return b.String()
}
