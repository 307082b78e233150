package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\x{2000}-\x{200A}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	lineEdges       = regexp.MustCompile(`(?m)^[ ]+|[ ]+$`)
)

// Normalize canonicalizes extracted text: NFC composition, unix newlines,
// and exactly one blank line between paragraphs. Line wraps inside a
// paragraph become single spaces, so every chunk later cut from a paragraph
// is a contiguous substring of this text. Chunk ids derive from it, so the
// function must stay deterministic across re-ingestion.
func Normalize(text string) string {
	text = norm.NFC.String(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = horizontalSpace.ReplaceAllString(text, " ")
	text = lineEdges.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n\n")

	paragraphs := strings.Split(text, "\n\n")
	kept := paragraphs[:0]
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, "\n\n")
}
