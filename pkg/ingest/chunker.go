package ingest

import (
	"strings"

	"github.com/plumelab/plume-engine/pkg/french"
)

// Chunker splits normalized text into overlapping word windows.
type Chunker struct {
	chunkWords   int
	overlapWords int
}

// NewChunker creates a chunker. A non-positive window falls back to 20
// words, and the overlap is clamped below the window.
func NewChunker(chunkWords, overlapWords int) *Chunker {
	if chunkWords <= 0 {
		chunkWords = 20
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= chunkWords {
		overlapWords = chunkWords / 4
	}
	return &Chunker{
		chunkWords:   chunkWords,
		overlapWords: overlapWords,
	}
}

// Chunk cuts text into windows. Paragraph boundaries are never crossed, and
// a window is cut back to a sentence end when one falls in its back half.
func (c *Chunker) Chunk(text string) []string {
	var chunks []string
	for _, paragraph := range french.SplitParagraphs(text) {
		words := strings.Fields(paragraph)
		chunks = append(chunks, c.windows(words)...)
	}
	return chunks
}

func (c *Chunker) windows(words []string) []string {
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + c.chunkWords
		if end >= len(words) {
			chunks = append(chunks, strings.Join(words[start:], " "))
			break
		}

		// Cut back to a sentence end in the back half of the window so
		// windows do not split sentences mid-clause when avoidable.
		for i := end - 1; i > start+c.chunkWords/2; i-- {
			if endsSentence(words[i]) {
				end = i + 1
				break
			}
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))

		next := end - c.overlapWords
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// endsSentence reports whether a word closes a sentence, ignoring trailing
// quotes and brackets.
func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]»”`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return strings.HasSuffix(trimmed, "…")
}
