package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumelab/plume-engine/pkg/french"
)

func TestHeuristicAnswer_RanksSentencesByOverlap(t *testing.T) {
	weak := "Leur structure interne comprend des crêtes repliées sur elles-mêmes."
	noise := "La ville de Paris attire beaucoup de touristes chaque année."
	strong := "Les mitochondries sont des organites dont la structure comprend une double membrane."
	context := weak + " " + noise + " " + strong

	answer, confidence, sources := heuristicAnswer("Quelle est la structure des mitochondries ?", context, 0)

	require.Len(t, sources, 2)
	assert.Equal(t, strong, sources[0], "sentence matching both content words ranks first")
	assert.Equal(t, weak, sources[1])
	assert.Equal(t, strong+" "+weak, answer)
	assert.InDelta(t, 0.75, confidence, 1e-9, "confidence is capped at 0.75")

	for _, src := range sources {
		assert.True(t, strings.Contains(context, src), "source must be an excerpt of the context")
	}
}

func TestHeuristicAnswer_KeepsAtMostThreeSources(t *testing.T) {
	sentences := []string{
		"La structure des mitochondries varie selon les tissus observés.",
		"Chaque mitochondrie adapte sa structure au besoin énergétique local.",
		"Les mitochondries musculaires montrent une structure très dense.",
		"Dans le foie, les mitochondries gardent une structure plus lâche.",
		"Les neurones alignent leurs mitochondries selon une structure en réseau.",
	}
	context := strings.Join(sentences, " ")

	answer, confidence, sources := heuristicAnswer("Quelle est la structure des mitochondries ?", context, 0)

	assert.Len(t, sources, 3)
	assert.NotEmpty(t, answer)
	assert.Greater(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 0.75)
}

func TestHeuristicAnswer_ParagraphFallback(t *testing.T) {
	// No sentence reaches the keep threshold, so the whole (only) paragraph
	// is quoted with the floor confidence.
	context := "Température modérée en été. Hiver rude."

	answer, confidence, sources := heuristicAnswer("Où vivent les manchots empereurs ?", context, 0.1)

	assert.Equal(t, context, answer)
	assert.InDelta(t, 0.4, confidence, 1e-9)
	require.Len(t, sources, 1)
	assert.Equal(t, context, sources[0])
}

func TestHeuristicAnswer_ParagraphFallbackPicksBestParagraph(t *testing.T) {
	context := "Rien d'utile ici vraiment.\n\nManchots."

	answer, confidence, sources := heuristicAnswer("Où vivent les manchots empereurs ?", context, 0)

	assert.Equal(t, "Manchots.", answer)
	assert.InDelta(t, 0.4, confidence, 1e-9)
	require.Len(t, sources, 1)
	assert.Equal(t, "Manchots.", sources[0])
}

func TestHeuristicAnswer_EmptyContext(t *testing.T) {
	answer, confidence, sources := heuristicAnswer("Une question sans contexte ?", "", 0.9)

	assert.Empty(t, answer)
	assert.Zero(t, confidence)
	assert.Nil(t, sources)
}

func TestHeuristicAnswer_Deterministic(t *testing.T) {
	context := "Les mitochondries sont des organites dont la structure comprend une double membrane. " +
		"Leur structure interne comprend des crêtes repliées sur elles-mêmes."

	firstAnswer, firstConfidence, firstSources := heuristicAnswer("Quelle est la structure des mitochondries ?", context, 0)
	secondAnswer, secondConfidence, secondSources := heuristicAnswer("Quelle est la structure des mitochondries ?", context, 0)

	assert.Equal(t, firstAnswer, secondAnswer)
	assert.Equal(t, firstConfidence, secondConfidence)
	assert.Equal(t, firstSources, secondSources)
}

func TestExcerptScore_DefinitionalBonus(t *testing.T) {
	contentWords := french.ContentWords("Qu'est-ce que les mitochondries ?")
	require.Equal(t, []string{"mitochondries"}, contentWords)

	withMarker := excerptScore("Les mitochondries sont des organites.", contentWords)
	withoutMarker := excerptScore("Les mitochondries produisent beaucoup.", contentWords)

	assert.InDelta(t, 1.3, withMarker, 1e-9)
	assert.InDelta(t, 1.0, withoutMarker, 1e-9)
}

func TestExcerptScore_NoContentWords(t *testing.T) {
	assert.Zero(t, excerptScore("Les mitochondries sont des organites.", nil))
}

func TestTruncateAtPeriod(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{
			name: "under the cap",
			text: "Court. Simple.",
			max:  50,
			want: "Court. Simple.",
		},
		{
			name: "backs up to the last period",
			text: "Une phrase. Une autre phrase qui dépasse la limite.",
			max:  20,
			want: "Une phrase.",
		},
		{
			name: "hard cut without a period",
			text: "abcdefghijklmnopqrstuvwxyz",
			max:  10,
			want: "abcdefghij",
		},
		{
			name: "multibyte before the period",
			text: "éé. suite longue ici",
			max:  5,
			want: "éé.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateAtPeriod(tt.text, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), tt.max)
		})
	}
}
