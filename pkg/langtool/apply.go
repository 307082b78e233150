package langtool

import "sort"

// Correction is a single applied substitution, reported back to the caller
// alongside the corrected text. Offsets are rune positions in the original.
type Correction struct {
	OriginalSpan string `json:"original_span"`
	Replacement  string `json:"replacement"`
	Message      string `json:"message"`
	Offset       int    `json:"offset"`
	Length       int    `json:"length"`
}

// Corrections turns checker matches into a non-overlapping correction plan.
// Matches without a suggested replacement are informational only and skipped.
// When two matches overlap, the earliest wins and later ones are dropped.
func Corrections(text string, matches []Match) []Correction {
	runes := []rune(text)

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	var plan []Correction
	lastEnd := 0
	for _, m := range sorted {
		if len(m.Replacements) == 0 {
			continue
		}
		if m.Offset < 0 || m.Length <= 0 || m.Offset+m.Length > len(runes) {
			continue
		}
		if m.Offset < lastEnd {
			continue
		}

		plan = append(plan, Correction{
			OriginalSpan: string(runes[m.Offset : m.Offset+m.Length]),
			Replacement:  m.Replacements[0].Value,
			Message:      m.Message,
			Offset:       m.Offset,
			Length:       m.Length,
		})
		lastEnd = m.Offset + m.Length
	}

	return plan
}

// Apply splices the corrections into the text, right to left so earlier
// offsets stay valid while later spans are replaced. The plan must be
// non-overlapping and ascending, as produced by Corrections.
func Apply(text string, plan []Correction) string {
	if len(plan) == 0 {
		return text
	}

	runes := []rune(text)
	for i := len(plan) - 1; i >= 0; i-- {
		c := plan[i]
		if c.Offset < 0 || c.Offset+c.Length > len(runes) {
			continue
		}
		tail := runes[c.Offset+c.Length:]
		head := runes[:c.Offset]
		next := make([]rune, 0, len(head)+len(c.Replacement)+len(tail))
		next = append(next, head...)
		next = append(next, []rune(c.Replacement)...)
		next = append(next, tail...)
		runes = next
	}

	return string(runes)
}
