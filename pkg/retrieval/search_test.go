package retrieval

import (
	"fmt"
	"math"
	"testing"
)

func TestSearch_RanksBySimilarity(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("user:1", []Entry{
		{ID: "a", Text: "aligné", Vector: []float32{1, 0}},
		{ID: "b", Text: "diagonal", Vector: []float32{1, 1}},
		{ID: "c", Text: "orthogonal", Vector: []float32{0, 1}},
	})

	results := idx.Search(Query{
		Vector:     []float32{1, 0},
		Namespaces: []string{"user:1"},
		TopK:       3,
	})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Entry.ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Entry.ID, want)
		}
	}
	if !(results[0].Score > results[1].Score && results[1].Score > results[2].Score) {
		t.Errorf("scores not strictly decreasing: %v", results)
	}
}

func TestSearch_MinScoreFiltersBeforeBlending(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("user:1", []Entry{
		{ID: "proche", Text: "photosynthèse photosynthèse", Vector: []float32{1, 0}},
		{ID: "lointain", Text: "photosynthèse photosynthèse", Vector: []float32{0, 1}},
	})

	// Even a heavy lexical weight cannot resurrect entries under the
	// cosine gate.
	results := idx.Search(Query{
		Vector:        []float32{1, 0},
		Text:          "photosynthèse",
		Namespaces:    []string{"user:1"},
		TopK:          5,
		MinScore:      0.3,
		LexicalWeight: 0.9,
	})
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1: %+v", len(results), results)
	}
	if results[0].Entry.ID != "proche" {
		t.Errorf("results[0] = %s, want proche", results[0].Entry.ID)
	}
}

func TestSearch_LexicalBlendingBreaksSemanticTie(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("user:1", []Entry{
		{ID: "hors-sujet", Text: "Les mitochondries produisent de l'énergie.", Vector: []float32{1, 0}},
		{ID: "pertinent", Text: "La photosynthèse transforme la lumière en énergie chimique.", Vector: []float32{1, 0}},
	})

	results := idx.Search(Query{
		Vector:        []float32{1, 0},
		Text:          "Comment fonctionne la photosynthèse ?",
		Namespaces:    []string{"user:1"},
		TopK:          2,
		LexicalWeight: 0.5,
	})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Entry.ID != "pertinent" {
		t.Errorf("results[0] = %s, want pertinent", results[0].Entry.ID)
	}
	if !(results[0].Score > results[1].Score) {
		t.Errorf("lexical match should outrank: %v vs %v", results[0].Score, results[1].Score)
	}
}

func TestSearch_TieBreakPrefersUserThenInsertionOrder(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("kb:biologie", []Entry{{ID: "kb-0", Text: "même texte", Vector: []float32{1, 0}}})
	idx.Upsert("user:1", []Entry{{ID: "u-0", Text: "même texte", Vector: []float32{1, 0}}})
	idx.Upsert("kb:biologie", []Entry{{ID: "kb-1", Text: "même texte", Vector: []float32{1, 0}}})

	results := idx.Search(Query{
		Vector:     []float32{1, 0},
		Namespaces: []string{"user:1", "kb:biologie"},
		TopK:       3,
	})
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"u-0", "kb-0", "kb-1"} {
		if results[i].Entry.ID != want {
			t.Errorf("results[%d] = %s, want %s", i, results[i].Entry.ID, want)
		}
	}
}

func TestSearch_TopK(t *testing.T) {
	idx := NewIndex()
	entries := make([]Entry, 0, 8)
	for i := 0; i < 8; i++ {
		entries = append(entries, Entry{
			ID:     fmt.Sprintf("e%d", i),
			Text:   "texte",
			Vector: []float32{1, float32(i) / 10},
		})
	}
	idx.Upsert("user:1", entries)

	if got := len(idx.Search(Query{Vector: []float32{1, 0}, Namespaces: []string{"user:1"}, TopK: 2})); got != 2 {
		t.Errorf("TopK=2 returned %d results", got)
	}
	if got := len(idx.Search(Query{Vector: []float32{1, 0}, Namespaces: []string{"user:1"}})); got != 5 {
		t.Errorf("default TopK returned %d results, want 5", got)
	}
}

func TestSearch_MissingNamespace(t *testing.T) {
	idx := NewIndex()
	if results := idx.Search(Query{Vector: []float32{1, 0}, Namespaces: []string{"user:404"}, TopK: 3}); results != nil {
		t.Errorf("results = %+v, want nil", results)
	}
}

func TestSearch_QueryVectorNormalized(t *testing.T) {
	idx := NewIndex()
	idx.Upsert("user:1", []Entry{{ID: "a", Text: "texte", Vector: []float32{3, 0}}})

	for _, vec := range [][]float32{{10, 0}, {0.1, 0}} {
		results := idx.Search(Query{Vector: vec, Namespaces: []string{"user:1"}, TopK: 1})
		if len(results) != 1 {
			t.Fatalf("query %v: got %d results", vec, len(results))
		}
		if math.Abs(results[0].Score-1.0) > 1e-6 {
			t.Errorf("query %v: score = %v, want 1.0 regardless of magnitude", vec, results[0].Score)
		}
	}
}
