package retrieval

import "sort"

// Query describes one retrieval request across a set of namespaces.
type Query struct {
	Vector        []float32 // query embedding
	Text          string    // raw query for lexical scoring
	Namespaces    []string  // searched in the given order
	TopK          int       // defaults to 5
	MinScore      float64   // cosine gate applied before blending
	LexicalWeight float64   // BM25 share of the final score, in [0,1]
}

type candidate struct {
	entry     indexedEntry
	namespace string
	semantic  float64
	score     float64
}

// Search ranks entries by blended score: LexicalWeight goes to BM25 over the
// candidate set, the rest to cosine similarity. Candidates below MinScore
// cosine are dropped before blending. At equal score, user entries come
// before knowledge base entries, then earlier-indexed entries win.
func (idx *Index) Search(q Query) []Result {
	topK := q.TopK
	if topK <= 0 {
		topK = 5
	}

	queryVec := normalize(q.Vector)

	idx.mu.RLock()
	var candidates []candidate
	for _, name := range q.Namespaces {
		ns := idx.namespaces[name]
		if ns == nil {
			continue
		}
		for _, e := range ns.entries {
			semantic := dot(queryVec, e.Vector)
			if semantic < q.MinScore {
				continue
			}
			candidates = append(candidates, candidate{
				entry:     e,
				namespace: name,
				semantic:  semantic,
			})
		}
	}
	idx.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}

	blendLexical(q, candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		iUser := IsUserNamespace(candidates[i].namespace)
		jUser := IsUserNamespace(candidates[j].namespace)
		if iUser != jUser {
			return iUser
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}

	results := make([]Result, 0, topK)
	for _, c := range candidates[:topK] {
		results = append(results, Result{
			Entry:     c.entry.Entry,
			Namespace: c.namespace,
			Score:     c.score,
		})
	}
	return results
}

// blendLexical folds normalized BM25 scores into the candidates. BM25 is
// unbounded, so scores are scaled by the candidate-set maximum to share the
// [0,1] range with cosine similarity.
func blendLexical(q Query, candidates []candidate) {
	lw := q.LexicalWeight
	if lw < 0 {
		lw = 0
	}
	if lw > 1 {
		lw = 1
	}

	if lw == 0 {
		for i := range candidates {
			candidates[i].score = candidates[i].semantic
		}
		return
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.entry.Text
	}

	corpus := newBM25Corpus(texts)
	terms := queryTerms(q.Text)

	raw := make([]float64, len(candidates))
	var maxRaw float64
	for i := range candidates {
		raw[i] = corpus.score(terms, i)
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}

	for i := range candidates {
		lexical := 0.0
		if maxRaw > 0 {
			lexical = raw[i] / maxRaw
		}
		candidates[i].score = lw*lexical + (1-lw)*candidates[i].semantic
	}
}
