package retrieval

import (
	"math"

	"github.com/plumelab/plume-engine/pkg/french"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// bm25Corpus scores candidate passages lexically against a query. The corpus
// is rebuilt per search over the candidate set, which stays small enough
// (hundreds of chunks per user) that precomputing global statistics is not
// worth the invalidation bookkeeping.
type bm25Corpus struct {
	termFreqs []map[string]int
	docLens   []float64
	df        map[string]int
	avgLen    float64
}

func newBM25Corpus(texts []string) *bm25Corpus {
	c := &bm25Corpus{
		termFreqs: make([]map[string]int, len(texts)),
		docLens:   make([]float64, len(texts)),
		df:        make(map[string]int),
	}

	var totalLen float64
	for i, text := range texts {
		tokens := french.StripStopwords(french.Tokenize(text))
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		c.termFreqs[i] = tf
		c.docLens[i] = float64(len(tokens))
		totalLen += float64(len(tokens))

		for t := range tf {
			c.df[t]++
		}
	}

	if len(texts) > 0 {
		c.avgLen = totalLen / float64(len(texts))
	}
	return c
}

// queryTerms tokenizes a query the same way the corpus was tokenized.
func queryTerms(query string) []string {
	return french.StripStopwords(french.Tokenize(query))
}

// score computes the BM25 score of one document against the query terms.
func (c *bm25Corpus) score(terms []string, doc int) float64 {
	if doc < 0 || doc >= len(c.termFreqs) || c.avgLen == 0 {
		return 0
	}

	n := float64(len(c.termFreqs))
	var total float64
	for _, t := range terms {
		tf := float64(c.termFreqs[doc][t])
		if tf == 0 {
			continue
		}
		df := float64(c.df[t])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*c.docLens[doc]/c.avgLen))
		total += idf * norm
	}
	return total
}
