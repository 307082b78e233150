// Package retrieval maintains the per-user vector indexes and the curated
// knowledge base, and ranks context passages for a query with a hybrid
// semantic + lexical score.
package retrieval

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Namespace naming: user indexes are "user:{id}", knowledge base domains are
// "kb:{domain}". User entries outrank KB entries at equal score.

// UserNamespace returns the index namespace for a user's documents.
func UserNamespace(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

// KBNamespace returns the index namespace for a knowledge base domain.
func KBNamespace(domain string) string {
	return "kb:" + domain
}

// IsUserNamespace reports whether a namespace holds user document chunks.
func IsUserNamespace(namespace string) bool {
	return strings.HasPrefix(namespace, "user:")
}

// Entry is one indexed passage. Vector is stored L2-normalized so cosine
// similarity reduces to a dot product.
type Entry struct {
	ID         string    `json:"id"`
	DocumentID int64     `json:"document_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	Vector     []float32 `json:"vector"`
}

// Result is a ranked search hit.
type Result struct {
	Entry
	Namespace string  `json:"namespace"`
	Score     float64 `json:"score"`
}

type indexedEntry struct {
	Entry
	seq int64
}

type namespaceIndex struct {
	dim     int
	entries []indexedEntry
	byID    map[string]int
}

// Index is an in-memory brute-force vector index partitioned by namespace.
type Index struct {
	mu         sync.RWMutex
	namespaces map[string]*namespaceIndex
	seq        int64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{namespaces: make(map[string]*namespaceIndex)}
}

// Upsert inserts or replaces entries in a namespace. Entries are matched by
// ID. A vector whose dimension differs from the namespace resets the whole
// namespace: mixed-dimension search is meaningless, so stale entries from a
// previous embedder are dropped for re-indexing. Returns the number of
// entries dropped by such a reset.
func (idx *Index) Upsert(namespace string, entries []Entry) int {
	if len(entries) == 0 {
		return 0
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns := idx.namespaces[namespace]
	if ns == nil {
		ns = &namespaceIndex{byID: make(map[string]int)}
		idx.namespaces[namespace] = ns
	}

	dropped := 0
	for _, e := range entries {
		if e.ID == "" || len(e.Vector) == 0 {
			continue
		}
		e.Vector = normalize(e.Vector)

		if ns.dim == 0 {
			ns.dim = len(e.Vector)
		} else if len(e.Vector) != ns.dim {
			dropped += len(ns.entries)
			ns.dim = len(e.Vector)
			ns.entries = nil
			ns.byID = make(map[string]int)
		}

		if pos, ok := ns.byID[e.ID]; ok {
			seq := ns.entries[pos].seq
			ns.entries[pos] = indexedEntry{Entry: e, seq: seq}
			continue
		}

		idx.seq++
		ns.byID[e.ID] = len(ns.entries)
		ns.entries = append(ns.entries, indexedEntry{Entry: e, seq: idx.seq})
	}

	return dropped
}

// RemoveDocument deletes every entry of a document from a namespace.
func (idx *Index) RemoveDocument(namespace string, documentID int64) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ns := idx.namespaces[namespace]
	if ns == nil {
		return 0
	}

	kept := ns.entries[:0]
	removed := 0
	for _, e := range ns.entries {
		if e.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ns.entries = kept

	ns.byID = make(map[string]int, len(ns.entries))
	for i, e := range ns.entries {
		ns.byID[e.ID] = i
	}

	return removed
}

// DropNamespace removes a namespace entirely.
func (idx *Index) DropNamespace(namespace string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.namespaces, namespace)
}

// Len returns the number of entries in a namespace.
func (idx *Index) Len(namespace string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if ns := idx.namespaces[namespace]; ns != nil {
		return len(ns.entries)
	}
	return 0
}

// Namespaces lists all namespaces currently held, sorted.
func (idx *Index) Namespaces() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	names := make([]string, 0, len(idx.namespaces))
	for name := range idx.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KBNamespaces lists the knowledge base namespaces, sorted.
func (idx *Index) KBNamespaces() []string {
	var names []string
	for _, name := range idx.Namespaces() {
		if strings.HasPrefix(name, "kb:") {
			names = append(names, name)
		}
	}
	return names
}

// snapshot returns a copy of a namespace's entries for persistence.
func (idx *Index) snapshot(namespace string) (int, []Entry) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ns := idx.namespaces[namespace]
	if ns == nil {
		return 0, nil
	}

	entries := make([]Entry, len(ns.entries))
	for i, e := range ns.entries {
		entries[i] = e.Entry
	}
	return ns.dim, entries
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
