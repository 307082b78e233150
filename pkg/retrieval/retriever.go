package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/ingest"
	"github.com/plumelab/plume-engine/pkg/llm"
)

// embedBatchSize is how many texts go into one embedding request. Batches
// run concurrently through the worker pool.
const embedBatchSize = 32

// Retriever owns the vector index, its on-disk persistence and the
// embedding calls that feed it. Failures surface as
// apperrors.ErrRetrievalUnavailable so callers can degrade to answering
// without context instead of failing the request.
type Retriever struct {
	index    *Index
	store    *Store
	embedder llm.Embedder
	pool     *llm.WorkerPool
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever loads any persisted namespaces from cfg.DataDir into a fresh
// index. The embedder may be nil, in which case every retrieval call
// reports ErrRetrievalUnavailable.
func NewRetriever(cfg config.RetrievalConfig, embedder llm.Embedder, pool *llm.WorkerPool, logger *zap.Logger) (*Retriever, error) {
	store, err := NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}
	index := NewIndex()
	if _, err := store.LoadAll(index); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = llm.NewWorkerPool(llm.DefaultWorkerPoolConfig(), logger)
	}
	return &Retriever{
		index:    index,
		store:    store,
		embedder: embedder,
		pool:     pool,
		cfg:      cfg,
		logger:   logger.Named("retrieval"),
	}, nil
}

// SeedKB indexes the curated knowledge base files under cfg.KBDir. Domains
// whose namespace already holds at least as many entries as the seed file
// are skipped, so restarts do not re-embed unchanged seeds.
func (r *Retriever) SeedKB(ctx context.Context) error {
	files, err := LoadKBDir(r.cfg.KBDir)
	if err != nil {
		return err
	}
	for _, f := range files {
		ns := KBNamespace(f.Domain)
		if r.index.Len(ns) >= len(f.Entries) {
			r.logger.Debug("knowledge base domain already indexed",
				zap.String("domain", f.Domain))
			continue
		}

		texts := make([]string, len(f.Entries))
		for i, e := range f.Entries {
			texts[i] = strings.TrimSpace(e.Text)
		}
		vectors, err := r.embedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding knowledge base domain %s: %w", f.Domain, err)
		}

		entries := make([]Entry, len(f.Entries))
		for i, e := range f.Entries {
			entries[i] = Entry{
				ID:     kbEntryID(f.Domain, i),
				Title:  e.Title,
				Text:   texts[i],
				Source: "kb",
				Vector: vectors[i],
			}
		}
		r.upsertAndSave(ns, entries)
		r.logger.Info("knowledge base domain indexed",
			zap.String("domain", f.Domain), zap.Int("entries", len(entries)))
	}
	return nil
}

// IndexChunks embeds and indexes a document's chunks under the owner's
// namespace, then persists the namespace. Returns how many chunks were
// indexed.
func (r *Retriever) IndexChunks(ctx context.Context, userID int64, chunks []ingest.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := r.embedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding document chunks: %w", err)
	}

	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{
			ID:         c.ID,
			DocumentID: c.DocumentID,
			Text:       c.Text,
			Source:     c.Source,
			Vector:     vectors[i],
		}
	}

	ns := UserNamespace(userID)
	r.upsertAndSave(ns, entries)
	r.logger.Info("document chunks indexed",
		zap.String("namespace", ns),
		zap.Int64("document_id", chunks[0].DocumentID),
		zap.Int("chunks", len(entries)))
	return len(entries), nil
}

// RemoveDocument drops a document's chunks from the owner's namespace and
// persists the change. Returns how many entries were removed.
func (r *Retriever) RemoveDocument(userID, documentID int64) (int, error) {
	ns := UserNamespace(userID)
	removed := r.index.RemoveDocument(ns, documentID)
	if removed == 0 {
		return 0, nil
	}
	if r.index.Len(ns) == 0 {
		r.index.DropNamespace(ns)
		return removed, r.store.Delete(ns)
	}
	return removed, r.store.Save(r.index, ns)
}

// Search embeds the query and ranks it against the user's namespace plus
// every knowledge base namespace. An embedding failure is reported as
// ErrRetrievalUnavailable; callers are expected to continue without
// context.
func (r *Retriever) Search(ctx context.Context, userID int64, query string, topK int) ([]Result, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("no embedder configured: %w", apperrors.ErrRetrievalUnavailable)
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", apperrors.ErrRetrievalUnavailable, err)
	}

	namespaces := append([]string{UserNamespace(userID)}, r.index.KBNamespaces()...)
	return r.index.Search(Query{
		Vector:        vector,
		Text:          query,
		Namespaces:    namespaces,
		TopK:          topK,
		MinScore:      r.cfg.MinScore,
		LexicalWeight: r.cfg.LexicalWeight,
	}), nil
}

// ContextForQA assembles ranked passages into one context string, joined by
// blank lines. It takes passages in rank order until either MaxChunks or
// the character budget is reached; a single oversized passage is clipped
// rather than dropped so the best match always contributes.
func (r *Retriever) ContextForQA(results []Result) string {
	budget := r.cfg.ContextBudget
	if budget <= 0 {
		budget = 2000
	}
	maxChunks := r.cfg.MaxChunks
	if maxChunks <= 0 {
		maxChunks = 3
	}

	var parts []string
	used := 0
	for _, res := range results {
		if len(parts) >= maxChunks {
			break
		}
		text := res.Entry.Text
		if res.Entry.Title != "" {
			text = res.Entry.Title + "\n" + text
		}
		cost := utf8.RuneCountInString(text)
		if used > 0 {
			cost += 2
		}
		if used+cost > budget {
			if used == 0 {
				runes := []rune(text)
				if budget < len(runes) {
					text = string(runes[:budget])
				}
				parts = append(parts, text)
			}
			break
		}
		parts = append(parts, text)
		used += cost
	}
	return strings.Join(parts, "\n\n")
}

// Stats reports the index shape for health reporting.
func (r *Retriever) Stats() (namespaces, entries int) {
	names := r.index.Namespaces()
	for _, ns := range names {
		entries += r.index.Len(ns)
	}
	return len(names), entries
}

func (r *Retriever) upsertAndSave(namespace string, entries []Entry) {
	if dropped := r.index.Upsert(namespace, entries); dropped > 0 {
		r.logger.Warn("embedding dimension changed, namespace was reset",
			zap.String("namespace", namespace), zap.Int("dropped", dropped))
	}
	if err := r.store.Save(r.index, namespace); err != nil {
		r.logger.Warn("persisting namespace failed",
			zap.String("namespace", namespace), zap.Error(err))
	}
}

type embeddedBatch struct {
	start   int
	vectors [][]float32
}

// embedTexts embeds texts in fixed-size batches running concurrently
// through the worker pool, reassembling vectors in input order.
func (r *Retriever) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("no embedder configured: %w", apperrors.ErrRetrievalUnavailable)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	items := make([]llm.WorkItem[embeddedBatch], 0, (len(texts)+embedBatchSize-1)/embedBatchSize)
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		items = append(items, llm.WorkItem[embeddedBatch]{
			ID: fmt.Sprintf("embed[%d:%d]", start, end),
			Execute: func(ctx context.Context) (embeddedBatch, error) {
				vectors, err := r.embedder.EmbedBatch(ctx, texts[start:end])
				if err != nil {
					return embeddedBatch{}, err
				}
				if len(vectors) != end-start {
					return embeddedBatch{}, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), end-start)
				}
				return embeddedBatch{start: start, vectors: vectors}, nil
			},
		})
	}

	vectors := make([][]float32, len(texts))
	for _, res := range llm.Process(ctx, r.pool, items, nil) {
		if res.Err != nil {
			return nil, res.Err
		}
		for i, v := range res.Result.vectors {
			vectors[res.Result.start+i] = v
		}
	}
	return vectors, nil
}
