// Package ingest turns uploaded documents into normalized text and
// deterministic, overlapping chunks ready for embedding.
package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/config"
)

// ErrTooLarge is returned when an upload exceeds the configured size cap.
var ErrTooLarge = errors.New("file too large")

// Chunk is one indexable unit of an ingested document.
type Chunk struct {
	ID         string `json:"chunk_id"`
	DocumentID int64  `json:"document_id"`
	UserID     int64  `json:"user_id"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
	Source     string `json:"source"`
}

// ChunkID builds the stable id for a chunk: "{documentID}:{position}".
// Re-ingesting identical bytes reproduces identical ids.
func ChunkID(documentID int64, position int) string {
	return strconv.FormatInt(documentID, 10) + ":" + strconv.Itoa(position)
}

// Ingestor extracts, normalizes and chunks uploaded files.
type Ingestor struct {
	chunker  *Chunker
	maxBytes int64
	logger   *zap.Logger
}

// New creates an ingestor from configuration.
func New(cfg config.IngestConfig, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		chunker:  NewChunker(cfg.ChunkWords, cfg.OverlapWords),
		maxBytes: cfg.MaxUploadBytes,
		logger:   logger.Named("ingest"),
	}
}

// Text extracts and normalizes the full text of a file without chunking.
func (ing *Ingestor) Text(filename string, data []byte) (string, error) {
	if ing.maxBytes > 0 && int64(len(data)) > ing.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}

	fileType, err := DetectType(filename)
	if err != nil {
		return "", err
	}

	raw, err := ExtractText(fileType, data)
	if err != nil {
		return "", err
	}

	return Normalize(raw), nil
}

// Ingest runs the full pipeline for one uploaded document.
// An empty or whitespace-only document yields no chunks and no error.
func (ing *Ingestor) Ingest(documentID, userID int64, filename string, data []byte) ([]Chunk, error) {
	text, err := ing.Text(filename, data)
	if err != nil {
		return nil, err
	}
	if text == "" {
		ing.logger.Info("document has no extractable text",
			zap.Int64("document_id", documentID),
			zap.String("filename", filename))
		return nil, nil
	}

	chunks := ing.IngestText(documentID, userID, filename, text)

	ing.logger.Info("document ingested",
		zap.Int64("document_id", documentID),
		zap.Int64("user_id", userID),
		zap.Int("chunks", len(chunks)),
		zap.Int("text_len", len(text)))

	return chunks, nil
}

// IngestText chunks already-extracted text for a document. Callers that
// transform the text between extraction and chunking (the optional grammar
// pass) use this instead of Ingest.
func (ing *Ingestor) IngestText(documentID, userID int64, source, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	pieces := ing.chunker.Chunk(text)
	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, Chunk{
			ID:         ChunkID(documentID, i),
			DocumentID: documentID,
			UserID:     userID,
			Position:   i,
			Text:       piece,
			Source:     source,
		})
	}
	return chunks
}
