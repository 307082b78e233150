package retrieval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// namespaceFile is the on-disk form of one namespace.
type namespaceFile struct {
	Namespace string  `json:"namespace"`
	Dim       int     `json:"dim"`
	Entries   []Entry `json:"entries"`
}

// Store persists index namespaces as one JSON file each under a data
// directory. File names are derived from the namespace with ':' replaced
// by '_'; the authoritative namespace lives inside the file.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("index data directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.Named("retrieval-store")}, nil
}

func (s *Store) fileName(namespace string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(namespace, ":", "_")+".json")
}

// Save writes one namespace to disk, replacing any previous file.
func (s *Store) Save(idx *Index, namespace string) error {
	dim, entries := idx.snapshot(namespace)
	payload := namespaceFile{Namespace: namespace, Dim: dim, Entries: entries}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding namespace %s: %w", namespace, err)
	}
	if err := os.WriteFile(s.fileName(namespace), data, 0644); err != nil {
		return fmt.Errorf("writing namespace %s: %w", namespace, err)
	}
	return nil
}

// Delete removes the file backing a namespace. A missing file is not an error.
func (s *Store) Delete(namespace string) error {
	if err := os.Remove(s.fileName(namespace)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing namespace file %s: %w", namespace, err)
	}
	return nil
}

// LoadAll reads every namespace file under the data directory into the
// index. Unreadable or corrupt files are skipped with a warning so one bad
// file cannot keep the rest of the index from loading.
func (s *Store) LoadAll(idx *Index) (int, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("listing index files: %w", err)
	}

	loaded := 0
	total := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable index file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		var payload namespaceFile
		if err := json.Unmarshal(data, &payload); err != nil {
			s.logger.Warn("skipping corrupt index file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if payload.Namespace == "" {
			s.logger.Warn("skipping index file without namespace",
				zap.String("path", path))
			continue
		}
		idx.Upsert(payload.Namespace, payload.Entries)
		loaded++
		total += len(payload.Entries)
	}

	if loaded > 0 {
		s.logger.Info("retrieval index loaded",
			zap.Int("namespaces", loaded), zap.Int("entries", total))
	}
	return loaded, nil
}
