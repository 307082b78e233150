package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// KBFile is one knowledge base seed document: a domain and its entries.
// Seeds are operator-authored YAML files, one domain per file.
type KBFile struct {
	Domain  string    `yaml:"domain"`
	Entries []KBEntry `yaml:"entries"`
}

type KBEntry struct {
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// LoadKBDir parses every .yaml/.yml file under dir, sorted by file name so
// seeding order is stable. A missing directory yields no seeds; a malformed
// seed fails the load so bad files are caught at startup.
func LoadKBDir(dir string) ([]KBFile, error) {
	if dir == "" {
		return nil, nil
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading knowledge base directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(de.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	files := make([]KBFile, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading knowledge base file %s: %w", path, err)
		}
		var f KBFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing knowledge base file %s: %w", path, err)
		}
		if f.Domain == "" {
			return nil, fmt.Errorf("knowledge base file %s has no domain", path)
		}
		files = append(files, f)
	}
	return files, nil
}

// kbEntryID gives knowledge base entries stable IDs within their domain so
// reseeding replaces entries instead of duplicating them.
func kbEntryID(domain string, position int) string {
	return fmt.Sprintf("%s:%d", domain, position)
}
