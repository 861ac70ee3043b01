package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// LoadDir reads the files at the top level of an export directory into
// Items, sorted by name. Subdirectories and dot-files are skipped:
// exports are flat, and editors leave ".DS_Store"-style clutter next to
// them. Content types are sniffed from the bytes.
func LoadDir(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	var items []Item
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		items = append(items, Item{
			Name:        entry.Name(),
			Content:     content,
			ContentType: mimetype.Detect(content).String(),
		})
	}
	return items, nil
}
