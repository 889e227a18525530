package models

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/samber/lo"

	"super-mouse-ai/internal/domain"
)

// Downloaded returns the catalog file names present in dir, in catalog
// order. A missing directory has no models.
func Downloaded(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("scan models dir: %w", err)
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			present[e.Name()] = struct{}{}
		}
	}

	names := lo.FilterMap(catalog, func(m domain.WhisperModelInfo, _ int) (string, bool) {
		_, ok := present[m.RelativePath]
		return m.RelativePath, ok
	})
	return names, nil
}
