package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/constants"
)

// CollectDocuments returns root itself when it is a file, or every non-hidden file
// under root whose format is one of formats. Paths are sorted so runs are repeatable.
func CollectDocuments(root string, formats ...string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("input path is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	want := map[string]struct{}{}
	for _, f := range formats {
		want[f] = struct{}{}
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := want[formatOf(path)]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// formatOf maps a path's extension to an input format, "" when unsupported.
func formatOf(path string) string {
	return constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
