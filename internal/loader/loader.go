// Package loader reads source documents from a single directory.
package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"askrag/internal/domain"
	"askrag/internal/ragerr"
)

// DirLoader loads every file with a matching extension directly inside Dir.
// Subdirectories are not descended into.
type DirLoader struct {
	Dir       string
	Extension string
}

// New returns a loader for dir. An empty extension defaults to ".txt".
func New(dir, extension string) *DirLoader {
	if extension == "" {
		extension = ".txt"
	}
	return &DirLoader{Dir: dir, Extension: extension}
}

// Files lists matching file paths in lexical order.
func (l *DirLoader) Files() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeSourceReadFailure, "reading source directory", ragerr.FieldPath(l.Dir))
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), strings.ToLower(l.Extension)) {
			continue
		}
		paths = append(paths, filepath.Join(l.Dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads all matching files. It fails when none are found.
func (l *DirLoader) Load() ([]domain.Document, error) {
	paths, err := l.Files()
	if err != nil {
		return nil, err
	}
	documents := make([]domain.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, ragerr.Wrap(err, ragerr.CodeSourceReadFailure, "reading document", ragerr.FieldPath(p))
		}
		documents = append(documents, domain.Document{ID: DocumentID(p), Path: p, Content: string(data)})
	}
	if len(documents) == 0 {
		return nil, ragerr.New(ragerr.CodeSourceEmpty, "no "+l.Extension+" documents found", ragerr.FieldPath(l.Dir))
	}
	return documents, nil
}

// DocumentID derives a stable identifier from the document path.
func DocumentID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String()
}
