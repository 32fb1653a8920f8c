// Package file persists a vector index as a gob-encoded file inside a
// directory and serves queries from memory once loaded.
package file

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"askrag/internal/domain"
	"askrag/internal/vectorstore"
	"askrag/internal/vectorstore/memory"
)

// IndexFile is the name of the encoded index inside the artifact directory.
const IndexFile = "index.gob"

var _ vectorstore.Artifact = (*Artifact)(nil)

type payload struct {
	Manifest vectorstore.Manifest
	Chunks   []domain.Chunk
	Vectors  [][]float64
}

// Artifact stores the index under dir/index.gob. The directory itself marks
// the artifact as present.
type Artifact struct {
	dir string
}

func New(dir string) *Artifact { return &Artifact{dir: dir} }

func (a *Artifact) Path() string { return a.dir }

func (a *Artifact) Exists() (bool, error) {
	info, err := os.Stat(a.dir)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", a.dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", a.dir)
	}
	return true, nil
}

func (a *Artifact) Write(ctx context.Context, m vectorstore.Manifest, chunks []domain.Chunk, vectors [][]float64) (vectorstore.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := load(m, chunks, vectors)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", a.dir, err)
	}
	target := filepath.Join(a.dir, IndexFile)
	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", tmp, err)
	}
	stored, storedVectors := idx.Snapshot()
	if err := gob.NewEncoder(f).Encode(payload{Manifest: m, Chunks: stored, Vectors: storedVectors}); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("encoding index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return nil, fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return idx, nil
}

func (a *Artifact) Open(ctx context.Context) (vectorstore.Index, vectorstore.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, vectorstore.Manifest{}, err
	}
	target := filepath.Join(a.dir, IndexFile)
	f, err := os.Open(target)
	if err != nil {
		return nil, vectorstore.Manifest{}, fmt.Errorf("opening %s: %w", target, err)
	}
	defer f.Close()

	var p payload
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, vectorstore.Manifest{}, fmt.Errorf("decoding %s: %w", target, err)
	}
	if p.Manifest.Version != vectorstore.ManifestVersion {
		return nil, p.Manifest, fmt.Errorf("unsupported index version %d", p.Manifest.Version)
	}
	if p.Manifest.Chunks != len(p.Chunks) {
		return nil, p.Manifest, fmt.Errorf("manifest lists %d chunks, file holds %d", p.Manifest.Chunks, len(p.Chunks))
	}
	idx, err := load(p.Manifest, p.Chunks, p.Vectors)
	if err != nil {
		return nil, p.Manifest, err
	}
	return idx, p.Manifest, nil
}

func load(m vectorstore.Manifest, chunks []domain.Chunk, vectors [][]float64) (*memory.Storage, error) {
	s := memory.NewStorage()
	if err := s.Init(m.Dimension); err != nil {
		return nil, fmt.Errorf("index dimension %d: %w", m.Dimension, err)
	}
	if err := s.Upsert(chunks, vectors); err != nil {
		return nil, err
	}
	return s, nil
}
