package vectorstore

import (
	"context"
	"time"

	"askrag/internal/domain"
)

// Index answers nearest-neighbour queries over chunk embeddings. Results are
// ordered by decreasing cosine similarity; equal scores keep insertion order.
type Index interface {
	Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error)
	Len() int
	Close() error
}

// ManifestVersion is bumped whenever the persisted layout changes.
const ManifestVersion = 1

// Manifest describes how a persisted index was built.
type Manifest struct {
	Version       int
	Embedder      string
	Dimension     int
	EmbedderState []byte
	Fingerprint   string
	Chunks        int
	BuiltAt       time.Time
}

// Artifact is an index persisted at a fixed location.
type Artifact interface {
	Path() string
	Exists() (bool, error)
	// Write replaces whatever is at Path with a new index and returns it opened.
	Write(ctx context.Context, m Manifest, chunks []domain.Chunk, vectors [][]float64) (Index, error)
	Open(ctx context.Context) (Index, Manifest, error)
}
