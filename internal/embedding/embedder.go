package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Stateful is implemented by embedders whose prepared state must be stored
// with the index so that queries are embedded the same way after a restart.
// Fresh returns an unprepared embedder with the same configuration; builds
// prepare it so the state queries currently use is never touched.
type Stateful interface {
	MarshalState() ([]byte, error)
	RestoreState(data []byte) error
	Fresh() Embedder
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
