package domain

// Document represents a single text file loaded from the source directory.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a bounded slice of a document used as the retrieval unit.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// DocumentLoader enumerates and reads the source documents.
type DocumentLoader interface {
	Load() ([]Document, error)
}

// Texts returns the chunk texts of results in order.
func Texts(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.Text
	}
	return out
}
