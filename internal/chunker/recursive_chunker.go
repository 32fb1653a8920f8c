package chunker

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"askrag/internal/domain"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// RecursiveChunker splits text on the coarsest separator present, recursing
// into pieces that are still too long, then merges neighbouring pieces into
// chunks of at most chunkSize characters that share up to chunkOverlap
// characters with their predecessor. A separator stays at the front of the
// piece that follows it, so it counts towards that piece's length.
//
// Lengths are counted in runes.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

func NewRecursiveChunker(chunkSize, chunkOverlap int) *RecursiveChunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &RecursiveChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts := c.Split(document.Content)
	chunks := make([]domain.Chunk, 0, len(texts))
	for idx, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:         document.ID + ":" + strconv.Itoa(idx),
			DocumentID: document.ID,
			Source:     document.Path,
			Text:       text,
			Index:      idx,
		})
	}
	return chunks, nil
}

// Split returns the chunk texts for text.
func (c *RecursiveChunker) Split(text string) []string {
	return c.split(text, c.separators)
}

func (c *RecursiveChunker) split(text string, separators []string) []string {
	var final []string

	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var good []string
	for _, s := range splitOn(text, separator) {
		if runeLen(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, s)
		} else {
			final = append(final, c.split(s, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good)...)
	}
	return final
}

// merge packs splits into windows. When a window is full it is emitted and
// pieces are dropped from its front until at most chunkOverlap characters
// remain and the next piece fits. Pieces already carry their separators.
func (c *RecursiveChunker) merge(splits []string) []string {
	var docs []string
	var current []string
	total := 0
	for _, d := range splits {
		l := runeLen(d)
		if total+l > c.chunkSize && len(current) > 0 {
			if doc, ok := joinDocs(current); ok {
				docs = append(docs, doc)
			}
			for len(current) > 0 && (total > c.chunkOverlap || (total+l > c.chunkSize && total > 0)) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, d)
		total += l
	}
	if doc, ok := joinDocs(current); ok {
		docs = append(docs, doc)
	}
	return docs
}

// splitOn cuts text before every occurrence of separator, including
// overlapping ones, so each piece after the first starts with it. The empty
// separator cuts between runes.
func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	start := 0
	for i := 1; i < len(text); i++ {
		if strings.HasPrefix(text[i:], separator) {
			parts = append(parts, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}
	return parts
}

func joinDocs(docs []string) (string, bool) {
	text := strings.TrimSpace(strings.Join(docs, ""))
	return text, text != ""
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
