package chunker

import (
	"regexp"
	"strconv"
	"strings"

	"askrag/internal/domain"
)

var sentenceBoundary = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// SentenceChunker groups whole sentences into chunks. Consecutive chunks
// share the last overlap sentences of the previous one.
type SentenceChunker struct {
	perChunk int
	overlap  int
}

func NewSentenceChunker(perChunk, overlap int) *SentenceChunker {
	if perChunk <= 0 {
		perChunk = 5
	}
	if overlap < 0 || overlap >= perChunk {
		overlap = 0
	}
	return &SentenceChunker{perChunk: perChunk, overlap: overlap}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for idx, text := range c.Split(document.Content) {
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
func (c *SentenceChunker) Split(text string) []string {
	var sentences []string
	for _, s := range sentenceBoundary.FindAllString(text, -1) {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			sentences = append(sentences, s)
		}
	}
	var out []string
	for start := 0; start < len(sentences); start += c.perChunk - c.overlap {
		end := min(start+c.perChunk, len(sentences))
		out = append(out, strings.Join(sentences[start:end], " "))
		if end == len(sentences) {
			break
		}
	}
	return out
}
