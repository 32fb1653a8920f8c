// Package service answers questions over the indexed documents: it
// retrieves the nearest chunks, assembles the prompt and asks the model.
package service

import (
	"context"
	"log/slog"
	"strings"

	"askrag/internal/domain"
	"askrag/internal/embedding"
	"askrag/internal/llm"
	"askrag/internal/ragerr"
	"askrag/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 5

// IndexProvider hands out the shared index and the embedder it was built
// with. *index.Manager satisfies it.
type IndexProvider interface {
	Ensure(ctx context.Context) (vectorstore.Index, error)
	Embedder() embedding.Embedder
}

type Generator interface {
	Generate(ctx context.Context, p llm.Prompt) (string, error)
}

// Answer is a generated reply together with the chunks it was based on.
type Answer struct {
	Text    string
	Sources []domain.SearchResult
}

type RAGService struct {
	index     IndexProvider
	generator Generator
	topK      int
	logger    *slog.Logger
}

func NewRAGService(index IndexProvider, generator Generator, topK int, logger *slog.Logger) *RAGService {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{index: index, generator: generator, topK: topK, logger: logger}
}

// Retrieve embeds query and returns up to k chunks, nearest first. A k of
// zero or less uses the configured default.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = s.topK
	}
	idx, err := s.index.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := s.index.Embedder().Embed(ctx, query)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeEmbeddingFailure, "embedding question")
	}
	results, err := idx.Search(ctx, vec, k)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeVectorSearchFailure, "searching index", ragerr.Field("k", k))
	}
	return results, nil
}

// Ask validates the question, retrieves context and generates an answer.
func (s *RAGService) Ask(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ragerr.New(ragerr.CodeQuestionInvalid, "Question is required")
	}
	results, err := s.Retrieve(ctx, question, s.topK)
	if err != nil {
		return Answer{}, err
	}
	chunks := domain.Texts(results)
	prompt := AssemblePrompt(chunks, question)
	s.logger.Debug("retrieved context",
		"question", question,
		"chunks", len(chunks),
		"context", strings.Join(chunks, "\n"),
	)
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Text: text, Sources: results}, nil
}
