package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askrag/internal/config"
	"askrag/internal/ragerr"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "scraped_pages", cfg.Source.Dir)
	assert.Equal(t, ".txt", cfg.Source.Extension)
	assert.Equal(t, "./vectorstore", cfg.Index.Path)
	assert.Equal(t, "file", cfg.Index.Backend)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 200, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "gemini", cfg.Generator.Type)
	assert.Equal(t, "gemini-1.5-pro", cfg.Generator.Model)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, 2, cfg.Generator.MaxAttempts)
	assert.Zero(t, cfg.Generator.Temperature)
	assert.Equal(t, 4, cfg.Scrape.Concurrency)
	assert.Equal(t, 30, cfg.Scrape.TimeoutSecs)
}

func TestParse_AppliesSectionDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
embedder:
  type: openai
generator:
  type: anthropic
index:
  backend: sqlite
  path: data/index.db
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Generator.Model)
	assert.Equal(t, "data/index.db", cfg.Index.Path)
}

func TestParse_CollectsValidationErrors(t *testing.T) {
	_, err := config.Parse([]byte(`
server:
  port: 70000
index:
  backend: hnsw
generator:
  type: llama
`))
	require.Error(t, err)
	assert.True(t, ragerr.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "index.backend")
	assert.Contains(t, err.Error(), "generator.type")
}

func TestParse_RejectsOverlapNotSmallerThanSize(t *testing.T) {
	_, err := config.Parse([]byte(`
chunker:
  chunk_size: 100
  chunk_overlap: 100
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestParse_SentenceChunker(t *testing.T) {
	cfg, err := config.Parse([]byte(`
chunker:
  type: sentence
  sentences_per_chunk: 4
  sentence_overlap: 1
`))
	require.NoError(t, err)
	assert.Equal(t, "sentence", cfg.Chunker.Type)
	assert.Equal(t, 4, cfg.Chunker.SentencesPerChunk)
	assert.Equal(t, 1, cfg.Chunker.SentenceOverlap)
}

func TestParse_RejectsNegativeScrapeConcurrency(t *testing.T) {
	_, err := config.Parse([]byte("scrape:\n  concurrency: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.concurrency")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Default()
	cfg.Server.Port = 8080
	cfg.Source.Dir = "docs"

	require.NoError(t, config.Save(path, cfg))
	_, err := os.Stat(path)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, loaded.Server.Port)
	assert.Equal(t, "docs", loaded.Source.Dir)
}
