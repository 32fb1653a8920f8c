package main

import (
	"fmt"
	"log/slog"
	"time"

	"askrag/internal/chunker"
	"askrag/internal/config"
	"askrag/internal/domain"
	"askrag/internal/embedding"
	geminiemb "askrag/internal/embedding/gemini"
	openaiemb "askrag/internal/embedding/openai"
	"askrag/internal/embedding/tfidf"
	"askrag/internal/index"
	"askrag/internal/llm"
	anthropicllm "askrag/internal/llm/anthropic"
	"askrag/internal/llm/extractive"
	geminillm "askrag/internal/llm/gemini"
	openaillm "askrag/internal/llm/openai"
	"askrag/internal/loader"
	"askrag/internal/service"
	"askrag/internal/vectorstore"
	"askrag/internal/vectorstore/file"
	"askrag/internal/vectorstore/sqlite"
)

// Pipeline holds the wired components behind every subcommand.
type Pipeline struct {
	Manager   *index.Manager
	Generator *llm.Generator
	Service   *service.RAGService
}

// Close releases the index.
func (p *Pipeline) Close() error { return p.Manager.Close() }

// WirePipeline builds the components described by cfg. Nothing is read from
// disk or the network until the index is first needed.
func WirePipeline(cfg *config.AppConfig, logger *slog.Logger) (*Pipeline, error) {
	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	artifact, err := newArtifact(cfg.Index)
	if err != nil {
		return nil, err
	}
	manager := index.New(
		loader.New(cfg.Source.Dir, cfg.Source.Extension),
		newChunker(cfg.Chunker),
		emb,
		artifact,
		logger,
		index.Options{
			DetectStaleness:  cfg.Index.DetectStaleness,
			RebuildOnCorrupt: cfg.Index.RebuildOnCorrupt,
			Concurrency:      cfg.Embedder.Concurrency,
		},
	)

	model, err := newChatModel(cfg.Generator)
	if err != nil {
		return nil, err
	}
	gen := llm.NewGenerator(model, cfg.Generator.MaxAttempts, llm.WithLogger(logger))
	svc := service.NewRAGService(manager, gen, cfg.Retrieval.TopK, logger)
	return &Pipeline{Manager: manager, Generator: gen, Service: svc}, nil
}

func newChunker(cfg config.ChunkerConfig) domain.Chunker {
	if cfg.Type == "sentence" {
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.SentenceOverlap)
	}
	return chunker.NewRecursiveChunker(cfg.ChunkSize, cfg.ChunkOverlap)
}

func newEmbedder(cfg config.EmbedderConfig) (embedding.Embedder, error) {
	switch cfg.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openaiemb.NewClient(openaiemb.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
		}), nil
	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("gemini embedder config missing")
		}
		return geminiemb.New(geminiemb.Config{
			BaseURL:   cfg.Gemini.BaseURL,
			APIKeyEnv: cfg.Gemini.APIKeyEnv,
			Model:     cfg.Gemini.Model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}
}

func newArtifact(cfg config.IndexConfig) (vectorstore.Artifact, error) {
	switch cfg.Backend {
	case "file", "":
		return file.New(cfg.Path), nil
	case "sqlite":
		return sqlite.New(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s", cfg.Backend)
	}
}

func newChatModel(cfg config.GeneratorConfig) (llm.ChatModel, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Type {
	case "gemini", "":
		return geminillm.New(geminillm.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case "openai":
		return openaillm.New(openaillm.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}), nil
	case "anthropic":
		return anthropicllm.New(anthropicllm.Config{
			APIKeyEnv:   cfg.APIKeyEnv,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}), nil
	case "extractive":
		return extractive.New(3), nil
	default:
		return nil, fmt.Errorf("unknown generator: %s", cfg.Type)
	}
}
