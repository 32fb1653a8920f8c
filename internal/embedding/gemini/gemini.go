// Package gemini embeds text with the Gemini embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"google.golang.org/genai"
)

// Config configures the Gemini embedder.
type Config struct {
	APIKeyEnv string
	Model     string
	BaseURL   string
}

// Embedder implements the Embedder interface on top of the genai SDK. The
// SDK client is created on first use so that a missing key surfaces as a
// request failure rather than a startup failure.
type Embedder struct {
	cfg Config

	mu        sync.Mutex
	client    *genai.Client
	dimension int
}

func New(cfg Config) *Embedder {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}
	return &Embedder{cfg: cfg}
}

func (e *Embedder) Name() string { return "gemini:" + e.cfg.Model }

func (e *Embedder) Prepare(corpus []string) error { return nil }

func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	client, err := e.getClient(ctx)
	if err != nil {
		return nil, err
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := client.Models.EmbedContent(ctx, e.cfg.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini embed: no embedding returned")
	}
	values := resp.Embeddings[0].Values
	v := make([]float64, len(values))
	for i, x := range values {
		v[i] = float64(x)
	}
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(v)
	}
	e.mu.Unlock()
	return v, nil
}

func (e *Embedder) getClient(ctx context.Context) (*genai.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		return e.client, nil
	}
	key := os.Getenv(e.cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("gemini embed: missing API key in env %s", e.cfg.APIKeyEnv)
	}
	cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if e.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: e.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: creating client: %w", err)
	}
	e.client = client
	return client, nil
}
