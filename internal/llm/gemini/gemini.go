// Package gemini answers prompts with Google's Gemini models.
package gemini

import (
	"context"
	"fmt"
	"os"
	"sync"

	"google.golang.org/genai"

	"askrag/internal/llm"
)

// Config configures the Gemini chat model.
type Config struct {
	APIKeyEnv   string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

var _ llm.ChatModel = (*Model)(nil)

// Model calls GenerateContent. The client is created on the first request,
// so a missing key is reported per request instead of at startup.
type Model struct {
	cfg Config

	mu     sync.Mutex
	client *genai.Client
}

func New(cfg Config) *Model {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-pro"
	}
	return &Model{cfg: cfg}
}

func (m *Model) Name() string { return "gemini:" + m.cfg.Model }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	client, err := m.getClient(ctx)
	if err != nil {
		return "", err
	}
	resp, err := client.Models.GenerateContent(ctx, m.cfg.Model,
		[]*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)},
		m.buildConfig(p),
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generating content: %w", err)
	}
	// An empty reply is a valid answer.
	return resp.Text(), nil
}

func (m *Model) buildConfig(p llm.Prompt) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(m.cfg.Temperature)),
	}
	if m.cfg.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(m.cfg.MaxTokens)
	}
	if p.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: p.System}},
		}
	}
	return cfg
}

func (m *Model) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		return m.client, nil
	}
	key := os.Getenv(m.cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("gemini: missing API key in env %s", m.cfg.APIKeyEnv)
	}
	cc := &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI}
	if m.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: m.cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	m.client = client
	return client, nil
}
