// Package openai answers prompts with an OpenAI-compatible chat completions
// endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"askrag/internal/llm"
)

// Config configures the chat model.
type Config struct {
	APIKeyEnv   string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

var _ llm.ChatModel = (*Model)(nil)

type Model struct {
	cfg Config
}

func New(cfg Config) *Model {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT4oMini
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Model{cfg: cfg}
}

func (m *Model) Name() string { return "openai:" + m.cfg.Model }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	key := os.Getenv(m.cfg.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("openai: missing API key in env %s", m.cfg.APIKeyEnv)
	}
	oc := goopenai.DefaultConfig(key)
	if m.cfg.BaseURL != "" {
		oc.BaseURL = m.cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: m.cfg.Timeout}
	client := goopenai.NewClientWithConfig(oc)

	var messages []goopenai.ChatCompletionMessage
	if p.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: p.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: p.User})

	resp, err := client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		Messages:    messages,
		Temperature: temperature(m.cfg.Temperature),
		MaxTokens:   m.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// temperature maps 0 to the smallest positive float32; the request field is
// omitted when zero, which would leave the server default in place.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
