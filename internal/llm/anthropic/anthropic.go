// Package anthropic answers prompts with Anthropic's Messages API.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"askrag/internal/llm"
)

// Config configures the Anthropic chat model.
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
		cfg.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Model{cfg: cfg}
}

func (m *Model) Name() string { return "anthropic:" + m.cfg.Model }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	key := os.Getenv(m.cfg.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("anthropic: missing API key in env %s", m.cfg.APIKeyEnv)
	}
	// Retries are owned by llm.Generator.
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if m.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(m.cfg.BaseURL))
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(m.cfg.Timeout))
	}
	client := anthropicsdk.NewClient(opts...)

	msg, err := client.Messages.New(ctx, buildParams(m.cfg, p))
	if err != nil {
		return "", fmt.Errorf("anthropic: creating message: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func buildParams(cfg Config, p llm.Prompt) anthropicsdk.MessageNewParams {
	params := anthropicsdk.MessageNewParams{
		Model:       anthropicsdk.Model(cfg.Model),
		MaxTokens:   int64(cfg.MaxTokens),
		Temperature: anthropicsdk.Float(cfg.Temperature),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: p.System}}
	}
	return params
}
