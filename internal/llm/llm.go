// Package llm turns an assembled prompt into an answer using a chat model.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"askrag/internal/ragerr"
)

// Prompt is a system and user message pair. Context and Question carry the
// parts the user message was assembled from for models that work on them
// directly.
type Prompt struct {
	System   string
	User     string
	Context  []string
	Question string
}

// ChatModel sends a prompt to a language model and returns its reply.
type ChatModel interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Generator calls a ChatModel with bounded retries.
type Generator struct {
	model       ChatModel
	maxAttempts int
	backoff     func(attempt int) time.Duration
	logger      *slog.Logger
}

type Option func(*Generator)

// WithBackoff overrides the delay before retry number attempt+1.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(g *Generator) { g.backoff = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator returns a generator that makes at most maxAttempts calls per
// prompt. Values below one mean a single attempt.
func NewGenerator(model ChatModel, maxAttempts int, opts ...Option) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	g := &Generator{
		model:       model,
		maxAttempts: maxAttempts,
		backoff:     RetryDelay,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Model() string { return g.model.Name() }

// Generate returns the trimmed model reply. Every failure is reported as a
// single model error carrying the last cause.
func (g *Generator) Generate(ctx context.Context, p Prompt) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ragerr.Wrap(ctx.Err(), ragerr.CodeModelFailure, "model call cancelled", ragerr.FieldModel(g.model.Name()))
			case <-time.After(g.backoff(attempt - 1)):
			}
		}
		text, err := g.model.Complete(ctx, p)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt+1 < g.maxAttempts {
			g.logger.Debug("model call failed, retrying", "model", g.model.Name(), "attempt", attempt+1, "error", err)
		}
	}
	return "", ragerr.Wrap(lastErr, ragerr.CodeModelFailure,
		fmt.Sprintf("model call failed after %d attempts", g.maxAttempts), ragerr.FieldModel(g.model.Name()))
}

// RetryDelay is the exponential back-off shared by remote clients: 200ms
// doubled per attempt, capped at 5s.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		attempt = 5
	}
	d := 200 * time.Millisecond << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
