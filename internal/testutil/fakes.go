// Package testutil holds hand-written fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"askrag/internal/domain"
	"askrag/internal/llm"
)

var wordPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// HashEmbedder is a deterministic bag-of-words embedder: every lowercase
// word increments the bucket its FNV hash falls into.
type HashEmbedder struct {
	Dim      int
	Label    string
	FailWith error

	prepares atomic.Int32
	embeds   atomic.Int32
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim, Label: "hash"}
}

func (e *HashEmbedder) Name() string { return e.Label }

func (e *HashEmbedder) Prepare(corpus []string) error {
	e.prepares.Add(1)
	return nil
}

func (e *HashEmbedder) Dimension() int { return e.Dim }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.embeds.Add(1)
	if e.FailWith != nil {
		return nil, e.FailWith
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := make([]float64, e.Dim)
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32()%uint32(e.Dim))]++
	}
	return v, nil
}

func (e *HashEmbedder) Prepares() int { return int(e.prepares.Load()) }
func (e *HashEmbedder) Embeds() int   { return int(e.embeds.Load()) }

// SpyLoader returns fixed documents and counts how often it is asked.
type SpyLoader struct {
	Docs []domain.Document
	Err  error

	loads atomic.Int32
}

func (l *SpyLoader) Load() ([]domain.Document, error) {
	l.loads.Add(1)
	if l.Err != nil {
		return nil, l.Err
	}
	return l.Docs, nil
}

func (l *SpyLoader) Loads() int { return int(l.loads.Load()) }

// ScriptedModel replays Steps in order, one per call. An entry with a
// non-nil Err fails that call. Once the script is exhausted the last step
// repeats.
type ScriptedModel struct {
	Steps []Step

	mu      sync.Mutex
	prompts []llm.Prompt
}

type Step struct {
	Reply string
	Err   error
}

// ErrScripted is a convenient failure for scripts.
var ErrScripted = errors.New("scripted failure")

func ReplyWith(text string) *ScriptedModel {
	return &ScriptedModel{Steps: []Step{{Reply: text}}}
}

func FailAlways(err error) *ScriptedModel {
	return &ScriptedModel{Steps: []Step{{Err: err}}}
}

func (m *ScriptedModel) Name() string { return "scripted" }

func (m *ScriptedModel) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.prompts)
	m.prompts = append(m.prompts, p)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.Steps) == 0 {
		return "", ErrScripted
	}
	step := m.Steps[min(n, len(m.Steps)-1)]
	return step.Reply, step.Err
}

func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *ScriptedModel) Prompts() []llm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Prompt(nil), m.prompts...)
}
