// Package extractive answers from the retrieved context alone by picking the
// sentences that best match the question. It needs no network access.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"askrag/internal/llm"
)

// NoAnswer is returned when no context sentence mentions the question terms.
const NoAnswer = "I don't know"

var (
	_ llm.ChatModel = (*Model)(nil)

	sentencePattern = regexp.MustCompile(`[^.!?\n]+(?:[.!?]+|$)`)
	tokenPattern    = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)
)

// Model ranks context sentences by stopword-filtered word frequency, boosted
// for words that occur in the question.
type Model struct {
	maxSentences int
	stopwords    map[string]struct{}
}

// New returns a model answering with at most maxSentences sentences.
func New(maxSentences int) *Model {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Model{maxSentences: maxSentences, stopwords: defaultStopwords()}
}

func (m *Model) Name() string { return "extractive" }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var sentences []string
	for _, c := range p.Context {
		for _, s := range sentencePattern.FindAllString(c, -1) {
			if s = strings.TrimSpace(s); s != "" {
				sentences = append(sentences, s)
			}
		}
	}
	question := make(map[string]struct{})
	for _, tok := range m.tokens(p.Question) {
		question[tok] = struct{}{}
	}
	if len(sentences) == 0 || len(question) == 0 {
		return NoAnswer, nil
	}

	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range m.tokens(sent) {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	for k, v := range freq {
		freq[k] = v / maxF
	}

	type scored struct {
		idx   int
		score float64
	}
	var ranked []scored
	seen := make(map[string]struct{})
	for i, sent := range sentences {
		if _, dup := seen[sent]; dup {
			continue
		}
		seen[sent] = struct{}{}
		toks := m.tokens(sent)
		score, hits := 0.0, 0
		for _, tok := range toks {
			w := freq[tok]
			if _, ok := question[tok]; ok {
				w += 2
				hits++
			}
			score += w
		}
		if hits == 0 {
			continue
		}
		ranked = append(ranked, scored{i, score / math.Sqrt(float64(len(toks)))})
	}
	if len(ranked) == 0 {
		return NoAnswer, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	n := min(m.maxSentences, len(ranked))
	selected := make([]int, n)
	for i := range selected {
		selected[i] = ranked[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}

// tokens lowercases text and drops stopwords.
func (m *Model) tokens(text string) []string {
	all := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := all[:0]
	for _, t := range all {
		if _, ok := m.stopwords[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "how", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
