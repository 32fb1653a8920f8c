package extractive_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askrag/internal/llm"
	"askrag/internal/llm/extractive"
)

var passages = []string{
	"Occam Advisory is a consulting firm based in London. It helps businesses grow.",
	"Bananas are yellow.",
}

func TestComplete_PicksMatchingSentence(t *testing.T) {
	m := extractive.New(1)
	got, err := m.Complete(context.Background(), llm.Prompt{Context: passages, Question: "what is occam"})
	require.NoError(t, err)
	assert.Equal(t, "Occam Advisory is a consulting firm based in London.", got)
}

func TestComplete_KeepsContextOrder(t *testing.T) {
	m := extractive.New(3)
	got, err := m.Complete(context.Background(), llm.Prompt{
		Context:  []string{"Bananas are yellow. Occam likes bananas.", "Occam Advisory is a firm."},
		Question: "occam bananas",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bananas are yellow. Occam likes bananas. Occam Advisory is a firm.", got)
}

func TestComplete_NoAnswer(t *testing.T) {
	m := extractive.New(3)

	got, err := m.Complete(context.Background(), llm.Prompt{Question: "what is occam"})
	require.NoError(t, err)
	assert.Equal(t, extractive.NoAnswer, got)

	got, err = m.Complete(context.Background(), llm.Prompt{Context: passages, Question: "quantum chromodynamics"})
	require.NoError(t, err)
	assert.Equal(t, extractive.NoAnswer, got)
}

func TestComplete_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := extractive.New(1).Complete(ctx, llm.Prompt{Context: passages, Question: "occam"})
	require.ErrorIs(t, err, context.Canceled)
}
