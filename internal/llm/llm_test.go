package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askrag/internal/llm"
	"askrag/internal/ragerr"
	"askrag/internal/testutil"
)

func noDelay(int) time.Duration { return 0 }

func TestGenerate_TrimsReply(t *testing.T) {
	model := testutil.ReplyWith("\n  Occam is a consulting firm.  \n")
	g := llm.NewGenerator(model, 2, llm.WithBackoff(noDelay))

	got, err := g.Generate(context.Background(), llm.Prompt{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, "Occam is a consulting firm.", got)
	assert.Equal(t, 1, model.Calls())
}

func TestGenerate_BlankReplyIsNotRetried(t *testing.T) {
	model := testutil.ReplyWith("  \n")
	g := llm.NewGenerator(model, 2, llm.WithBackoff(noDelay))

	got, err := g.Generate(context.Background(), llm.Prompt{User: "q"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, model.Calls())
}

func TestGenerate_RetriesOnce(t *testing.T) {
	model := &testutil.ScriptedModel{Steps: []testutil.Step{
		{Err: testutil.ErrScripted},
		{Reply: "second time lucky"},
	}}
	g := llm.NewGenerator(model, 2, llm.WithBackoff(noDelay))

	got, err := g.Generate(context.Background(), llm.Prompt{User: "q"})
	require.NoError(t, err)
	assert.Equal(t, "second time lucky", got)
	assert.Equal(t, 2, model.Calls())
}

func TestGenerate_FailingTwiceExhaustsAttempts(t *testing.T) {
	model := testutil.FailAlways(testutil.ErrScripted)
	g := llm.NewGenerator(model, 2, llm.WithBackoff(noDelay))

	_, err := g.Generate(context.Background(), llm.Prompt{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 2, model.Calls())
	assert.True(t, errors.Is(err, testutil.ErrScripted))
	assert.Equal(t, ragerr.CodeModelFailure, ragerr.CodeOf(err))
	assert.Equal(t, ragerr.KindModel, ragerr.KindOf(err))
}

func TestGenerate_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := testutil.FailAlways(testutil.ErrScripted)
	g := llm.NewGenerator(model, 5, llm.WithBackoff(noDelay))

	_, err := g.Generate(ctx, llm.Prompt{User: "q"})
	require.Error(t, err)
	assert.Equal(t, 1, model.Calls())
	assert.Equal(t, ragerr.KindModel, ragerr.KindOf(err))
}

func TestNewGenerator_AtLeastOneAttempt(t *testing.T) {
	model := testutil.FailAlways(testutil.ErrScripted)
	_, err := llm.NewGenerator(model, 0).Generate(context.Background(), llm.Prompt{})
	require.Error(t, err)
	assert.Equal(t, 1, model.Calls())
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, llm.RetryDelay(0))
	assert.Equal(t, 400*time.Millisecond, llm.RetryDelay(1))
	assert.Equal(t, 5*time.Second, llm.RetryDelay(10))
	assert.Equal(t, 5*time.Second, llm.RetryDelay(80))
}
