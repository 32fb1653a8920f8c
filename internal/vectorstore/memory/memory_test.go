package memory_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askrag/internal/domain"
	"askrag/internal/vectorstore/memory"
)

func chunksFor(n int) []domain.Chunk {
	out := make([]domain.Chunk, n)
	for i := range out {
		out[i] = domain.Chunk{ID: fmt.Sprintf("c%d", i), Text: fmt.Sprintf("chunk %d", i), Index: i}
	}
	return out
}

func TestSearch_ReturnsNearestFirst(t *testing.T) {
	s := memory.NewStorage()
	require.NoError(t, s.Init(2))
	vectors := [][]float64{
		{0, 1},  // cos 0
		{1, 0},  // cos 1
		{1, 1},  // cos 0.7071
		{-1, 0}, // cos -1
		{2, 1},  // cos 0.8944
		{1, 2},  // cos 0.4472
		{3, 1},  // cos 0.9487
	}
	require.NoError(t, s.Upsert(chunksFor(len(vectors)), vectors))

	res, err := s.Search(context.Background(), []float64{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 5)

	var ids []string
	for _, r := range res {
		ids = append(ids, r.Chunk.ID)
	}
	assert.Equal(t, []string{"c1", "c6", "c4", "c2", "c5"}, ids)
	assert.InDelta(t, 1.0, res[0].Score, 1e-12)
	assert.InDelta(t, 3/math.Sqrt(10), res[1].Score, 1e-12)
	assert.InDelta(t, 1/math.Sqrt(5), res[4].Score, 1e-12)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	s := memory.NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(chunksFor(3), [][]float64{{1, 0}, {2, 0}, {0, 1}}))

	res, err := s.Search(context.Background(), []float64{5, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "c0", res[0].Chunk.ID)
	assert.Equal(t, "c1", res[1].Chunk.ID)
}

func TestSearch_FewerThanK(t *testing.T) {
	s := memory.NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(chunksFor(2), [][]float64{{1, 0}, {0, 1}}))

	res, err := s.Search(context.Background(), []float64{0, 1}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Equal(t, "c1", res[0].Chunk.ID)
}

func TestUpsert_Validation(t *testing.T) {
	s := memory.NewStorage()
	require.Error(t, s.Init(0))
	require.NoError(t, s.Init(2))
	require.Error(t, s.Upsert(chunksFor(2), [][]float64{{1, 0}}))
	require.Error(t, s.Upsert(chunksFor(1), [][]float64{{1, 0, 0}}))

	_, err := s.Search(context.Background(), []float64{1}, 1)
	require.Error(t, err)
}

func TestSnapshot(t *testing.T) {
	s := memory.NewStorage()
	require.NoError(t, s.Init(2))
	require.NoError(t, s.Upsert(chunksFor(2), [][]float64{{1, 0}, {0, 1}}))

	chunks, vectors := s.Snapshot()
	assert.Len(t, chunks, 2)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)

	chunks[0].ID = "changed"
	again, _ := s.Snapshot()
	assert.Equal(t, "c0", again[0].ID)
}
