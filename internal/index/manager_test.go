package index_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askrag/internal/chunker"
	"askrag/internal/domain"
	"askrag/internal/embedding"
	"askrag/internal/embedding/tfidf"
	"askrag/internal/index"
	"askrag/internal/loader"
	"askrag/internal/ragerr"
	"askrag/internal/testutil"
	"askrag/internal/vectorstore"
	"askrag/internal/vectorstore/file"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func spy() *testutil.SpyLoader {
	return &testutil.SpyLoader{Docs: []domain.Document{
		{ID: "about", Path: "about.txt", Content: "Occam Advisory is a consulting firm."},
		{ID: "fruit", Path: "fruit.txt", Content: "Bananas are yellow. Apples are red."},
	}}
}

func newManager(l domain.DocumentLoader, e embedding.Embedder, dir string, opts index.Options) *index.Manager {
	return index.New(l, chunker.NewRecursiveChunker(1000, 200), e, file.New(dir), discard, opts)
}

func TestEnsure_ColdThenWarm(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectorstore")

	cold := spy()
	m := newManager(cold, testutil.NewHashEmbedder(16), dir, index.Options{})
	idx, err := m.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, cold.Loads())

	again, err := m.Ensure(ctx)
	require.NoError(t, err)
	assert.Same(t, idx, again)
	assert.Equal(t, 1, cold.Loads())

	warm := spy()
	m2 := newManager(warm, testutil.NewHashEmbedder(16), dir, index.Options{})
	idx2, err := m2.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, idx2.Len())
	assert.Zero(t, warm.Loads(), "warm start must not read the source directory")
}

func TestEnsure_ConcurrentCallersShareOneBuild(t *testing.T) {
	l := spy()
	e := testutil.NewHashEmbedder(16)
	m := newManager(l, e, filepath.Join(t.TempDir(), "vectorstore"), index.Options{})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Ensure(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, l.Loads())
	assert.Equal(t, 1, e.Prepares())
	assert.Equal(t, 2, e.Embeds())
}

func TestEnsure_CorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file.IndexFile), []byte("garbage"), 0o644))

	l := spy()
	_, err := newManager(l, testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, ragerr.CodeIndexLoadFailure, ragerr.CodeOf(err))
	assert.Equal(t, ragerr.KindDependency, ragerr.KindOf(err))
	assert.Zero(t, l.Loads())

	idx, err := newManager(l, testutil.NewHashEmbedder(16), dir, index.Options{RebuildOnCorrupt: true}).Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1, l.Loads())
}

func TestEnsure_EmbedderMismatch(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectorstore")
	_, err := newManager(spy(), testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(ctx)
	require.NoError(t, err)

	other := testutil.NewHashEmbedder(16)
	other.Label = "other"
	_, err = newManager(spy(), other, dir, index.Options{}).Ensure(ctx)
	require.Error(t, err)
	assert.Equal(t, ragerr.CodeIndexLoadFailure, ragerr.CodeOf(err))
}

func TestEnsure_SourceErrors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vectorstore")

	missing := loader.New(filepath.Join(t.TempDir(), "nope"), ".txt")
	_, err := newManager(missing, testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, ragerr.KindDependency, ragerr.KindOf(err))

	blank := &testutil.SpyLoader{Docs: []domain.Document{{ID: "x", Path: "x.txt", Content: "   "}}}
	_, err = newManager(blank, testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, ragerr.CodeSourceEmpty, ragerr.CodeOf(err))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "failed builds leave no artifact")
}

func TestEnsure_EmbeddingFailure(t *testing.T) {
	e := testutil.NewHashEmbedder(16)
	e.FailWith = testutil.ErrScripted
	_, err := newManager(spy(), e, filepath.Join(t.TempDir(), "vs"), index.Options{}).Ensure(context.Background())
	require.ErrorIs(t, err, testutil.ErrScripted)
	assert.Equal(t, ragerr.CodeEmbeddingFailure, ragerr.CodeOf(err))
}

func TestEnsure_StalenessDetection(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	dir := filepath.Join(t.TempDir(), "vectorstore")
	doc := filepath.Join(src, "about.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Occam Advisory is a consulting firm."), 0o644))

	_, err := newManager(loader.New(src, ".txt"), testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(src, "more.txt"), []byte("Bananas are yellow."), 0o644))

	reused, err := newManager(loader.New(src, ".txt"), testutil.NewHashEmbedder(16), dir, index.Options{}).Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, reused.Len(), "staleness is ignored unless enabled")

	rebuilt, err := newManager(loader.New(src, ".txt"), testutil.NewHashEmbedder(16), dir, index.Options{DetectStaleness: true}).Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt.Len())

	_, before, err := file.New(dir).Open(ctx)
	require.NoError(t, err)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(doc, later, later))
	_, err = newManager(loader.New(src, ".txt"), testutil.NewHashEmbedder(16), dir, index.Options{DetectStaleness: true}).Ensure(ctx)
	require.NoError(t, err)
	_, after, err := file.New(dir).Open(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.True(t, after.BuiltAt.After(before.BuiltAt))
}

func TestRebuild_ReplacesMemoizedIndex(t *testing.T) {
	ctx := context.Background()
	l := spy()
	m := newManager(l, testutil.NewHashEmbedder(16), filepath.Join(t.TempDir(), "vs"), index.Options{})
	first, err := m.Ensure(ctx)
	require.NoError(t, err)

	l.Docs = l.Docs[:1]
	rebuilt, err := m.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt.Len())
	assert.NotSame(t, first, rebuilt)

	current, err := m.Ensure(ctx)
	require.NoError(t, err)
	assert.Same(t, rebuilt, current)
	assert.Equal(t, 2, l.Loads())
	require.NoError(t, m.Close())
}

// guardedArtifact fails writes on demand and records how many writes overlap.
type guardedArtifact struct {
	vectorstore.Artifact
	fail    atomic.Bool
	active  atomic.Int32
	overlap atomic.Int32
}

func (a *guardedArtifact) Write(ctx context.Context, m vectorstore.Manifest, chunks []domain.Chunk, vectors [][]float64) (vectorstore.Index, error) {
	if a.active.Add(1) > 1 {
		a.overlap.Add(1)
	}
	defer a.active.Add(-1)
	time.Sleep(10 * time.Millisecond)
	if a.fail.Load() {
		return nil, errors.New("disk full")
	}
	return a.Artifact.Write(ctx, m, chunks, vectors)
}

func TestRebuild_FailedWriteKeepsIndexAndEmbedder(t *testing.T) {
	ctx := context.Background()
	l := spy()
	art := &guardedArtifact{Artifact: file.New(filepath.Join(t.TempDir(), "vs"))}
	m := index.New(l, chunker.NewRecursiveChunker(1000, 200), tfidf.NewEmbedder(), art, discard, index.Options{})

	idx, err := m.Ensure(ctx)
	require.NoError(t, err)
	emb := m.Embedder()
	before, err := emb.Embed(ctx, "what is occam")
	require.NoError(t, err)

	l.Docs = []domain.Document{{ID: "zoo", Path: "zoo.txt", Content: "Zebras are striped animals."}}
	art.fail.Store(true)
	_, err = m.Rebuild(ctx)
	require.Error(t, err)

	assert.Same(t, emb, m.Embedder())
	after, err := m.Embedder().Embed(ctx, "what is occam")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	current, err := m.Ensure(ctx)
	require.NoError(t, err)
	assert.Same(t, idx, current)
	res, err := current.Search(ctx, after, 1)
	require.NoError(t, err)
	assert.Equal(t, "about.txt", res[0].Chunk.Source)
}

func TestRebuild_SerializedWithEnsure(t *testing.T) {
	ctx := context.Background()
	art := &guardedArtifact{Artifact: file.New(filepath.Join(t.TempDir(), "vs"))}
	m := index.New(spy(), chunker.NewRecursiveChunker(1000, 200), testutil.NewHashEmbedder(16), art, discard, index.Options{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := m.Ensure(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := m.Rebuild(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Zero(t, art.overlap.Load())
	require.NoError(t, m.Close())
}

func TestEnsure_RestoresEmbedderState(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vectorstore")
	_, err := newManager(spy(), tfidf.NewEmbedder(), dir, index.Options{}).Ensure(ctx)
	require.NoError(t, err)

	fresh := tfidf.NewEmbedder()
	m := newManager(spy(), fresh, dir, index.Options{})
	idx, err := m.Ensure(ctx)
	require.NoError(t, err)

	q, err := m.Embedder().Embed(ctx, "what is occam")
	require.NoError(t, err)
	require.False(t, embedding.IsZero(q))
	res, err := idx.Search(ctx, q, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "about.txt", res[0].Chunk.Source)
}

func TestEnsure_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newManager(spy(), testutil.NewHashEmbedder(16), filepath.Join(t.TempDir(), "vs"), index.Options{}).Ensure(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("two"), 0o644))

	fp1, err := index.Fingerprint([]string{a, b})
	require.NoError(t, err)
	fp2, err := index.Fingerprint([]string{b, a})
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)

	require.NoError(t, os.WriteFile(b, []byte("three"), 0o644))
	fp3, err := index.Fingerprint([]string{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)

	_, err = index.Fingerprint([]string{filepath.Join(dir, "missing.txt")})
	require.Error(t, err)
}
