// Package index decides whether the vector index is built from the source
// documents or restored from its persisted artifact, and keeps the result
// for the lifetime of the process.
package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"askrag/internal/domain"
	"askrag/internal/embedding"
	"askrag/internal/ragerr"
	"askrag/internal/vectorstore"
)

// Lister is implemented by loaders that can list their files without
// reading them. It enables staleness detection.
type Lister interface {
	Files() ([]string, error)
}

// Options tune the lifecycle. The zero value reuses any existing artifact.
type Options struct {
	// DetectStaleness rebuilds when the source fingerprint differs from the
	// one recorded at build time.
	DetectStaleness bool
	// RebuildOnCorrupt rebuilds instead of failing when the artifact cannot
	// be opened or was built with another embedder.
	RebuildOnCorrupt bool
	// Concurrency bounds parallel embedding calls during a build.
	Concurrency int
}

// Manager owns the vector index and the embedder queries against it must
// use. Ensure is safe for concurrent use; all callers share one build or load.
type Manager struct {
	loader   domain.DocumentLoader
	chunker  domain.Chunker
	artifact vectorstore.Artifact
	logger   *slog.Logger
	opts     Options

	group singleflight.Group
	// building serializes every load and build of the artifact.
	building sync.Mutex

	mu       sync.RWMutex
	current  vectorstore.Index
	embedder embedding.Embedder
}

func New(loader domain.DocumentLoader, chunker domain.Chunker, embedder embedding.Embedder, artifact vectorstore.Artifact, logger *slog.Logger, opts Options) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Manager{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		artifact: artifact,
		logger:   logger,
		opts:     opts,
	}
}

// Embedder returns the embedder queries must be embedded with. It changes
// only together with the memoized index.
func (m *Manager) Embedder() embedding.Embedder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embedder
}

// Ensure returns the memoized index, building or loading it on first use.
func (m *Manager) Ensure(ctx context.Context) (vectorstore.Index, error) {
	if idx := m.loaded(); idx != nil {
		return idx, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := m.group.DoChan("index", func() (any, error) {
		m.building.Lock()
		defer m.building.Unlock()
		if idx := m.loaded(); idx != nil {
			return idx, nil
		}
		// The result is shared, so one caller going away must not abort it.
		idx, emb, err := m.ensure(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		m.swap(idx, emb)
		return idx, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(vectorstore.Index), nil
	}
}

// Rebuild builds a fresh index from the source documents regardless of
// what is persisted and replaces the memoized one. It waits for any load or
// build in progress. On failure the memoized index and embedder are kept.
func (m *Manager) Rebuild(ctx context.Context) (vectorstore.Index, error) {
	m.building.Lock()
	defer m.building.Unlock()
	idx, emb, err := m.build(ctx)
	if err != nil {
		return nil, err
	}
	m.swap(idx, emb)
	return idx, nil
}

// Close releases the memoized index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

func (m *Manager) loaded() vectorstore.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) swap(idx vectorstore.Index, emb embedding.Embedder) {
	m.mu.Lock()
	old := m.current
	m.current = idx
	m.embedder = emb
	m.mu.Unlock()
	if old != nil && old != idx {
		if err := old.Close(); err != nil {
			m.logger.Warn("closing replaced index", "error", err)
		}
	}
}

// fresh returns the embedder a load or build should prepare. Stateful
// embedders get an unprepared copy so the installed one keeps matching the
// installed index until both are swapped.
func (m *Manager) fresh() embedding.Embedder {
	emb := m.Embedder()
	if s, ok := emb.(embedding.Stateful); ok {
		return s.Fresh()
	}
	return emb
}

func (m *Manager) ensure(ctx context.Context) (vectorstore.Index, embedding.Embedder, error) {
	path := m.artifact.Path()
	exists, err := m.artifact.Exists()
	if err != nil {
		return nil, nil, ragerr.Wrap(err, ragerr.CodeIndexLoadFailure, "checking index artifact", ragerr.FieldPath(path))
	}
	if !exists {
		m.logger.Info("no index found, building", "path", path)
		return m.build(ctx)
	}

	idx, err := m.open(ctx)
	if err != nil {
		if !m.opts.RebuildOnCorrupt {
			return nil, nil, err
		}
		m.logger.Warn("index unusable, rebuilding", "path", path, "error", err)
		return m.build(ctx)
	}
	if m.opts.DetectStaleness {
		stale, err := m.stale(idx.manifest)
		if err != nil {
			_ = idx.Close()
			return nil, nil, err
		}
		if stale {
			m.logger.Info("source documents changed, rebuilding", "path", path)
			_ = idx.Close()
			return m.build(ctx)
		}
	}
	m.logger.Info("index loaded",
		"path", path,
		"chunks", idx.Len(),
		"embedder", idx.manifest.Embedder,
		"built_at", idx.manifest.BuiltAt,
	)
	return idx.Index, idx.embedder, nil
}

type opened struct {
	vectorstore.Index
	manifest vectorstore.Manifest
	embedder embedding.Embedder
}

func (m *Manager) open(ctx context.Context) (*opened, error) {
	path := m.artifact.Path()
	idx, manifest, err := m.artifact.Open(ctx)
	if err != nil {
		return nil, ragerr.Wrap(err, ragerr.CodeIndexLoadFailure, "opening index", ragerr.FieldPath(path))
	}
	emb := m.fresh()
	if manifest.Embedder != emb.Name() {
		_ = idx.Close()
		return nil, ragerr.New(ragerr.CodeIndexLoadFailure, "index was built with a different embedder",
			ragerr.FieldPath(path),
			ragerr.Field("index_embedder", manifest.Embedder),
			ragerr.Field("configured_embedder", emb.Name()),
		)
	}
	if s, ok := emb.(embedding.Stateful); ok {
		if err := s.RestoreState(manifest.EmbedderState); err != nil {
			_ = idx.Close()
			return nil, ragerr.Wrap(err, ragerr.CodeIndexLoadFailure, "restoring embedder state", ragerr.FieldPath(path))
		}
	}
	return &opened{Index: idx, manifest: manifest, embedder: emb}, nil
}

func (m *Manager) stale(manifest vectorstore.Manifest) (bool, error) {
	fp, err := m.fingerprint()
	if err != nil {
		return false, err
	}
	return fp != "" && fp != manifest.Fingerprint, nil
}

func (m *Manager) fingerprint() (string, error) {
	lister, ok := m.loader.(Lister)
	if !ok {
		return "", nil
	}
	files, err := lister.Files()
	if err != nil {
		return "", err
	}
	fp, err := Fingerprint(files)
	if err != nil {
		return "", ragerr.Wrap(err, ragerr.CodeSourceReadFailure, "fingerprinting source documents")
	}
	return fp, nil
}

// build indexes the source documents with a freshly prepared embedder and
// persists the result. The embedder is returned for installation alongside
// the index.
func (m *Manager) build(ctx context.Context) (vectorstore.Index, embedding.Embedder, error) {
	start := time.Now()
	path := m.artifact.Path()

	docs, err := m.loader.Load()
	if err != nil {
		return nil, nil, ragerr.Wrap(err, ragerr.CodeIndexBuildFailure, "loading source documents")
	}
	var (
		chunks []domain.Chunk
		texts  []string
	)
	for _, d := range docs {
		cs, err := m.chunker.Chunk(d)
		if err != nil {
			return nil, nil, ragerr.Wrap(err, ragerr.CodeIndexBuildFailure, "chunking document", ragerr.FieldPath(d.Path))
		}
		for _, c := range cs {
			chunks = append(chunks, c)
			texts = append(texts, c.Text)
		}
	}
	if len(chunks) == 0 {
		return nil, nil, ragerr.New(ragerr.CodeSourceEmpty, "source documents produced no chunks", ragerr.Field("documents", len(docs)))
	}

	emb := m.fresh()
	if err := emb.Prepare(texts); err != nil {
		return nil, nil, ragerr.Wrap(err, ragerr.CodeEmbeddingFailure, "preparing embedder")
	}
	vectors, err := m.embedAll(ctx, emb, texts)
	if err != nil {
		return nil, nil, err
	}

	dim := emb.Dimension()
	if dim == 0 {
		dim = len(vectors[0])
	}
	manifest := vectorstore.Manifest{
		Version:   vectorstore.ManifestVersion,
		Embedder:  emb.Name(),
		Dimension: dim,
		Chunks:    len(chunks),
		BuiltAt:   time.Now().UTC(),
	}
	if s, ok := emb.(embedding.Stateful); ok {
		state, err := s.MarshalState()
		if err != nil {
			return nil, nil, ragerr.Wrap(err, ragerr.CodeIndexBuildFailure, "saving embedder state")
		}
		manifest.EmbedderState = state
	}
	if fp, err := m.fingerprint(); err != nil {
		m.logger.Warn("could not fingerprint source documents", "error", err)
	} else {
		manifest.Fingerprint = fp
	}

	idx, err := m.artifact.Write(ctx, manifest, chunks, vectors)
	if err != nil {
		return nil, nil, ragerr.Wrap(err, ragerr.CodeIndexBuildFailure, "persisting index", ragerr.FieldPath(path))
	}
	m.logger.Info("index built",
		"path", path,
		"documents", len(docs),
		"chunks", len(chunks),
		"dimension", dim,
		"duration", time.Since(start),
	)
	return idx, emb, nil
}

func (m *Manager) embedAll(ctx context.Context, emb embedding.Embedder, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := emb.Embed(gctx, text)
			if err != nil {
				return ragerr.Wrap(err, ragerr.CodeEmbeddingFailure, "embedding chunk", ragerr.Field("chunk", i))
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, v := range vectors {
		if len(v) != len(vectors[0]) {
			return nil, ragerr.New(ragerr.CodeEmbeddingFailure, "embedding dimensions differ",
				ragerr.Field("chunk", i), ragerr.Field("dimension", len(v)), ragerr.Field("want", len(vectors[0])))
		}
	}
	return vectors, nil
}
