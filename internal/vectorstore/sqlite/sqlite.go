// Package sqlite persists the vector index in a single SQLite database using
// the sqlite-vec vec0 virtual table for nearest-neighbour search.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"askrag/internal/domain"
	"askrag/internal/embedding"
	"askrag/internal/vectorstore"
)

func init() {
	sqlite_vec.Auto()
}

var (
	_ vectorstore.Artifact = (*Artifact)(nil)
	_ vectorstore.Index    = (*Index)(nil)
)

// Artifact stores the index in the database file at path.
type Artifact struct {
	path string
}

func New(path string) *Artifact { return &Artifact{path: path} }

func (a *Artifact) Path() string { return a.path }

func (a *Artifact) Exists() (bool, error) {
	info, err := os.Stat(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", a.path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory, expected a sqlite database", a.path)
	}
	return true, nil
}

// Write builds the database next to path and renames it into place once
// every row is committed.
func (a *Artifact) Write(ctx context.Context, m vectorstore.Manifest, chunks []domain.Chunk, vectors [][]float64) (vectorstore.Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if m.Dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", m.Dimension)
	}
	tmp := a.path + ".building"
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("removing stale %s: %w", tmp, err)
	}

	db, err := openDB(tmp)
	if err != nil {
		return nil, err
	}
	if err := populate(ctx, db, m, chunks, vectors); err != nil {
		_ = db.Close()
		_ = os.Remove(tmp)
		return nil, err
	}
	if err := db.Close(); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return nil, fmt.Errorf("renaming %s: %w", tmp, err)
	}
	idx, _, err := a.Open(ctx)
	return idx, err
}

func (a *Artifact) Open(ctx context.Context) (vectorstore.Index, vectorstore.Manifest, error) {
	db, err := openDB(a.path)
	if err != nil {
		return nil, vectorstore.Manifest{}, err
	}
	var raw string
	if err := db.QueryRowContext(ctx, `SELECT data FROM manifest WHERE id = 1`).Scan(&raw); err != nil {
		_ = db.Close()
		return nil, vectorstore.Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m vectorstore.Manifest
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		_ = db.Close()
		return nil, vectorstore.Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.Version != vectorstore.ManifestVersion {
		_ = db.Close()
		return nil, m, fmt.Errorf("unsupported index version %d", m.Version)
	}
	return &Index{db: db, dimension: m.Dimension, count: m.Chunks}, m, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	return db, nil
}

func populate(ctx context.Context, db *sql.DB, m vectorstore.Manifest, chunks []domain.Chunk, vectors [][]float64) error {
	const chunksDDL = `
CREATE TABLE chunks (
	seq         INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	document_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	text        TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	zero        INTEGER NOT NULL DEFAULT 0
)`
	if _, err := db.ExecContext(ctx, chunksDDL); err != nil {
		return fmt.Errorf("creating chunks table: %w", err)
	}
	vecDDL := fmt.Sprintf(`CREATE VIRTUAL TABLE chunks_vec USING vec0(embedding float[%d])`, m.Dimension)
	if _, err := db.ExecContext(ctx, vecDDL); err != nil {
		return fmt.Errorf("creating chunks_vec virtual table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE manifest (id INTEGER PRIMARY KEY, data TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("creating manifest table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, c := range chunks {
		v := vectors[i]
		if len(v) != m.Dimension {
			return fmt.Errorf("chunk %s: vector dimension %d, want %d", c.ID, len(v), m.Dimension)
		}
		seq := i + 1
		zero := embedding.IsZero(v)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks(seq, id, document_id, source, text, idx, zero) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			seq, c.ID, c.DocumentID, c.Source, c.Text, c.Index, zero,
		); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
		// Zero vectors have no direction; they are served from the chunks
		// table with score 0 instead of being indexed.
		if zero {
			continue
		}
		blob, err := sqlite_vec.SerializeFloat32(normalize(v))
		if err != nil {
			return fmt.Errorf("serializing embedding %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks_vec(rowid, embedding) VALUES (?, ?)`, seq, blob); err != nil {
			return fmt.Errorf("inserting vector %s: %w", c.ID, err)
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO manifest(id, data) VALUES (1, ?)`, string(data)); err != nil {
		return fmt.Errorf("inserting manifest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// Index answers queries from an opened database. Vectors are stored unit
// length so the L2 distance d maps to cosine similarity 1 - d²/2.
type Index struct {
	db        *sql.DB
	dimension int
	count     int
}

type hit struct {
	seq    int64
	score  float64
	result domain.SearchResult
}

func (x *Index) Len() int { return x.count }

func (x *Index) Close() error { return x.db.Close() }

func (x *Index) Search(ctx context.Context, vector []float64, topK int) ([]domain.SearchResult, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query dimension mismatch: %d != %d", len(vector), x.dimension)
	}
	if topK <= 0 {
		topK = 5
	}

	var hits []hit
	if !embedding.IsZero(vector) {
		blob, err := sqlite_vec.SerializeFloat32(normalize(vector))
		if err != nil {
			return nil, fmt.Errorf("serializing query vector: %w", err)
		}
		const q = `SELECT v.rowid, v.distance, c.id, c.document_id, c.source, c.text, c.idx
FROM chunks_vec v
JOIN chunks c ON c.seq = v.rowid
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`
		hits, err = x.query(ctx, q, func(d float64) float64 { return 1 - d*d/2 }, blob, topK)
		if err != nil {
			return nil, fmt.Errorf("searching vectors: %w", err)
		}
	}
	if len(hits) < topK {
		const q = `SELECT seq, 0.0, id, document_id, source, text, idx
FROM chunks
WHERE zero = 1 OR ?
ORDER BY seq
LIMIT ?`
		// A zero query has no direction, so every chunk scores 0.
		padding, err := x.query(ctx, q, func(float64) float64 { return 0 }, embedding.IsZero(vector), topK)
		if err != nil {
			return nil, fmt.Errorf("listing unindexed chunks: %w", err)
		}
		hits = append(hits, padding...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		h.result.Score = h.score
		out[i] = h.result
	}
	return out, nil
}

func (x *Index) query(ctx context.Context, q string, score func(float64) float64, args ...any) ([]hit, error) {
	rows, err := x.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []hit
	for rows.Next() {
		var (
			h        hit
			distance float64
			c        domain.Chunk
		)
		if err := rows.Scan(&h.seq, &distance, &c.ID, &c.DocumentID, &c.Source, &c.Text, &c.Index); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		h.score = score(distance)
		h.result = domain.SearchResult{Chunk: c}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func normalize(v []float64) []float32 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x / n)
	}
	return out
}
