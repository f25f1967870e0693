// Package sqlitevec provides a vector.Index backed by a sqlite-vec vec0 table.
//
// The live index is an in-memory database. Save snapshots it into a SQLite
// file with VACUUM INTO, and Load copies a snapshot back into memory.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rasaya1/OCRFastAPI/pkg/vector"
)

// ArtifactName is the file name of a persisted sqlite-vec index.
const ArtifactName = "index.sqlite"

// Index implements vector.Index using SQLite with sqlite-vec.
// Positions map to vec0 rowids as rowid = position + 1.
type Index struct {
	mu     sync.Mutex
	db     *sql.DB
	dims   int
	count  int
	logger *slog.Logger
}

// Config holds configuration for the sqlite-vec index.
type Config struct {
	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions int

	Logger *slog.Logger
}

// New creates an empty in-memory index.
func New(c Config) (*Index, error) {
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec: %w", vector.ErrInvalidDimensions)
	}

	idx, err := openMemory(c.Logger)
	if err != nil {
		return nil, err
	}

	if err := idx.createSchema(c.Dimensions); err != nil {
		idx.db.Close()
		return nil, err
	}

	return idx, nil
}

func openMemory(logger *slog.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to ":memory:" is a distinct database.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Debug("sqlite-vec index opened", "vec_version", vecVersion)

	return &Index{db: db, logger: logger}, nil
}

func (x *Index) createSchema(dims int) error {
	if _, err := x.db.Exec(`CREATE TABLE vec_meta (dimensions INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("creating meta table: %w", err)
	}
	if _, err := x.db.Exec(`INSERT INTO vec_meta(dimensions) VALUES (?)`, dims); err != nil {
		return fmt.Errorf("writing meta: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE vec_index USING vec0(embedding float[%d] distance_metric=cosine)`,
		dims,
	)
	if _, err := x.db.Exec(createVec); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}

	x.dims = dims
	return nil
}

// Load copies a snapshot written by Save into a new in-memory index.
func Load(ctx context.Context, path string, logger *slog.Logger) (*Index, error) {
	idx, err := openMemory(logger)
	if err != nil {
		return nil, err
	}

	if err := idx.restore(ctx, path); err != nil {
		idx.db.Close()
		return nil, err
	}

	idx.logger.Debug("sqlite-vec index loaded", "path", path, "count", idx.count, "dimensions", idx.dims)
	return idx, nil
}

func (x *Index) restore(ctx context.Context, path string) error {
	if _, err := x.db.ExecContext(ctx, `ATTACH DATABASE ? AS snapshot`, path); err != nil {
		return fmt.Errorf("%w: attaching %s: %v", vector.ErrCorruptIndex, path, err)
	}
	defer x.db.ExecContext(ctx, `DETACH DATABASE snapshot`)

	var dims int
	if err := x.db.QueryRowContext(ctx, `SELECT dimensions FROM snapshot.vec_meta`).Scan(&dims); err != nil {
		return fmt.Errorf("%w: reading dimensions: %v", vector.ErrCorruptIndex, err)
	}
	if dims <= 0 {
		return fmt.Errorf("%w: dimensions %d", vector.ErrCorruptIndex, dims)
	}

	if err := x.createSchema(dims); err != nil {
		return err
	}

	if _, err := x.db.ExecContext(ctx,
		`INSERT INTO vec_index(rowid, embedding) SELECT rowid, embedding FROM snapshot.vec_index ORDER BY rowid`,
	); err != nil {
		return fmt.Errorf("%w: copying vectors: %v", vector.ErrCorruptIndex, err)
	}

	var count, maxRow int
	if err := x.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(rowid), 0) FROM vec_index`,
	).Scan(&count, &maxRow); err != nil {
		return fmt.Errorf("counting vectors: %w", err)
	}
	if count != maxRow {
		return fmt.Errorf("%w: %d vectors but highest position is %d", vector.ErrCorruptIndex, count, maxRow-1)
	}

	x.count = count
	return nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func (x *Index) Dimensions() int {
	return x.dims
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.count
}

func (x *Index) Add(ctx context.Context, vec []float32) (int, error) {
	if len(vec) != x.dims {
		return 0, fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(vec), x.dims)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	pos := x.count
	if _, err := x.db.ExecContext(ctx,
		`INSERT INTO vec_index(rowid, embedding) VALUES (?, ?)`,
		pos+1, serializeFloat32(vec),
	); err != nil {
		return 0, fmt.Errorf("inserting vector %d: %w", pos, err)
	}

	x.count++
	return pos, nil
}

func (x *Index) Truncate(ctx context.Context, n int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if n < 0 || n > x.count {
		return fmt.Errorf("truncate to %d: index holds %d vectors", n, x.count)
	}
	if _, err := x.db.ExecContext(ctx, `DELETE FROM vec_index WHERE rowid > ?`, n); err != nil {
		return fmt.Errorf("truncating vectors: %w", err)
	}

	x.count = n
	return nil
}

// Search runs a vec0 KNN query over every stored vector. Cosine distance is
// converted back to similarity as 1 - distance. sqlite-vec yields a NULL
// distance when either side has zero norm; those rows score 0, as a zero dot
// product does in the flat index.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(query), x.dims)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	k = min(k, x.count)
	if k <= 0 {
		return nil, nil
	}
	// NULL distances sort ahead of real ones, so the KNN limit spans the
	// whole table and the top k is cut after scoring.
	n := x.count

	rows, err := x.db.QueryContext(ctx, `
		SELECT rowid, distance
		FROM vec_index
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance
	`, serializeFloat32(query), n)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]vector.Hit, 0, n)
	for rows.Next() {
		var rowID int64
		var distance sql.NullFloat64
		if err := rows.Scan(&rowID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		var score float32
		if distance.Valid && !math.IsNaN(distance.Float64) {
			score = float32(1 - distance.Float64)
		}
		hits = append(hits, vector.Hit{
			Position: int(rowID) - 1,
			Score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	vector.SortHits(hits)
	if k < len(hits) {
		hits = hits[:k]
	}

	x.logger.Debug("queried sqlite-vec", "results", len(hits))
	return hits, nil
}

// Save snapshots the in-memory database into path. path must not exist or
// must be an empty file.
func (x *Index) Save(ctx context.Context, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("snapshotting index to %s: %w", path, err)
	}
	return nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.db.Close()
}

// Backend creates and loads sqlite-vec indexes.
type Backend struct {
	Logger *slog.Logger
}

func (Backend) Name() string     { return "sqlite-vec" }
func (Backend) Artifact() string { return ArtifactName }

func (b Backend) New(dims int) (vector.Index, error) {
	return New(Config{Dimensions: dims, Logger: b.Logger})
}

func (b Backend) Load(ctx context.Context, path string) (vector.Index, error) {
	return Load(ctx, path, b.Logger)
}

var (
	_ vector.Index   = (*Index)(nil)
	_ vector.Backend = Backend{}
)
