// Package flat implements an exact in-memory vector.Index persisted as a
// single little-endian binary file.
package flat

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/rasaya1/OCRFastAPI/pkg/vector"
)

const (
	// ArtifactName is the file name of a persisted flat index.
	ArtifactName = "index.bin"

	magic   = "OFVI"
	version = uint32(1)
)

// Index keeps all vectors in one row-major slice and scans it on search.
type Index struct {
	mu   sync.RWMutex
	dims int
	data []float32
}

// New creates an empty flat index.
func New(dims int) (*Index, error) {
	if dims <= 0 {
		return nil, vector.ErrInvalidDimensions
	}
	return &Index{dims: dims}, nil
}

func (x *Index) Dimensions() int {
	return x.dims
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.data) / x.dims
}

func (x *Index) Add(_ context.Context, vec []float32) (int, error) {
	if len(vec) != x.dims {
		return 0, fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(vec), x.dims)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	pos := len(x.data) / x.dims
	x.data = append(x.data, vec...)
	return pos, nil
}

func (x *Index) Truncate(_ context.Context, n int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if n < 0 || n*x.dims > len(x.data) {
		return fmt.Errorf("truncate to %d: index holds %d vectors", n, len(x.data)/x.dims)
	}
	x.data = x.data[:n*x.dims]
	return nil
}

func (x *Index) Search(_ context.Context, query []float32, k int) ([]vector.Hit, error) {
	if len(query) != x.dims {
		return nil, fmt.Errorf("%w: got %d, index has %d", vector.ErrDimensionMismatch, len(query), x.dims)
	}

	x.mu.RLock()
	n := len(x.data) / x.dims
	hits := make([]vector.Hit, n)
	for i := range n {
		row := x.data[i*x.dims : (i+1)*x.dims]
		hits[i] = vector.Hit{Position: i, Score: vector.Dot(query, row)}
	}
	x.mu.RUnlock()

	vector.SortHits(hits)
	if k < len(hits) {
		hits = hits[:max(k, 0)]
	}
	return hits, nil
}

// Save writes the header (magic, version, dims, count) followed by the rows.
func (x *Index) Save(_ context.Context, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}

	x.mu.RLock()
	err = x.encode(f)
	x.mu.RUnlock()
	if err != nil {
		f.Close()
		return fmt.Errorf("writing index: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing index: %w", err)
	}
	return f.Close()
}

func (x *Index) encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}

	header := []any{version, uint32(x.dims), uint64(len(x.data) / x.dims)}
	for _, h := range header {
		if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
			return err
		}
	}

	buf := make([]byte, 4)
	for _, f := range x.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads a file written by Save.
func Load(_ context.Context, path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil || string(head) != magic {
		return nil, fmt.Errorf("%w: bad magic in %s", vector.ErrCorruptIndex, path)
	}

	var (
		ver   uint32
		dims  uint32
		count uint64
	)
	for _, v := range []any{&ver, &dims, &count} {
		if err := binary.Read(br, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", vector.ErrCorruptIndex, err)
		}
	}
	if ver != version {
		return nil, fmt.Errorf("%w: unsupported version %d", vector.ErrCorruptIndex, ver)
	}
	if dims == 0 {
		return nil, fmt.Errorf("%w: zero dimensions", vector.ErrCorruptIndex)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	headerSize := int64(len(magic) + 4 + 4 + 8)
	if want := headerSize + int64(count)*int64(dims)*4; info.Size() != want {
		return nil, fmt.Errorf("%w: expected %d bytes, found %d", vector.ErrCorruptIndex, want, info.Size())
	}

	data := make([]float32, int(count)*int(dims))
	buf := make([]byte, 4)
	for i := range data {
		if _, err := io.ReadFull(br, buf); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: truncated rows", vector.ErrCorruptIndex)
			}
			return nil, err
		}
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
	}

	return &Index{dims: int(dims), data: data}, nil
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

// Backend creates and loads flat indexes.
type Backend struct{}

func (Backend) Name() string     { return "flat" }
func (Backend) Artifact() string { return ArtifactName }

func (Backend) New(dims int) (vector.Index, error) {
	return New(dims)
}

func (Backend) Load(ctx context.Context, path string) (vector.Index, error) {
	return Load(ctx, path)
}

var (
	_ vector.Index   = (*Index)(nil)
	_ vector.Backend = Backend{}
)
