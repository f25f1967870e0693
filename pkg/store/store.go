// Package store keeps the document corpus: one embedding per document in a
// similarity index and, at the same position, that document's metadata.
//
// Index and metadata are append-only and always have the same length. Every
// position in the index names exactly one metadata record.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream/nop"
	"github.com/rasaya1/OCRFastAPI/pkg/utils"
	"github.com/rasaya1/OCRFastAPI/pkg/vector"
	"github.com/rasaya1/OCRFastAPI/pkg/vector/flat"
)

const (
	// MetadataArtifact is the file name of the persisted metadata list.
	MetadataArtifact = "metadata.json"

	// PreviewLength is the number of characters kept in TextPreview.
	PreviewLength = 200
)

// Config holds DocumentStore configuration.
type Config struct {
	// Dir holds the index and metadata artifacts. Created if missing.
	Dir string

	// Backend builds and loads the similarity index. Defaults to flat.
	Backend vector.Backend

	// Embedder turns document and query text into vectors.
	Embedder embeddings.Embedder

	// Dimensions fixes the embedding size up front. Zero takes the
	// embedder's Dimensions, and when that is zero too, the size of the
	// first embedding.
	Dimensions int

	// Rules overrides the keyword classifier rules.
	Rules []doctype.Rule

	// MinClassifyScore is the lowest top-1 similarity Classify accepts before
	// falling back to keyword rules. Nil accepts any hit.
	MinClassifyScore *float64

	// Publisher receives an event after each successful Add.
	Publisher eventstream.Publisher

	Logger *slog.Logger
}

// Store is the DocumentStore. It is safe for concurrent use: adds are
// serialized and searches run under a shared lock.
type Store struct {
	mu       sync.RWMutex
	index    vector.Index
	metadata []Metadata

	dir       string
	backend   vector.Backend
	embedder  embeddings.Embedder
	dims      int
	rules     []doctype.Rule
	minScore  float64
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// Open creates the store directory if needed and loads a previously saved
// store from it. Both artifacts must be present to load; if only one is, the
// store starts empty and a warning is logged.
func Open(ctx context.Context, c Config) (*Store, error) {
	if c.Embedder == nil {
		return nil, ErrNoEmbedder
	}
	if c.Dir == "" {
		return nil, errors.New("store directory is required")
	}

	s := &Store{
		dir:       c.Dir,
		backend:   c.Backend,
		embedder:  c.Embedder,
		dims:      c.Dimensions,
		rules:     c.Rules,
		minScore:  math.Inf(-1),
		publisher: c.Publisher,
		logger:    c.Logger,
	}
	if s.dims == 0 {
		s.dims = int(c.Embedder.Dimensions())
	}
	if c.MinClassifyScore != nil {
		s.minScore = *c.MinClassifyScore
	}
	if s.backend == nil {
		s.backend = flat.Backend{}
	}
	if s.rules == nil {
		s.rules = doctype.Rules
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.publisher == nil {
		s.publisher = nop.NewPublisher(s.logger)
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", c.Dir, err)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}

	if s.index == nil && c.Dimensions > 0 {
		idx, err := s.backend.New(s.dims)
		if err != nil {
			return nil, fmt.Errorf("creating index: %w", err)
		}
		s.index = idx
	}

	s.logger.Info("document store opened",
		"dir", s.dir,
		"backend", s.backend.Name(),
		"documents", len(s.metadata),
	)
	return s, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, s.backend.Artifact())
}

func (s *Store) metadataPath() string {
	return filepath.Join(s.dir, MetadataArtifact)
}

func (s *Store) load(ctx context.Context) error {
	indexExists := fileExists(s.indexPath())
	metaExists := fileExists(s.metadataPath())

	switch {
	case !indexExists && !metaExists:
		return nil
	case indexExists != metaExists:
		s.logger.Warn("store artifacts incomplete, starting empty",
			"index_present", indexExists,
			"metadata_present", metaExists,
			"dir", s.dir,
		)
		return nil
	}

	idx, err := s.backend.Load(ctx, s.indexPath())
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}

	meta, err := readMetadata(s.metadataPath())
	if err != nil {
		idx.Close()
		return err
	}

	if idx.Len() != len(meta) {
		idx.Close()
		return fmt.Errorf("%w: index has %d vectors, metadata has %d records", ErrInconsistent, idx.Len(), len(meta))
	}

	if s.dims > 0 && idx.Dimensions() != s.dims {
		idx.Close()
		return fmt.Errorf("%w: stored index has %d dimensions, configured %d", vector.ErrDimensionMismatch, idx.Dimensions(), s.dims)
	}

	s.index = idx
	s.metadata = meta
	s.dims = idx.Dimensions()
	return nil
}

// Add embeds text, classifies it and appends it to the store. It returns the
// new document's position.
func (s *Store) Add(ctx context.Context, text, filePath string, confidence float64) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyText
	}

	raw, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("embedding document: %w", err)
	}
	vec := vector.Normalize(raw)

	meta := Metadata{
		ID:              uuid.NewString(),
		FilePath:        filePath,
		DocumentType:    doctype.DetectWith(s.rules, text),
		ConfidenceScore: confidence,
		ProcessedDate:   time.Now().UTC(),
		TextPreview:     utils.Truncate(text, PreviewLength),
	}

	pos, err := s.append(ctx, vec, meta)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("document added",
		"position", pos,
		"file_path", filePath,
		"document_type", meta.DocumentType,
	)

	event := eventstream.NewDocumentIndexedEvent(
		eventstream.EventSource{Component: "store"},
		eventstream.DocumentRecord{
			ID:              meta.ID,
			Position:        pos,
			FilePath:        meta.FilePath,
			DocumentType:    string(meta.DocumentType),
			ConfidenceScore: meta.ConfidenceScore,
			ProcessedDate:   meta.ProcessedDate,
		},
	)
	if err := s.publisher.PublishDocument(ctx, event); err != nil {
		s.logger.Warn("failed to publish document event", "position", pos, "error", err)
	}

	return pos, nil
}

func (s *Store) append(ctx context.Context, vec []float32, meta Metadata) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		if s.dims > 0 && len(vec) != s.dims {
			return 0, fmt.Errorf("%w: embedding has %d dimensions, store has %d", vector.ErrDimensionMismatch, len(vec), s.dims)
		}
		idx, err := s.backend.New(len(vec))
		if err != nil {
			return 0, fmt.Errorf("creating index: %w", err)
		}
		s.index = idx
		s.dims = len(vec)
	}

	if len(vec) != s.index.Dimensions() {
		return 0, fmt.Errorf("%w: embedding has %d dimensions, store has %d", vector.ErrDimensionMismatch, len(vec), s.index.Dimensions())
	}

	pos, err := s.index.Add(ctx, vec)
	if err != nil {
		return 0, fmt.Errorf("adding to index: %w", err)
	}

	if pos != len(s.metadata) {
		if terr := s.index.Truncate(ctx, len(s.metadata)); terr != nil {
			s.logger.Error("failed to roll back index append", "error", terr)
		}
		return 0, fmt.Errorf("%w: index returned position %d for record %d", ErrInconsistent, pos, len(s.metadata))
	}

	s.metadata = append(s.metadata, meta)
	return pos, nil
}

// SearchSimilar returns up to k documents most similar to query, ordered by
// score descending and then by position ascending. An empty store or k <= 0
// yields an empty result.
func (s *Store) SearchSimilar(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || s.Len() == 0 {
		return []Result{}, nil
	}

	raw, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	q := vector.Normalize(raw)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.metadata)
	if n == 0 {
		return []Result{}, nil
	}
	if len(q) != s.index.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d dimensions, store has %d", vector.ErrDimensionMismatch, len(q), s.index.Dimensions())
	}

	hits, err := s.index.Search(ctx, q, min(k, n))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	kept := make([]vector.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= n {
			continue
		}
		kept = append(kept, h)
	}
	vector.SortHits(kept)

	results := make([]Result, 0, len(kept))
	for _, h := range kept {
		results = append(results, Result{
			Metadata: s.metadata[h.Position],
			Position: h.Position,
			Score:    h.Score,
		})
	}
	return results, nil
}

// Len is the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.metadata)
}

// Get returns the metadata at position.
func (s *Store) Get(position int) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 0 || position >= len(s.metadata) {
		return Metadata{}, false
	}
	return s.metadata[position], true
}

// DocumentsByType returns the metadata of every document of type t in
// position order.
func (s *Store) DocumentsByType(t doctype.Type) []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Metadata{}
	for _, m := range s.metadata {
		if m.DocumentType == t {
			out = append(out, m)
		}
	}
	return out
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make(map[doctype.Type]int)
	for _, m := range s.metadata {
		types[m.DocumentType]++
	}

	dims := s.dims
	if s.index != nil {
		dims = s.index.Dimensions()
	}

	return Stats{
		TotalDocuments:     len(s.metadata),
		DocumentTypes:      types,
		EmbeddingDimension: dims,
	}
}

// Save writes the index and then the metadata, each to a temporary file in
// the store directory that is renamed over the previous artifact. A store
// that has never created an index has nothing to save.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		s.logger.Debug("store has no index yet, nothing to save", "dir", s.dir)
		return nil
	}

	if err := writeAtomic(s.indexPath(), func(tmp string) error {
		return s.index.Save(ctx, tmp)
	}); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	if err := writeAtomic(s.metadataPath(), func(tmp string) error {
		return writeMetadata(tmp, s.metadata)
	}); err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}

	s.logger.Info("document store saved", "dir", s.dir, "documents", len(s.metadata))
	return nil
}

// Close releases the index and the embedder.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	errs = append(errs, s.embedder.Close(), s.publisher.Close())
	return errors.Join(errs...)
}

// writeAtomic has write fill a fresh temporary file next to path and renames
// it into place. The temporary file is removed on failure.
func writeAtomic(path string, write func(tmp string) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
