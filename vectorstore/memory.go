package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/DeadBoTt-exe/Document-RAG/models"
	log "github.com/sirupsen/logrus"
)

// MemoryIndex is an exact flat index kept in process memory. Vectors are
// stored unit-normalised and ranked by squared Euclidean distance, so
// Score = 1 - Distance/2 is their cosine similarity. A zero vector on either
// side is treated as orthogonal (Distance 2, Score 0).
//
// It is rebuilt from the documents on every start; writes take the write
// lock, searches share the read lock.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	passages  []models.Passage
}

// NewMemoryIndex creates an empty index for vectors of the given dimension.
func NewMemoryIndex(dimension int) (*MemoryIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dimension)
	}
	return &MemoryIndex{dimension: dimension}, nil
}

func (s *MemoryIndex) Name() string { return "memory" }

// Dimension returns the vector size the index accepts.
func (s *MemoryIndex) Dimension() int { return s.dimension }

func (s *MemoryIndex) Add(_ context.Context, vectors [][]float32, passages []models.Passage) error {
	if len(vectors) != len(passages) {
		return ErrLengthMismatch
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: entry %d has %d, index has %d", ErrDimensionMismatch, i, len(v), s.dimension)
		}
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		normalized[i] = Normalize(v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = append(s.vectors, normalized...)
	s.passages = append(s.passages, passages...)
	return nil
}

func (s *MemoryIndex) Search(_ context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), s.dimension)
	}
	q := Normalize(query)
	zeroQuery := isZero(q)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.vectors) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(s.vectors))
	for i, v := range s.vectors {
		if !s.passages[i].Valid() {
			log.WithField("passage_id", s.passages[i].ID).Warn("VECTORSTORE: skipping malformed passage")
			continue
		}
		d := 2.0
		if !zeroQuery && !isZero(v) {
			d = squaredL2(q, v)
		}
		results = append(results, SearchResult{
			Passage:  s.passages[i],
			Score:    1 - d/2,
			Distance: d,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryIndex) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

// DeleteSource removes every entry whose passage came from sourceFile.
func (s *MemoryIndex) DeleteSource(_ context.Context, sourceFile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keptVectors := s.vectors[:0]
	keptPassages := s.passages[:0]
	for i, p := range s.passages {
		if p.Metadata.SourceFile == sourceFile {
			continue
		}
		keptVectors = append(keptVectors, s.vectors[i])
		keptPassages = append(keptPassages, p)
	}
	s.vectors = keptVectors
	s.passages = keptPassages
	return nil
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
