// Package vectorstore holds the vector indexes passages are retrieved from.
//
// Every backend reports SearchResult.Score as cosine similarity in [-1, 1],
// best first, so that confidence scoring sees one scale regardless of where
// the vectors live. Distance keeps the backend's native metric.
package vectorstore

import (
	"context"
	"errors"
	"math"

	"github.com/DeadBoTt-exe/Document-RAG/models"
)

var (
	// ErrCollectionNotFound means the persistent collection has not been built
	// by the offline indexer yet.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch means a vector does not have the index dimension.
	// It is a configuration error, not a per-request one.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch means Add was given a different number of vectors and
	// passages.
	ErrLengthMismatch = errors.New("vectors and passages length mismatch")
)

// SearchResult is one retrieved passage.
type SearchResult struct {
	Passage  models.Passage
	Score    float64
	Distance float64
}

// Index stores (vector, passage) pairs and answers nearest-neighbour queries.
type Index interface {
	Name() string
	Add(ctx context.Context, vectors [][]float32, passages []models.Passage) error
	Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
}

// SourceDeleter is implemented by indexes that can drop every passage of one
// source file, which the indexer needs to re-index changed files.
type SourceDeleter interface {
	DeleteSource(ctx context.Context, sourceFile string) error
}

// Normalize returns a unit-length copy of v. The zero vector is returned
// unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		copy(out, v)
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// Payload keys used by the persistent backends.
const (
	keySourceFile = "source_file"
	keySection    = "section"
	keyPage       = "page"
	keyService    = "service"
	keyText       = "text"
)

// passagePayload flattens passage metadata into the scalar map persistent
// backends store next to each vector.
func passagePayload(p models.Passage) map[string]any {
	payload := map[string]any{
		keySourceFile: p.Metadata.SourceFile,
		keyService:    p.Metadata.Service,
	}
	if p.Metadata.Section != "" {
		payload[keySection] = p.Metadata.Section
	}
	if p.Metadata.Page > 0 {
		payload[keyPage] = p.Metadata.Page
	}
	return payload
}

// passageFromPayload rebuilds a passage from stored fields. ok is false when
// the entry lacks the text or provenance needed to use and cite it.
func passageFromPayload(id, text string, payload map[string]any) (models.Passage, bool) {
	p := models.Passage{ID: id, Text: text}
	if text == "" {
		if s, isStr := payload[keyText].(string); isStr {
			p.Text = s
		}
	}
	p.Metadata.SourceFile, _ = payload[keySourceFile].(string)
	p.Metadata.Section, _ = payload[keySection].(string)
	p.Metadata.Service, _ = payload[keyService].(string)
	switch page := payload[keyPage].(type) {
	case int:
		p.Metadata.Page = page
	case int64:
		p.Metadata.Page = int(page)
	case float64:
		p.Metadata.Page = int(page)
	}
	return p, p.Valid()
}
