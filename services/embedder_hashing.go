package services

import (
	"context"
	"fmt"
	"hash/fnv"
)

// HashingEmbedder is a deterministic local embedder. Each content word is
// hashed to a signed bucket, so texts sharing no words are orthogonal. It
// needs no model server and is used offline and in tests.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder creates an embedder producing vectors of the given size.
func NewHashingEmbedder(dimension int) (*HashingEmbedder, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid hashing dimension %d", dimension)
	}
	return &HashingEmbedder{dimension: dimension}, nil
}

func (e *HashingEmbedder) Name() string   { return "hashing" }
func (e *HashingEmbedder) Dimension() int { return e.dimension }

func (e *HashingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vector(text)
	}
	return vectors, nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimension)
	for _, word := range contentWords(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		sum := h.Sum32()
		sign := float32(1)
		if sum&(1<<31) != 0 {
			sign = -1
		}
		v[int(sum%uint32(e.dimension))] += sign
	}
	return v
}
