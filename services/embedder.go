package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/vectorstore"
)

// ErrEmptyBatch is returned when an embedder is asked to embed nothing.
var ErrEmptyBatch = errors.New("empty embedding batch")

// Embedder maps text to vectors of a fixed dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder builds the embedder selected in cfg. Providers whose dimension
// is not configured are probed once with a short input.
func NewEmbedder(ctx context.Context, cfg *config.AppConfig) (Embedder, error) {
	e := cfg.Embedder
	switch e.Provider {
	case "ollama":
		return NewOllamaEmbedder(ctx, e.OllamaURL, e.Model, e.Dimension, e.Concurrency)
	case "gemini":
		return NewGeminiEmbedder(ctx, cfg.LLM.GeminiAPIKey, e.Model, e.Dimension)
	case "openai":
		return NewOpenAIEmbedder(ctx, e.OpenAIAPIKey, e.Model, e.Dimension)
	case "hashing":
		return NewHashingEmbedder(e.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", e.Provider)
	}
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%s embedder returned %d vectors for one text", e.Name(), len(vectors))
	}
	return vectors[0], nil
}

// probeDimension embeds a fixed string to learn the size of the vectors a
// remote model produces.
func probeDimension(ctx context.Context, embed func(context.Context, []string) ([][]float32, error)) (int, error) {
	vectors, err := embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, fmt.Errorf("could not probe embedding dimension: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return 0, errors.New("could not probe embedding dimension: empty vector")
	}
	return len(vectors[0]), nil
}

func checkDimensions(name string, dimension int, texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%s embedder returned %d vectors for %d texts", name, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: %s embedder returned %d for vector %d, want %d", vectorstore.ErrDimensionMismatch, name, len(v), i, dimension)
		}
	}
	return nil
}
