package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder embeds text with the OpenAI embeddings endpoint, one
// request per batch.
type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates the embedder. Without a configured dimension the
// model's native size is used for the text-embedding-3 family and probed for
// anything else.
func NewOpenAIEmbedder(ctx context.Context, apiKey, model string, dimension int) (*OpenAIEmbedder, error) {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	e := &OpenAIEmbedder{
		client:    openai.NewClient(apiKey),
		model:     model,
		dimension: dimension,
	}
	if e.dimension == 0 {
		switch openai.EmbeddingModel(model) {
		case openai.SmallEmbedding3:
			e.dimension = 1536
		case openai.LargeEmbedding3:
			e.dimension = 3072
		default:
			dim, err := probeDimension(ctx, e.embed)
			if err != nil {
				return nil, err
			}
			e.dimension = dim
		}
	}
	return e, nil
}

func (e *OpenAIEmbedder) Name() string   { return "openai" }
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(e.Name(), e.dimension, texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}
	if e.dimension > 0 && openai.EmbeddingModel(e.model) != openai.AdaEmbeddingV2 {
		req.Dimensions = e.dimension
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embedding call failed: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned embedding for unknown index %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
