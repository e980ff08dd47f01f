package vectorstore

import (
	"context"
	"testing"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCollection answers the calls made while opening a collection. Any
// other method panics through the nil embedded interface.
type fakeCollection struct {
	chromago.Collection
	dimension int
	stored    []embeddings.Embedding
	gets      int
}

func (f *fakeCollection) Name() string   { return "docs" }
func (f *fakeCollection) Dimension() int { return f.dimension }

func (f *fakeCollection) Count(context.Context) (int, error) { return len(f.stored), nil }

func (f *fakeCollection) Get(context.Context, ...chromago.CollectionGetOption) (chromago.GetResult, error) {
	f.gets++
	return &chromago.GetResultImpl{Embeddings: f.stored[:1]}, nil
}

func TestCheckChromaDimension(t *testing.T) {
	ctx := context.Background()

	t.Run("recorded dimension", func(t *testing.T) {
		c := &fakeCollection{dimension: 768}
		assert.NoError(t, checkChromaDimension(ctx, c, 768))
		assert.ErrorIs(t, checkChromaDimension(ctx, c, 512), ErrDimensionMismatch)
		assert.Zero(t, c.gets)
	})

	t.Run("stored embedding", func(t *testing.T) {
		c := &fakeCollection{stored: []embeddings.Embedding{
			embeddings.NewEmbeddingFromFloat32([]float32{1, 0, 0, 0}),
		}}
		assert.NoError(t, checkChromaDimension(ctx, c, 4))

		err := checkChromaDimension(ctx, c, 8)
		require.ErrorIs(t, err, ErrDimensionMismatch)
		assert.Contains(t, err.Error(), "4-dimensional")
		assert.Equal(t, 2, c.gets)
	})

	t.Run("empty collection", func(t *testing.T) {
		c := &fakeCollection{}
		assert.NoError(t, checkChromaDimension(ctx, c, 8))
		assert.Zero(t, c.gets)
	})
}

func TestChromaPayload(t *testing.T) {
	meta := chromago.NewDocumentMetadata(
		chromago.NewStringAttribute(keySourceFile, "guide.pdf"),
		chromago.NewStringAttribute(keyService, "billing-service"),
		chromago.NewIntAttribute(keyPage, 12),
	)
	p, ok := passageFromPayload("id-1", "GST is calculated at checkout.", chromaPayload(meta))
	require.True(t, ok)
	assert.Equal(t, "guide.pdf", p.Metadata.SourceFile)
	assert.Equal(t, "billing-service", p.Metadata.Service)
	assert.Equal(t, 12, p.Metadata.Page)
	assert.Empty(t, p.Metadata.Section)

	section := chromago.NewDocumentMetadata(
		chromago.NewStringAttribute(keySourceFile, "billing.md"),
		chromago.NewStringAttribute(keySection, "Billing"),
	)
	p, ok = passageFromPayload("id-2", "body", chromaPayload(section))
	require.True(t, ok)
	assert.Equal(t, "billing.md#Billing", p.Metadata.Citation())

	_, ok = passageFromPayload("id-3", "body", chromaPayload(nil))
	assert.False(t, ok)
}
