package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeadBoTt-exe/Document-RAG/models"
)

func passage(id, file, section string) models.Passage {
	return models.Passage{
		ID:   id,
		Text: "text of " + id,
		Metadata: models.PassageMetadata{
			SourceFile: file,
			Section:    section,
			Service:    "unknown",
		},
	}
}

func TestMemoryIndex_SearchFewerEntriesThanK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)

	err = idx.Add(ctx,
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
		[]models.Passage{passage("a", "a.md", "A"), passage("b", "b.md", "B"), passage("c", "c.md", "C")},
	)
	require.NoError(t, err)

	results, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].Passage.ID)
	assert.Equal(t, "c", results[1].Passage.ID)
	assert.Equal(t, "b", results[2].Passage.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.7071, results[1].Score, 1e-3)
	assert.InDelta(t, 0.0, results[2].Score, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestMemoryIndex_SearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[][]float32{{1, 0}, {0, 1}, {-1, 0}},
		[]models.Passage{passage("a", "a.md", "A"), passage("b", "b.md", "B"), passage("c", "c.md", "C")},
	))

	results, err := idx.Search(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Passage.ID)
	assert.Equal(t, "b", results[1].Passage.ID)
}

func TestMemoryIndex_EmptyIndex(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), []float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(3)
	require.NoError(t, err)

	err = idx.Add(ctx, [][]float32{{1, 2}}, []models.Passage{passage("a", "a.md", "A")})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = idx.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	err = idx.Add(ctx, [][]float32{{1, 2, 3}}, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = NewMemoryIndex(0)
	assert.Error(t, err)
}

func TestMemoryIndex_SkipsMalformedPassages(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)

	broken := passage("broken", "", "")
	broken.Text = "   "
	require.NoError(t, idx.Add(ctx,
		[][]float32{{1, 0}, {1, 0.1}},
		[]models.Passage{broken, passage("ok", "ok.md", "Ok")},
	))

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ok", results[0].Passage.ID)
}

func TestMemoryIndex_ZeroVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, [][]float32{{0, 0}}, []models.Passage{passage("z", "z.md", "Z")}))

	results, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)

	results, err = idx.Search(ctx, []float32{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
}

func TestMemoryIndex_DeleteSource(t *testing.T) {
	ctx := context.Background()
	idx, err := NewMemoryIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx,
		[][]float32{{1, 0}, {0, 1}, {1, 1}},
		[]models.Passage{passage("a1", "a.md", "A"), passage("b", "b.md", "B"), passage("a2", "a.md", "A2")},
	))

	var deleter SourceDeleter = idx
	require.NoError(t, deleter.DeleteSource(ctx, "a.md"))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Passage.ID)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestPassageFromPayload(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		payload  map[string]any
		wantOK   bool
		wantPage int
		wantText string
	}{
		{
			name:     "page as float from json",
			text:     "body",
			payload:  map[string]any{"source_file": "guide.pdf", "page": float64(7), "service": "system"},
			wantOK:   true,
			wantPage: 7,
			wantText: "body",
		},
		{
			name:     "page as int64 with text in payload",
			payload:  map[string]any{"source_file": "guide.pdf", "page": int64(3), "text": "stored body"},
			wantOK:   true,
			wantPage: 3,
			wantText: "stored body",
		},
		{
			name:    "missing source file",
			text:    "body",
			payload: map[string]any{"page": 1},
		},
		{
			name:    "no locator",
			text:    "body",
			payload: map[string]any{"source_file": "guide.pdf"},
		},
		{
			name:    "nil payload",
			text:    "body",
			payload: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := passageFromPayload("id", tt.text, tt.payload)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPage, p.Metadata.Page)
				assert.Equal(t, tt.wantText, p.Text)
			}
		})
	}
}
