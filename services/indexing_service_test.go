package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/vectorstore"
)

type countingEmbedder struct {
	*HashingEmbedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.HashingEmbedder.Embed(ctx, texts)
}

type indexerFixture struct {
	dir      string
	indexer  *FileIndexingService
	index    *vectorstore.MemoryIndex
	embedder *countingEmbedder
	metrics  *Metrics
}

func newIndexerFixture(t *testing.T, batchSize int) *indexerFixture {
	t.Helper()
	hashing, err := NewHashingEmbedder(64)
	require.NoError(t, err)
	embedder := &countingEmbedder{HashingEmbedder: hashing}
	index, err := vectorstore.NewMemoryIndex(64)
	require.NoError(t, err)
	cleaner, err := NewCleaner(DefaultBoilerplate...)
	require.NoError(t, err)

	chunker := NewChunker(config.ChunkerConfig{Strategy: "window", MaxChars: 100, Overlap: 20, MinChars: 30, MinSectionChars: 20})
	metrics := NewMetrics()
	return &indexerFixture{
		dir:      t.TempDir(),
		indexer:  NewFileIndexingService(index, embedder, chunker, cleaner, NewExtractor(""), metrics, batchSize),
		index:    index,
		embedder: embedder,
		metrics:  metrics,
	}
}

func (f *indexerFixture) write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(f.dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func (f *indexerFixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.index.Count(context.Background())
	require.NoError(t, err)
	return n
}

var longText = strings.Repeat("invoices settle nightly ", 12)

func TestPassagesForFile_PlainText(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "billing/runbook.txt", longText)

	passages, err := f.indexer.PassagesForFile(f.dir, path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(passages), 2)
	for _, p := range passages {
		assert.Equal(t, "billing/runbook.txt", p.Metadata.SourceFile)
		assert.Equal(t, 1, p.Metadata.Page)
		assert.Equal(t, "billing-service", p.Metadata.Service)
		assert.Empty(t, p.Metadata.Section)
		assert.LessOrEqual(t, len([]rune(p.Text)), 100)
		assert.NotEmpty(t, p.ID)
	}
}

func TestPassagesForFile_ShortPageSkipped(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "tiny.txt", "Page 3 of 9\n\nToo short to index.")

	passages, err := f.indexer.PassagesForFile(f.dir, path)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestPassagesForFile_Markdown(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "payments.md", "## Refunds\nRefunds are issued to the original payment method within five days.")

	passages, err := f.indexer.PassagesForFile(f.dir, path)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "Refunds", passages[0].Metadata.Section)
	assert.Equal(t, "payments.md", passages[0].Metadata.SourceFile)
	assert.Equal(t, "payments-service", passages[0].Metadata.Service)
}

func TestScanAndIndexDirectory(t *testing.T) {
	f := newIndexerFixture(t, 1)
	f.write(t, "a.txt", longText)
	f.write(t, "nested/b.md", "## Section\nThis section is long enough to become a passage.")
	f.write(t, "ignored.csv", "a,b,c")

	n, err := f.indexer.ScanAndIndexDirectory(context.Background(), f.dir)
	require.NoError(t, err)
	require.Greater(t, n, 2)
	assert.Equal(t, n, f.count(t))
	// batch size one: one embedding call per passage
	assert.Equal(t, int32(n), f.embedder.calls.Load())
	assert.Equal(t, float64(n), testutil.ToFloat64(f.metrics.indexedPassages))

	// a second scan finds nothing new
	again, err := f.indexer.ScanAndIndexDirectory(context.Background(), f.dir)
	require.NoError(t, err)
	assert.Zero(t, again)
	assert.Equal(t, n, f.count(t))
}

func TestScanAndIndexDirectory_MissingDir(t *testing.T) {
	f := newIndexerFixture(t, 64)
	_, err := f.indexer.ScanAndIndexDirectory(context.Background(), filepath.Join(f.dir, "nope"))
	assert.Error(t, err)
}

func TestIndexFile_ReplacesChangedFile(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "a.txt", longText)

	first, err := f.indexer.IndexFile(context.Background(), f.dir, path)
	require.NoError(t, err)
	require.Equal(t, first, f.count(t))

	unchanged, err := f.indexer.IndexFile(context.Background(), f.dir, path)
	require.NoError(t, err)
	assert.Zero(t, unchanged)

	f.write(t, "a.txt", "## ignored heading marker\n"+strings.Repeat("ledger rows reconcile ", 3))
	second, err := f.indexer.IndexFile(context.Background(), f.dir, path)
	require.NoError(t, err)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, f.count(t))
}

func TestRemoveFile(t *testing.T) {
	f := newIndexerFixture(t, 64)
	keep := f.write(t, "keep.txt", longText)
	drop := f.write(t, "drop.txt", longText)

	kept, err := f.indexer.IndexFile(context.Background(), f.dir, keep)
	require.NoError(t, err)
	_, err = f.indexer.IndexFile(context.Background(), f.dir, drop)
	require.NoError(t, err)

	require.NoError(t, f.indexer.RemoveFile(context.Background(), f.dir, drop))
	assert.Equal(t, kept, f.count(t))

	// a removed file is indexed again when it comes back
	n, err := f.indexer.IndexFile(context.Background(), f.dir, drop)
	require.NoError(t, err)
	assert.Positive(t, n)
}

func TestHandleEvent(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "notes.txt", longText)
	ctx := context.Background()

	f.indexer.handleEvent(ctx, f.dir, fsnotify.Event{Name: path, Op: fsnotify.Create})
	assert.Positive(t, f.count(t))

	f.indexer.handleEvent(ctx, f.dir, fsnotify.Event{Name: path, Op: fsnotify.Remove})
	assert.Zero(t, f.count(t))

	f.indexer.handleEvent(ctx, f.dir, fsnotify.Event{Name: filepath.Join(f.dir, "x.csv"), Op: fsnotify.Create})
	assert.Zero(t, f.count(t))
}

func TestSourceName(t *testing.T) {
	root := filepath.Join("srv", "docs")
	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(root, "a.pdf"), "a.pdf"},
		{filepath.Join(root, "billing", "guide.md"), "billing/guide.md"},
		{filepath.Join("elsewhere", "c.txt"), "c.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sourceName(root, tt.path))
	}
}

func TestExtractPages(t *testing.T) {
	f := newIndexerFixture(t, 64)
	path := f.write(t, "a.md", "# Title\nbody")

	pages, err := NewExtractor("").ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "# Title\nbody", pages[0].Text)

	_, err = NewExtractor("").ExtractPages(f.write(t, "a.docx", "x"))
	assert.Error(t, err)

	assert.True(t, isSupportedFile("Guide.PDF"))
	assert.False(t, isSupportedFile("guide.docx"))
}
