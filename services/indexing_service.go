package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/DeadBoTt-exe/Document-RAG/models"
	"github.com/DeadBoTt-exe/Document-RAG/vectorstore"
)

// MinPageChars is the shortest cleaned page that is worth chunking.
const MinPageChars = 50

// FileIndexingService turns documents on disk into indexed passages: it
// extracts, cleans, chunks and embeds them and writes them to the index in
// fixed-size batches.
type FileIndexingService struct {
	index     vectorstore.Index
	embedder  Embedder
	chunker   *Chunker
	cleaner   *Cleaner
	extractor *Extractor
	metrics   *Metrics
	batchSize int
	workers   int

	mu     sync.Mutex
	hashes map[string]string
}

// NewFileIndexingService creates a new indexing service.
func NewFileIndexingService(index vectorstore.Index, embedder Embedder, chunker *Chunker, cleaner *Cleaner, extractor *Extractor, metrics *Metrics, batchSize int) *FileIndexingService {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &FileIndexingService{
		index:     index,
		embedder:  embedder,
		chunker:   chunker,
		cleaner:   cleaner,
		extractor: extractor,
		metrics:   metrics,
		batchSize: batchSize,
		workers:   4,
		hashes:    make(map[string]string),
	}
}

type filePassages struct {
	rel      string
	hash     string
	passages []models.Passage
}

// ScanAndIndexDirectory indexes every supported file under dirPath and
// returns the number of passages written. Files are read and chunked in
// parallel; writes to the index happen one batch at a time.
func (s *FileIndexingService) ScanAndIndexDirectory(ctx context.Context, dirPath string) (int, error) {
	log.Printf("INDEXER: Starting directory scan for: %s", dirPath)

	var paths []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isSupportedFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not walk %s: %w", dirPath, err)
	}

	results := make([]filePassages, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fp, err := s.prepareFile(dirPath, path)
			if err != nil {
				log.Printf("INDEXER ERROR: Failed to process file %s: %v", path, err)
				return nil
			}
			results[i] = fp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, fp := range results {
		if fp.rel == "" {
			continue
		}
		n, err := s.store(ctx, fp)
		if err != nil {
			return total, err
		}
		total += n
	}
	log.Printf("INDEXER: Directory scan finished. %d files, %d passages.", len(paths), total)
	return total, nil
}

// IndexFile (re-)indexes a single file. Passages previously indexed from it
// are removed first when the index supports it.
func (s *FileIndexingService) IndexFile(ctx context.Context, root, path string) (int, error) {
	fp, err := s.prepareFile(root, path)
	if err != nil {
		return 0, err
	}
	return s.store(ctx, fp)
}

// RemoveFile drops every passage indexed from path.
func (s *FileIndexingService) RemoveFile(ctx context.Context, root, path string) error {
	rel := sourceName(root, path)
	s.mu.Lock()
	delete(s.hashes, rel)
	s.mu.Unlock()

	deleter, ok := s.index.(vectorstore.SourceDeleter)
	if !ok {
		return fmt.Errorf("%s index cannot delete passages", s.index.Name())
	}
	return deleter.DeleteSource(ctx, rel)
}

// PassagesForFile extracts and chunks one file without touching the index.
// Markdown is split by heading; plain text and PDF pages are cleaned and
// window-chunked, and pages shorter than MinPageChars after cleaning are
// skipped.
func (s *FileIndexingService) PassagesForFile(root, path string) ([]models.Passage, error) {
	rel := sourceName(root, path)
	pages, err := s.extractor.ExtractPages(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".md") {
		var passages []models.Passage
		for _, page := range pages {
			passages = append(passages, s.chunker.ChunkMarkdown(page.Text, rel)...)
		}
		return passages, nil
	}

	service := InferService(rel)
	var passages []models.Passage
	for _, page := range pages {
		text := s.cleaner.Clean(page.Text)
		if len([]rune(text)) < MinPageChars {
			continue
		}
		chunks, err := s.chunker.ChunkText(text, models.PassageMetadata{
			SourceFile: rel,
			Page:       page.Number,
			Service:    service,
		})
		if err != nil {
			return nil, err
		}
		passages = append(passages, chunks...)
	}
	return passages, nil
}

func (s *FileIndexingService) prepareFile(root, path string) (filePassages, error) {
	hash, err := calculateFileHash(path)
	if err != nil {
		return filePassages{}, fmt.Errorf("could not hash file %s: %w", path, err)
	}
	passages, err := s.PassagesForFile(root, path)
	if err != nil {
		return filePassages{}, err
	}
	rel := sourceName(root, path)
	log.Printf("INDEXER: Split %s into %d passages.", rel, len(passages))
	return filePassages{rel: rel, hash: hash, passages: passages}, nil
}

func (s *FileIndexingService) store(ctx context.Context, fp filePassages) (int, error) {
	s.mu.Lock()
	unchanged := s.hashes[fp.rel] == fp.hash
	s.mu.Unlock()
	if unchanged {
		log.Printf("INDEXER: %s is unchanged, skipping.", fp.rel)
		return 0, nil
	}

	if deleter, ok := s.index.(vectorstore.SourceDeleter); ok {
		if err := deleter.DeleteSource(ctx, fp.rel); err != nil {
			return 0, fmt.Errorf("failed to delete old version of %s: %w", fp.rel, err)
		}
	}

	written := 0
	for start := 0; start < len(fp.passages); start += s.batchSize {
		end := min(start+s.batchSize, len(fp.passages))
		batch := fp.passages[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.Text
		}
		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("could not embed passages %d-%d of %s: %w", start, end, fp.rel, err)
		}
		if err := s.index.Add(ctx, vectors, batch); err != nil {
			return written, fmt.Errorf("could not index passages %d-%d of %s: %w", start, end, fp.rel, err)
		}
		written += len(batch)
		if s.metrics != nil {
			s.metrics.addIndexed(len(batch))
		}
		log.WithFields(log.Fields{
			"file":    fp.rel,
			"written": written,
			"total":   len(fp.passages),
		}).Debug("INDEXER: batch upserted")
	}

	s.mu.Lock()
	s.hashes[fp.rel] = fp.hash
	s.mu.Unlock()
	return written, nil
}

// WatchDirectory re-indexes files under dirPath as they change until ctx is
// cancelled.
func (s *FileIndexingService) WatchDirectory(ctx context.Context, dirPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add path to watcher: %w", err)
	}
	log.Printf("WATCHER: Watching directory: %s", dirPath)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.handleEvent(ctx, dirPath, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("WATCHER ERROR: %v", err)
		case <-ctx.Done():
			log.Println("WATCHER: Context cancelled, shutting down watcher.")
			return nil
		}
	}
}

func (s *FileIndexingService) handleEvent(ctx context.Context, root string, event fsnotify.Event) {
	if !isSupportedFile(event.Name) {
		return
	}
	log.Printf("WATCHER EVENT: %s", event)

	// Editors often save by writing a temp file and renaming it, so Create
	// and Write are handled alike.
	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		n, err := s.IndexFile(ctx, root, event.Name)
		if err != nil {
			log.Printf("WATCHER ERROR: Failed to process file %s: %v", event.Name, err)
			return
		}
		log.Printf("WATCHER: Re-indexed %s (%d passages)", event.Name, n)
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		log.Printf("WATCHER: File removed/renamed: %s. Removing from index...", event.Name)
		if err := s.RemoveFile(ctx, root, event.Name); err != nil {
			log.Printf("WATCHER ERROR: Failed to delete records for %s: %v", event.Name, err)
		}
	}
}

// sourceName is the provenance recorded for path: its slash-separated path
// relative to root, or its base name when it is not under root.
func sourceName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
