package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/vectorstore"
)

// Engine is a ready-to-serve RAG pipeline. Building it performs every
// startup check, so a constructed Engine never fails on configuration at
// request time.
type Engine struct {
	RAG      RAGService
	Indexer  *FileIndexingService
	Metrics  *Metrics
	Embedder Embedder
	Index    vectorstore.Index

	closers []io.Closer
}

// NewEngine wires the pipeline described by cfg. The memory backend is
// filled from DocsDir before NewEngine returns; persistent backends must
// already hold the collection built by the indexer.
func NewEngine(ctx context.Context, cfg *config.AppConfig) (*Engine, error) {
	metrics := NewMetrics()

	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create embedder: %w", err)
	}
	log.Printf("SERVICE: Using %s embeddings (dim=%d)", embedder.Name(), embedder.Dimension())

	e := &Engine{Metrics: metrics, Embedder: embedder}
	index, err := e.openIndex(ctx, cfg, embedder.Dimension(), false, false)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Index = index

	indexer, err := newIndexer(cfg, index, embedder, metrics)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Indexer = indexer

	if index.Name() == "memory" {
		n, err := indexer.ScanAndIndexDirectory(ctx, cfg.DocsDir)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("could not build in-memory index from %s: %w", cfg.DocsDir, err)
		}
		log.Printf("SERVICE: Indexed %d passages from %s", n, cfg.DocsDir)
	}

	generator, err := NewGenerator(ctx, cfg.LLM)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("could not create generator: %w", err)
	}

	var validator Validator
	switch cfg.Retrieval.Validator {
	case "llm":
		validator = NewLLMValidator(generator)
	default:
		validator = NewLexicalValidator(cfg.Retrieval.ValidationMinCoverage)
	}

	e.RAG = NewRAGService(embedder, index, generator, validator, metrics, RAGOptions{
		Collection: cfg.Index.Collection,
		TopK:       cfg.Retrieval.TopK,
		MinScore:   cfg.Retrieval.MinScore,
		Timeout:    cfg.LLM.Timeout,
	})
	return e, nil
}

// NewIndexingEngine wires only what the offline indexer needs: an embedder
// and a writable persistent collection, created if missing.
func NewIndexingEngine(ctx context.Context, cfg *config.AppConfig, recreate bool) (*Engine, error) {
	if cfg.Index.Backend == "memory" {
		return nil, errors.New("the offline indexer needs a persistent INDEX_BACKEND (chroma or qdrant)")
	}
	metrics := NewMetrics()
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create embedder: %w", err)
	}

	e := &Engine{Metrics: metrics, Embedder: embedder}
	index, err := e.openIndex(ctx, cfg, embedder.Dimension(), true, recreate)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Index = index

	indexer, err := newIndexer(cfg, index, embedder, metrics)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Indexer = indexer
	return e, nil
}

// Close releases the connections held by the index backend.
func (e *Engine) Close() {
	for _, c := range e.closers {
		if err := c.Close(); err != nil {
			log.Warnf("SERVICE: failed to close client: %v", err)
		}
	}
	e.closers = nil
}

func (e *Engine) openIndex(ctx context.Context, cfg *config.AppConfig, dim int, create, recreate bool) (vectorstore.Index, error) {
	ic := cfg.Index
	switch ic.Backend {
	case "memory":
		return vectorstore.NewMemoryIndex(dim)

	case "chroma":
		client, err := chromago.NewHTTPClient(chromago.WithBaseURL(ic.ChromaURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create chroma client: %w", err)
		}
		e.closers = append(e.closers, client)
		if create {
			return vectorstore.EnsureChromaCollection(ctx, client, ic.Collection, dim, recreate)
		}
		return vectorstore.OpenChromaIndex(ctx, client, ic.Collection, dim)

	case "qdrant":
		client, err := vectorstore.NewQdrantClient(ic.QdrantHost, ic.QdrantPort, ic.QdrantAPIKey)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client)
		if create {
			return vectorstore.EnsureQdrantCollection(ctx, client, ic.Collection, dim, recreate)
		}
		return vectorstore.OpenQdrantIndex(ctx, client, ic.Collection, dim)

	default:
		return nil, fmt.Errorf("unknown index backend: %q", ic.Backend)
	}
}

func newIndexer(cfg *config.AppConfig, index vectorstore.Index, embedder Embedder, metrics *Metrics) (*FileIndexingService, error) {
	cleaner, err := NewCleaner(DefaultBoilerplate...)
	if err != nil {
		return nil, err
	}
	return NewFileIndexingService(
		index,
		embedder,
		NewChunker(cfg.Chunker),
		cleaner,
		NewExtractor(cfg.UnidocLicenseKey),
		metrics,
		cfg.Index.BatchSize,
	), nil
}
