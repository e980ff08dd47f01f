package vectorstore

import (
	"context"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/models"
)

// ChromaIndex is a persistent index backed by a Chroma collection created in
// cosine space. Chroma reports cosine distance, so Score = 1 - Distance.
type ChromaIndex struct {
	collection chromago.Collection
}

// OpenChromaIndex attaches to a collection that the offline indexer has
// already built. It never creates one, and it fails with
// ErrDimensionMismatch when the stored vectors are not dim long.
func OpenChromaIndex(ctx context.Context, client chromago.Client, name string, dim int) (*ChromaIndex, error) {
	collections, err := client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chroma collections: %w", err)
	}
	for _, c := range collections {
		if c.Name() != name {
			continue
		}
		collection, err := client.GetCollection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get chroma collection '%s': %w", name, err)
		}
		if err := checkChromaDimension(ctx, collection, dim); err != nil {
			return nil, err
		}
		return &ChromaIndex{collection: collection}, nil
	}
	return nil, fmt.Errorf("%w: chroma collection '%s' does not exist, run the indexer first", ErrCollectionNotFound, name)
}

// checkChromaDimension compares dim with the collection's recorded dimension,
// or with the length of one stored embedding when none is recorded. An empty
// collection passes.
func checkChromaDimension(ctx context.Context, collection chromago.Collection, dim int) error {
	stored := collection.Dimension()
	if stored == 0 {
		count, err := collection.Count(ctx)
		if err != nil {
			return fmt.Errorf("failed to count items in collection: %w", err)
		}
		if count == 0 {
			return nil
		}
		res, err := collection.Get(ctx,
			chromago.WithLimitGet(1),
			chromago.WithIncludeGet(chromago.IncludeEmbeddings),
		)
		if err != nil {
			return fmt.Errorf("failed to read a stored embedding: %w", err)
		}
		embs := res.GetEmbeddings()
		if len(embs) == 0 || embs[0] == nil {
			return nil
		}
		stored = embs[0].Len()
	}
	if stored != dim {
		return fmt.Errorf("%w: chroma collection '%s' holds %d-dimensional vectors, embedder produces %d",
			ErrDimensionMismatch, collection.Name(), stored, dim)
	}
	return nil
}

// EnsureChromaCollection gets or creates the collection for the indexer.
// With recreate set, an existing collection is dropped first; otherwise its
// vectors must be dim long.
func EnsureChromaCollection(ctx context.Context, client chromago.Client, name string, dim int, recreate bool) (*ChromaIndex, error) {
	if recreate {
		if err := client.DeleteCollection(ctx, name); err != nil {
			log.Warnf("INDEXER: could not delete chroma collection '%s': %v", name, err)
		}
	}

	log.Printf("INDEXER: Getting or creating chroma collection '%s'...", name)
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("hnsw:space", "cosine"),
				chromago.NewStringAttribute("description", "document passages"),
				chromago.NewStringAttribute("created_by", "rag-indexer"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create chroma collection '%s': %w", name, err)
	}
	if err := checkChromaDimension(ctx, collection, dim); err != nil {
		return nil, err
	}
	return &ChromaIndex{collection: collection}, nil
}

func (c *ChromaIndex) Name() string { return "chroma" }

func (c *ChromaIndex) Add(ctx context.Context, vectors [][]float32, passages []models.Passage) error {
	if len(vectors) != len(passages) {
		return ErrLengthMismatch
	}
	if len(passages) == 0 {
		return nil
	}

	ids := make([]chromago.DocumentID, len(passages))
	texts := make([]string, len(passages))
	embs := make([]embeddings.Embedding, len(passages))
	metas := make([]chromago.DocumentMetadata, len(passages))
	for i, p := range passages {
		ids[i] = chromago.DocumentID(p.ID)
		texts[i] = p.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(Normalize(vectors[i]))

		attrs := []*chromago.MetaAttribute{
			chromago.NewStringAttribute(keySourceFile, p.Metadata.SourceFile),
			chromago.NewStringAttribute(keyService, p.Metadata.Service),
		}
		if p.Metadata.Section != "" {
			attrs = append(attrs, chromago.NewStringAttribute(keySection, p.Metadata.Section))
		}
		if p.Metadata.Page > 0 {
			attrs = append(attrs, chromago.NewIntAttribute(keyPage, int64(p.Metadata.Page)))
		}
		metas[i] = chromago.NewDocumentMetadata(attrs...)
	}

	err := c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d passages to chromadb: %w", len(passages), err)
	}
	return nil
}

func (c *ChromaIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	count, err := c.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 || topK <= 0 {
		return []SearchResult{}, nil
	}
	if topK > count {
		topK = count
	}

	qr, err := c.collection.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(Normalize(query))),
		chromago.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	idGroups := qr.GetIDGroups()
	docGroups := qr.GetDocumentsGroups()
	metaGroups := qr.GetMetadatasGroups()
	distGroups := qr.GetDistancesGroups()
	if len(docGroups) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(docGroups[0]))
	for i, doc := range docGroups[0] {
		var id string
		if len(idGroups) > 0 && i < len(idGroups[0]) {
			id = string(idGroups[0][i])
		}
		var meta chromago.DocumentMetadata
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			meta = metaGroups[0][i]
		}
		passage, ok := passageFromPayload(id, doc.ContentString(), chromaPayload(meta))
		if !ok {
			log.WithField("id", id).Warn("VECTORSTORE: skipping malformed chroma entry")
			continue
		}
		distance := 1.0
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			distance = float64(distGroups[0][i])
		}
		results = append(results, SearchResult{Passage: passage, Score: 1 - distance, Distance: distance})
	}
	return results, nil
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

// DeleteSource drops every passage indexed from sourceFile.
func (c *ChromaIndex) DeleteSource(ctx context.Context, sourceFile string) error {
	where := chromago.EqString(keySourceFile, sourceFile)
	return c.collection.Delete(ctx, chromago.WithWhereDelete(where))
}

// chromaPayload reads the passage keys out of Chroma document metadata.
func chromaPayload(meta chromago.DocumentMetadata) map[string]any {
	payload := make(map[string]any)
	if meta == nil {
		return payload
	}
	for _, key := range []string{keySourceFile, keySection, keyService} {
		if v, ok := meta.GetString(key); ok {
			payload[key] = v
		}
	}
	if page, ok := meta.GetInt(keyPage); ok {
		payload[keyPage] = page
	} else if page, ok := meta.GetFloat(keyPage); ok {
		payload[keyPage] = page
	}
	return payload
}
