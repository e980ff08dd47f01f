package vectorstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/models"
)

// QdrantIndex is a persistent index backed by a Qdrant collection using
// cosine distance. Queries are unit-normalised before they are sent, and
// Qdrant's cosine score is reported as Score directly.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// NewQdrantClient connects to the Qdrant gRPC endpoint.
func NewQdrantClient(host string, port int, apiKey string) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to qdrant at %s:%d: %w", host, port, err)
	}
	return client, nil
}

// OpenQdrantIndex attaches to a collection built by the offline indexer. It
// fails when the collection is missing or was built for another dimension.
func OpenQdrantIndex(ctx context.Context, client *qdrant.Client, name string, dimension int) (*QdrantIndex, error) {
	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not check qdrant collection '%s': %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: qdrant collection '%s' does not exist, run the indexer first", ErrCollectionNotFound, name)
	}

	info, err := client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not read qdrant collection '%s': %w", name, err)
	}
	size := int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
	if size != 0 && size != dimension {
		return nil, fmt.Errorf("%w: collection '%s' stores %d, embedder produces %d", ErrDimensionMismatch, name, size, dimension)
	}
	return &QdrantIndex{client: client, collection: name, dimension: dimension}, nil
}

// EnsureQdrantCollection creates the collection if needed. With recreate set,
// an existing collection is dropped first.
func EnsureQdrantCollection(ctx context.Context, client *qdrant.Client, name string, dimension int, recreate bool) (*QdrantIndex, error) {
	exists, err := client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not check qdrant collection '%s': %w", name, err)
	}
	if exists && recreate {
		log.Printf("INDEXER: Dropping qdrant collection '%s'", name)
		if err := client.DeleteCollection(ctx, name); err != nil {
			return nil, fmt.Errorf("could not delete qdrant collection '%s': %w", name, err)
		}
		exists = false
	}
	if !exists {
		log.Printf("INDEXER: Creating qdrant collection '%s' (dim=%d, cosine)", name, dimension)
		err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("could not create qdrant collection '%s': %w", name, err)
		}
		return &QdrantIndex{client: client, collection: name, dimension: dimension}, nil
	}
	return OpenQdrantIndex(ctx, client, name, dimension)
}

func (q *QdrantIndex) Name() string { return "qdrant" }

func (q *QdrantIndex) Add(ctx context.Context, vectors [][]float32, passages []models.Passage) error {
	if len(vectors) != len(passages) {
		return ErrLengthMismatch
	}
	if len(passages) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(passages))
	for i, p := range passages {
		if len(vectors[i]) != q.dimension {
			return fmt.Errorf("%w: entry %d has %d, collection has %d", ErrDimensionMismatch, i, len(vectors[i]), q.dimension)
		}
		payload := passagePayload(p)
		payload[keyText] = p.Text
		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("could not encode payload for passage %s: %w", p.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsDense(Normalize(vectors[i])),
			Payload: values,
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("could not upsert %d points into qdrant: %w", len(points), err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", ErrDimensionMismatch, len(query), q.dimension)
	}
	if topK <= 0 {
		return []SearchResult{}, nil
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(Normalize(query)),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not query qdrant: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, pt := range points {
		id := pt.GetId().GetUuid()
		if id == "" {
			id = fmt.Sprint(pt.GetId().GetNum())
		}
		passage, ok := passageFromPayload(id, "", payloadToMap(pt.GetPayload()))
		if !ok {
			log.WithField("id", id).Warn("VECTORSTORE: skipping malformed qdrant point")
			continue
		}
		score := float64(pt.GetScore())
		results = append(results, SearchResult{Passage: passage, Score: score, Distance: 1 - score})
	}
	return results, nil
}

func (q *QdrantIndex) Count(ctx context.Context) (int, error) {
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("could not count qdrant points: %w", err)
	}
	return int(n), nil
}

// DeleteSource drops every point indexed from sourceFile.
func (q *QdrantIndex) DeleteSource(ctx context.Context, sourceFile string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(keySourceFile, sourceFile)},
		}),
	})
	if err != nil {
		return fmt.Errorf("could not delete points of %s: %w", sourceFile, err)
	}
	return nil
}

func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		}
	}
	return out
}
