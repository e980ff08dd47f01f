package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultOllamaEmbedModel = "nomic-embed-text:v1.5"

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaEmbedder calls a local Ollama server's /api/embeddings endpoint, one
// request per text, with bounded parallelism across a batch.
type OllamaEmbedder struct {
	httpClient  *http.Client
	url         string
	model       string
	dimension   int
	concurrency int
}

// NewOllamaEmbedder creates the embedder. When dimension is zero it is
// probed from the server once.
func NewOllamaEmbedder(ctx context.Context, baseURL, model string, dimension, concurrency int) (*OllamaEmbedder, error) {
	if model == "" {
		model = defaultOllamaEmbedModel
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	e := &OllamaEmbedder{
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		url:         strings.TrimRight(baseURL, "/") + "/api/embeddings",
		model:       model,
		dimension:   dimension,
		concurrency: concurrency,
	}
	if e.dimension == 0 {
		dim, err := probeDimension(ctx, e.embedAll)
		if err != nil {
			return nil, err
		}
		log.Printf("EMBEDDER: ollama model %s produces %d-dimensional vectors", model, dim)
		e.dimension = dim
	}
	return e, nil
}

func (e *OllamaEmbedder) Name() string   { return "ollama" }
func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}
	vectors, err := e.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := checkDimensions(e.Name(), e.dimension, texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *OllamaEmbedder) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := e.embedText(gctx, text)
			if err != nil {
				return fmt.Errorf("could not embed text %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *OllamaEmbedder) embedText(ctx context.Context, textToEmbed string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbedRequest{
		Model:  e.model,
		Prompt: textToEmbed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama embedding api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama api returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return ollamaResp.Embedding, nil
}
