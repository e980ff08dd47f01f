package services

import (
	"context"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DeadBoTt-exe/Document-RAG/models"
	"github.com/DeadBoTt-exe/Document-RAG/vectorstore"
)

// Answers returned for the terminal states that do not carry a model answer.
const (
	GenerationErrorAnswer = "An error occurred while generating the answer."
	RetrievalErrorAnswer  = "An error occurred while retrieving context."
	LowConfidenceAnswer   = "The answer could not be confidently validated against the documentation."

	reasonNoContext = "No relevant context retrieved."
	reasonMalformed = "Retrieved chunks were empty or malformed."
	reasonNoAnswer  = "Model could not find the answer in the context."
)

// RAGService answers questions from the indexed documents.
type RAGService interface {
	// Ask runs the whole pipeline. It never fails: every outcome, including
	// collaborator errors, is described by the returned envelope.
	Ask(ctx context.Context, question string, topK int) *models.AnswerEnvelope
	GetTotalChunks(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*models.IndexStatsResponse, error)
}

// RAGOptions tunes retrieval and generation.
type RAGOptions struct {
	Collection string
	TopK       int
	// MinScore is the cosine similarity below which a hit does not count as
	// context.
	MinScore float64
	Timeout  time.Duration
}

type ragServiceImpl struct {
	embedder  Embedder
	index     vectorstore.Index
	generator Generator
	validator Validator
	metrics   *Metrics
	opts      RAGOptions
}

// NewRAGService creates a new RAG service instance.
func NewRAGService(embedder Embedder, index vectorstore.Index, generator Generator, validator Validator, metrics *Metrics, opts RAGOptions) RAGService {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &ragServiceImpl{
		embedder:  embedder,
		index:     index,
		generator: generator,
		validator: validator,
		metrics:   metrics,
		opts:      opts,
	}
}

// retrieved is the context assembled from the search hits that survived
// filtering.
type retrieved struct {
	chunks  []string
	sources []string
	scores  []float64
}

func (r *ragServiceImpl) Ask(ctx context.Context, question string, topK int) *models.AnswerEnvelope {
	start := time.Now()
	if topK <= 0 {
		topK = r.opts.TopK
	}
	logger := log.WithFields(log.Fields{"question": question, "top_k": topK})
	logger.Info("SERVICE: Answering question")

	queryVec, err := EmbedOne(ctx, r.embedder, question)
	if err != nil {
		logger.WithError(err).Error("SERVICE: could not embed question")
		return r.finish(logger, start, OutcomeError, retrievalFailure("Embedding error: "+err.Error()))
	}

	hits, err := r.index.Search(ctx, queryVec, topK)
	if err != nil {
		logger.WithError(err).Error("SERVICE: vector search failed")
		return r.finish(logger, start, OutcomeError, retrievalFailure("Search error: "+err.Error()))
	}

	matching := make([]vectorstore.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score >= r.opts.MinScore {
			matching = append(matching, h)
		}
	}
	if len(matching) == 0 {
		logger.WithField("hits", len(hits)).Info("SERVICE: no passage passed the similarity threshold")
		return r.finish(logger, start, OutcomeNoContext, noContext(reasonNoContext))
	}

	ctxData := assembleContext(logger, matching)
	if len(ctxData.chunks) == 0 {
		return r.finish(logger, start, OutcomeNoContext, noContext(reasonMalformed))
	}
	contextText := strings.Join(ctxData.chunks, "\n\n")

	answer, err := r.generate(ctx, contextText, question)
	if err != nil {
		logger.WithError(err).Error("SERVICE: LLM generation failed")
		return r.finish(logger, start, OutcomeError, &models.AnswerEnvelope{
			Answer:  GenerationErrorAnswer,
			Sources: ctxData.sources,
			Validation: models.ValidationOutcome{
				IsValid: false,
				Reason:  "LLM error: " + err.Error(),
			},
			Confidence: 0,
		})
	}

	// Retrieved passages can be similar to the question without answering it.
	if strings.Contains(answer, DontKnowAnswer) {
		logger.Info("SERVICE: model found no answer in the retrieved context")
		return r.finish(logger, start, OutcomeNoContext, noContext(reasonNoAnswer))
	}

	validation := r.validate(ctx, question, answer, contextText)
	confidence := ConfidenceScore(ctxData.scores, len(ctxData.chunks), validation.IsValid)

	if !validation.IsValid {
		return r.finish(logger, start, OutcomeLowConfidence, &models.AnswerEnvelope{
			Answer:     LowConfidenceAnswer,
			Sources:    ctxData.sources,
			Validation: validation,
			Confidence: confidence,
		})
	}
	return r.finish(logger, start, OutcomeSuccess, &models.AnswerEnvelope{
		Answer:     answer,
		Sources:    ctxData.sources,
		Validation: validation,
		Confidence: confidence,
	})
}

func (r *ragServiceImpl) generate(ctx context.Context, contextText, question string) (string, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	answer, err := r.generator.Generate(ctx, BuildAnswerPrompt(contextText, question))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", ErrEmptyCompletion
	}
	return answer, nil
}

// validate runs the validator under the generation timeout.
func (r *ragServiceImpl) validate(ctx context.Context, question, answer, contextText string) models.ValidationOutcome {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	return SafeValidate(ctx, r.validator, question, answer, contextText)
}

func (r *ragServiceImpl) finish(logger *log.Entry, start time.Time, outcome string, env *models.AnswerEnvelope) *models.AnswerEnvelope {
	if env.Sources == nil {
		env.Sources = []string{}
	}
	elapsed := time.Since(start)
	r.metrics.observeAnswer(outcome, env.Confidence, elapsed)
	logger.WithFields(log.Fields{
		"outcome":    outcome,
		"confidence": env.Confidence,
		"sources":    len(env.Sources),
		"elapsed":    elapsed,
	}).Info("SERVICE: Answer ready")
	return env
}

// assembleContext keeps the usable hits in rank order and collects their
// citations, deduplicated and sorted.
func assembleContext(logger *log.Entry, hits []vectorstore.SearchResult) retrieved {
	var out retrieved
	seen := make(map[string]bool)
	for _, h := range hits {
		p := h.Passage
		if !p.Valid() {
			logger.WithField("passage_id", p.ID).Warn("SERVICE: skipping malformed chunk")
			continue
		}
		out.chunks = append(out.chunks, strings.TrimSpace(p.Text))
		out.scores = append(out.scores, h.Score)
		if cite := p.Metadata.Citation(); !seen[cite] {
			seen[cite] = true
			out.sources = append(out.sources, cite)
		}
	}
	sort.Strings(out.sources)
	return out
}

func noContext(reason string) *models.AnswerEnvelope {
	return &models.AnswerEnvelope{
		Answer:     DontKnowAnswer,
		Sources:    []string{},
		Validation: models.ValidationOutcome{IsValid: false, Reason: reason},
		Confidence: 0,
	}
}

func retrievalFailure(reason string) *models.AnswerEnvelope {
	return &models.AnswerEnvelope{
		Answer:     RetrievalErrorAnswer,
		Sources:    []string{},
		Validation: models.ValidationOutcome{IsValid: false, Reason: reason},
		Confidence: 0,
	}
}

// GetTotalChunks counts all the passages in the index.
func (r *ragServiceImpl) GetTotalChunks(ctx context.Context) (int, error) {
	return r.index.Count(ctx)
}

func (r *ragServiceImpl) Stats(ctx context.Context) (*models.IndexStatsResponse, error) {
	n, err := r.GetTotalChunks(ctx)
	if err != nil {
		return nil, err
	}
	return &models.IndexStatsResponse{
		Backend:    r.index.Name(),
		Collection: r.opts.Collection,
		Passages:   n,
	}, nil
}
