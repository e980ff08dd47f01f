package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/DeadBoTt-exe/Document-RAG/config"
	"github.com/DeadBoTt-exe/Document-RAG/models"
)

// OverviewSection titles markdown text that has no heading line of its own.
const OverviewSection = "Overview"

var sectionHeading = regexp.MustCompile(`(?:^|\n)##\s+`)

// Chunker splits documents into passages.
type Chunker struct {
	strategy        string
	maxChars        int
	overlap         int
	minChars        int
	minSectionChars int
}

// NewChunker builds a chunker from configuration. An overlap that does not
// leave room for the window to advance is logged, not rejected.
func NewChunker(cfg config.ChunkerConfig) *Chunker {
	if cfg.Overlap >= cfg.MaxChars {
		log.WithFields(log.Fields{
			"max_chars": cfg.MaxChars,
			"overlap":   cfg.Overlap,
		}).Warn("CHUNKER: overlap >= max chars, windows advance one character at a time")
	}
	return &Chunker{
		strategy:        cfg.Strategy,
		maxChars:        cfg.MaxChars,
		overlap:         cfg.Overlap,
		minChars:        cfg.MinChars,
		minSectionChars: cfg.MinSectionChars,
	}
}

// ChunkText splits paged or plain text with the configured strategy.
func (c *Chunker) ChunkText(text string, meta models.PassageMetadata) ([]models.Passage, error) {
	if c.strategy == "recursive" {
		return c.chunkRecursive(text, meta)
	}
	return ChunkText(text, meta, c.maxChars, c.overlap, c.minChars), nil
}

// ChunkMarkdown splits a heading-sectioned document, one passage per section.
func (c *Chunker) ChunkMarkdown(text, filename string) []models.Passage {
	return ChunkMarkdown(text, filename, c.minSectionChars)
}

// ChunkText slides a window of maxChars runes over text. Each trimmed window
// of at least minChars runes becomes a passage; the start advances by
// maxChars-overlap, never by less than one rune, until it reaches the end of
// the text. Windows after the first one to reach the end repeat its last
// overlap runes and survive only when minChars allows it.
func ChunkText(text string, meta models.PassageMetadata, maxChars, overlap, minChars int) []models.Passage {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) == 0 {
		return nil
	}
	step := maxChars - overlap
	if step < 1 {
		step = 1
	}

	var passages []models.Passage
	for start := 0; start < len(runes); start += step {
		end := min(start+maxChars, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(chunk) >= minChars {
			passages = append(passages, newPassage(chunk, meta))
		}
	}
	return passages
}

// ChunkMarkdown splits text on "## " headings. The first line of a section is
// its title and the rest its body; a section with a single line is titled
// Overview. Bodies shorter than minBody characters are dropped.
func ChunkMarkdown(text, filename string, minBody int) []models.Passage {
	service := InferService(filename)

	var passages []models.Passage
	for _, section := range sectionHeading.Split(text, -1) {
		title, body, found := strings.Cut(strings.TrimSpace(section), "\n")
		if found {
			title = strings.TrimSpace(title)
			body = strings.TrimSpace(body)
		} else {
			body = title
			title = OverviewSection
		}
		if utf8.RuneCountInString(body) < minBody {
			continue
		}
		passages = append(passages, newPassage(body, models.PassageMetadata{
			SourceFile: filename,
			Section:    title,
			Service:    service,
		}))
	}
	return passages
}

// InferService maps a document file name to the service it documents.
func InferService(filename string) string {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "billing"):
		return "billing-service"
	case strings.Contains(name, "payment"):
		return "payments-service"
	case strings.Contains(name, "architecture"):
		return "system"
	default:
		return "unknown"
	}
}

func (c *Chunker) chunkRecursive(text string, meta models.PassageMetadata) ([]models.Passage, error) {
	overlap := c.overlap
	if overlap >= c.maxChars {
		overlap = 0
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.maxChars),
		textsplitter.WithChunkOverlap(overlap),
	)
	chunks, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("could not split %s: %w", meta.Citation(), err)
	}

	passages := make([]models.Passage, 0, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if utf8.RuneCountInString(chunk) < c.minChars {
			continue
		}
		passages = append(passages, newPassage(chunk, meta))
	}
	return passages, nil
}

func newPassage(text string, meta models.PassageMetadata) models.Passage {
	return models.Passage{
		ID:       uuid.New().String(),
		Text:     text,
		Metadata: meta,
	}
}
