package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredentials is returned by Validate when a provider that needs an
// API key has none configured.
var ErrMissingCredentials = errors.New("missing credentials")

// LLMConfig selects and configures the answer generator.
type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	GeminiAPIKey string        `yaml:"gemini_api_key"`
	GeminiModel  string        `yaml:"gemini_model"`
	OllamaURL    string        `yaml:"ollama_url"`
	OllamaModel  string        `yaml:"ollama_model"`
	Timeout      time.Duration `yaml:"timeout"`
	RPS          float64       `yaml:"rps"`
}

// EmbedderConfig selects and configures the embedding provider. An empty
// Model picks the provider's default embedding model.
type EmbedderConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	Dimension    int    `yaml:"dimension"`
	OllamaURL    string `yaml:"ollama_url"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
	Concurrency  int    `yaml:"concurrency"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	Backend      string `yaml:"backend"`
	Collection   string `yaml:"collection"`
	ChromaURL    string `yaml:"chroma_url"`
	QdrantHost   string `yaml:"qdrant_host"`
	QdrantPort   int    `yaml:"qdrant_port"`
	QdrantAPIKey string `yaml:"qdrant_api_key"`
	BatchSize    int    `yaml:"batch_size"`
}

// ChunkerConfig configures how documents are split into passages.
type ChunkerConfig struct {
	Strategy        string `yaml:"strategy"`
	MaxChars        int    `yaml:"max_chars"`
	Overlap         int    `yaml:"overlap"`
	MinChars        int    `yaml:"min_chars"`
	MinSectionChars int    `yaml:"min_section_chars"`
}

// RetrievalConfig tunes query-time retrieval and answer checking.
type RetrievalConfig struct {
	TopK                  int     `yaml:"top_k"`
	MinScore              float64 `yaml:"min_score"`
	Validator             string  `yaml:"validator"`
	ValidationMinCoverage float64 `yaml:"validation_min_coverage"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Port             string          `yaml:"port"`
	DocsDir          string          `yaml:"docs_dir"`
	LogLevel         string          `yaml:"log_level"`
	LogFormat        string          `yaml:"log_format"`
	UnidocLicenseKey string          `yaml:"unidoc_license_key"`
	LLM              LLMConfig       `yaml:"llm"`
	Embedder         EmbedderConfig  `yaml:"embedder"`
	Index            IndexConfig     `yaml:"index"`
	Chunker          ChunkerConfig   `yaml:"chunker"`
	Retrieval        RetrievalConfig `yaml:"retrieval"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence. A missing file is not an error.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, relying on environment variables.")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Warnf("CONFIG: %s not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing else is supplied.
func Default() *AppConfig {
	return &AppConfig{
		Port:      "8080",
		DocsDir:   "docs",
		LogLevel:  "info",
		LogFormat: "text",
		LLM: LLMConfig{
			Provider:    "gemini",
			GeminiModel: "gemini-2.5-flash",
			OllamaURL:   "http://localhost:11434",
			OllamaModel: "llama3.1",
			Timeout:     60 * time.Second,
		},
		Embedder: EmbedderConfig{
			Provider:    "ollama",
			OllamaURL:   "http://localhost:11434",
			Concurrency: 8,
		},
		Index: IndexConfig{
			Backend:    "memory",
			Collection: "aws-org-docs",
			ChromaURL:  "http://localhost:8000",
			QdrantHost: "localhost",
			QdrantPort: 6334,
			BatchSize:  64,
		},
		Chunker: ChunkerConfig{
			Strategy:        "window",
			MaxChars:        800,
			Overlap:         100,
			MinChars:        100,
			MinSectionChars: 50,
		},
		Retrieval: RetrievalConfig{
			TopK:                  5,
			MinScore:              0.05,
			Validator:             "lexical",
			ValidationMinCoverage: 0.6,
		},
	}
}

// Validate rejects configurations the service cannot start with. An overlap
// that does not fit in the window is only warned about.
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY not found in environment", ErrMissingCredentials)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}

	switch c.Embedder.Provider {
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is required for gemini embeddings", ErrMissingCredentials)
		}
	case "openai":
		if c.Embedder.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY not found in environment", ErrMissingCredentials)
		}
	case "hashing":
		if c.Embedder.Dimension <= 0 {
			return errors.New("hashing embedder needs a positive EMBEDDING_DIM")
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Embedder.Provider)
	}

	switch c.Index.Backend {
	case "memory", "chroma", "qdrant":
	default:
		return fmt.Errorf("unknown index backend: %q", c.Index.Backend)
	}
	if c.Index.Backend != "memory" && c.Index.Collection == "" {
		return errors.New("COLLECTION_NAME is required for a persistent index")
	}

	switch c.Chunker.Strategy {
	case "window", "recursive":
	default:
		return fmt.Errorf("unknown chunk strategy: %q", c.Chunker.Strategy)
	}
	if c.Chunker.MaxChars <= 0 {
		return errors.New("CHUNK_SIZE must be positive")
	}
	if c.Chunker.Overlap < 0 {
		return errors.New("CHUNK_OVERLAP must not be negative")
	}
	if c.Chunker.Overlap >= c.Chunker.MaxChars {
		log.WithFields(log.Fields{
			"chunk_size":    c.Chunker.MaxChars,
			"chunk_overlap": c.Chunker.Overlap,
		}).Warn("CONFIG: chunk overlap is not smaller than chunk size; windows will advance one character at a time")
	}

	switch c.Retrieval.Validator {
	case "lexical", "llm":
	default:
		return fmt.Errorf("unknown validator: %q", c.Retrieval.Validator)
	}
	if c.Retrieval.TopK <= 0 {
		return errors.New("TOP_K must be positive")
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *AppConfig, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("PORT", &cfg.Port)
	str("DOCS_DIR", &cfg.DocsDir)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)
	str("UNIDOC_LICENSE_KEY", &cfg.UnidocLicenseKey)

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("GEMINI_API_KEY", &cfg.LLM.GeminiAPIKey)
	str("GEMINI_MODEL", &cfg.LLM.GeminiModel)
	str("OLLAMA_URL", &cfg.LLM.OllamaURL)
	str("OLLAMA_MODEL", &cfg.LLM.OllamaModel)
	float("GENERATION_RPS", &cfg.LLM.RPS)
	if v, ok := lookup("GENERATION_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid GENERATION_TIMEOUT: %w", err))
		} else {
			cfg.LLM.Timeout = d
		}
	}

	str("EMBEDDING_PROVIDER", &cfg.Embedder.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedder.Model)
	num("EMBEDDING_DIM", &cfg.Embedder.Dimension)
	str("OLLAMA_URL", &cfg.Embedder.OllamaURL)
	str("OPENAI_API_KEY", &cfg.Embedder.OpenAIAPIKey)
	num("EMBEDDING_CONCURRENCY", &cfg.Embedder.Concurrency)

	str("INDEX_BACKEND", &cfg.Index.Backend)
	str("COLLECTION_NAME", &cfg.Index.Collection)
	str("CHROMA_URL", &cfg.Index.ChromaURL)
	str("QDRANT_HOST", &cfg.Index.QdrantHost)
	num("QDRANT_PORT", &cfg.Index.QdrantPort)
	str("QDRANT_API_KEY", &cfg.Index.QdrantAPIKey)
	num("UPSERT_BATCH_SIZE", &cfg.Index.BatchSize)

	str("CHUNK_STRATEGY", &cfg.Chunker.Strategy)
	num("CHUNK_SIZE", &cfg.Chunker.MaxChars)
	num("CHUNK_OVERLAP", &cfg.Chunker.Overlap)
	num("MIN_CHUNK_CHARS", &cfg.Chunker.MinChars)
	num("MIN_SECTION_CHARS", &cfg.Chunker.MinSectionChars)

	num("TOP_K", &cfg.Retrieval.TopK)
	float("MIN_RETRIEVAL_SCORE", &cfg.Retrieval.MinScore)
	str("VALIDATOR", &cfg.Retrieval.Validator)
	float("VALIDATION_MIN_COVERAGE", &cfg.Retrieval.ValidationMinCoverage)

	return errors.Join(errs...)
}

// ConfigureLogging applies the configured level and format to the global
// logrus logger.
func ConfigureLogging(cfg *AppConfig) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("CONFIG: unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
