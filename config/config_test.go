package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envLookup(env map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envLookup(map[string]string{
		"GEMINI_API_KEY":      "secret",
		"INDEX_BACKEND":       "qdrant",
		"COLLECTION_NAME":     "docs",
		"CHUNK_SIZE":          "500",
		"CHUNK_OVERLAP":       "50",
		"TOP_K":               "3",
		"MIN_RETRIEVAL_SCORE": "0.2",
		"GENERATION_TIMEOUT":  "15s",
	}))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "qdrant", cfg.Index.Backend)
	assert.Equal(t, "docs", cfg.Index.Collection)
	assert.Equal(t, 500, cfg.Chunker.MaxChars)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.2, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
}

func TestDefault_PortDoesNotCollideWithChroma(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "8080", cfg.Port)
	assert.NotContains(t, cfg.Index.ChromaURL, ":"+cfg.Port)
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	cfg := Default()
	err := applyEnv(cfg, envLookup(map[string]string{
		"CHUNK_SIZE":         "big",
		"GENERATION_TIMEOUT": "soon",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_SIZE")
	assert.Contains(t, err.Error(), "GENERATION_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing gemini key",
			mutate:  func(c *AppConfig) {},
			wantErr: ErrMissingCredentials,
		},
		{
			name: "ollama needs no key",
			mutate: func(c *AppConfig) {
				c.LLM.Provider = "ollama"
			},
		},
		{
			name: "openai embeddings need a key",
			mutate: func(c *AppConfig) {
				c.LLM.GeminiAPIKey = "k"
				c.Embedder.Provider = "openai"
			},
			wantErr: ErrMissingCredentials,
		},
		{
			name: "unknown backend",
			mutate: func(c *AppConfig) {
				c.LLM.GeminiAPIKey = "k"
				c.Index.Backend = "faiss"
			},
			wantMsg: "unknown index backend",
		},
		{
			name: "overlap not smaller than size is only a warning",
			mutate: func(c *AppConfig) {
				c.LLM.GeminiAPIKey = "k"
				c.Chunker.Overlap = c.Chunker.MaxChars
			},
		},
		{
			name: "hashing embedder needs a dimension",
			mutate: func(c *AppConfig) {
				c.LLM.GeminiAPIKey = "k"
				c.Embedder.Provider = "hashing"
			},
			wantMsg: "EMBEDDING_DIM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMsg)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := `
llm:
  provider: ollama
  ollama_model: mistral
index:
  backend: chroma
  collection: from-yaml
retrieval:
  top_k: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))
	t.Setenv("COLLECTION_NAME", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "mistral", cfg.LLM.OllamaModel)
	assert.Equal(t, "chroma", cfg.Index.Backend)
	assert.Equal(t, "from-env", cfg.Index.Collection)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, 800, cfg.Chunker.MaxChars)
}

func TestLoad_MissingCredentialsIsFatal(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
