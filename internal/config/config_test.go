package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	// An explicit path that does not exist is a read error, not a silent default.
	require.Error(t, err)
	assert.Nil(t, cfg)

	t.Chdir(dir)
	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 150, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 5, cfg.RAG.TopN)
	assert.Equal(t, 100, cfg.Extractor.MinTextLength)
	assert.Equal(t, "native", cfg.Extractor.TextLayer)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "sqlite", cfg.VectorStore.Backend)
	assert.Contains(t, cfg.RAG.StopWords, "qual")
	assert.Contains(t, cfg.Chat.Greetings, "bom dia")
	assert.Contains(t, cfg.Chat.Farewells, "tchau")
	assert.False(t, cfg.Chat.PersistFailedTurns)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
rag:
  chunk_size: 512
  chunk_overlap: 64
chat:
  bot_name: Alfred
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("ORACULO_LLM_LLM_MODEL", "qwen2.5:7b")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 512, cfg.RAG.ChunkSize)
	assert.Equal(t, 64, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "Alfred", cfg.Chat.BotName)
	assert.Equal(t, "qwen2.5:7b", cfg.LLM.LLMModel)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Extractor:   ExtractorConfig{TextLayer: "native", MinTextLength: 100},
			RAG:         RAGConfig{ChunkSize: 1000, ChunkOverlap: 150, TopN: 5},
			LLM:         LLMConfig{Provider: "ollama"},
			VectorStore: VectorStoreConfig{Backend: "sqlite", Path: "vectors.db"},
			Chat:        ChatConfig{Workers: 2},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "overlap equals size", mutate: func(c *Config) { c.RAG.ChunkOverlap = 1000 }, wantErr: "chunk_size"},
		{name: "negative overlap", mutate: func(c *Config) { c.RAG.ChunkOverlap = -1 }, wantErr: "chunk_size"},
		{name: "openai without key", mutate: func(c *Config) { c.LLM.Provider = "openai" }, wantErr: "api_key"},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bard" }, wantErr: "unknown provider"},
		{name: "qdrant without dims", mutate: func(c *Config) {
			c.VectorStore = VectorStoreConfig{Backend: "qdrant", URL: "http://q:6333", Collection: "docs"}
		}, wantErr: "dimensions"},
		{name: "unknown text layer", mutate: func(c *Config) { c.Extractor.TextLayer = "tika" }, wantErr: "text_layer"},
		{name: "zero min text length", mutate: func(c *Config) { c.Extractor.MinTextLength = 0 }, wantErr: "min_text_length"},
		{name: "no workers", mutate: func(c *Config) { c.Chat.Workers = 0 }, wantErr: "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
