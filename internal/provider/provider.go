// Package provider adapts embedding and language model backends.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/liliang-cn/oraculo/internal/config"
)

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the embedder and generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Embedder, Generator, error) {
	switch cfg.Provider {
	case "ollama", "":
		c := OllamaConfig{
			BaseURL:        cfg.BaseURL,
			EmbeddingModel: cfg.EmbeddingModel,
			LLMModel:       cfg.LLMModel,
			Timeout:        cfg.Timeout,
		}
		return NewOllamaEmbedder(c), NewOllamaGenerator(c), nil
	case "openai":
		p := NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.EmbeddingModel, cfg.LLMModel)
		return p, p, nil
	case "rago":
		p, err := NewRago(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

const defaultTimeout = 120 * time.Second
