package provider

import (
	"context"
	"fmt"

	ragodomain "github.com/liliang-cn/rago/v2/pkg/domain"
	"github.com/liliang-cn/rago/v2/pkg/providers"

	"github.com/liliang-cn/oraculo/internal/config"
)

type ragoEmbedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type ragoGenerator interface {
	Generate(ctx context.Context, prompt string, opts *ragodomain.GenerationOptions) (string, error)
}

// Rago wraps the rago provider factory's embedder and LLM.
type Rago struct {
	embedder  ragoEmbedder
	generator ragoGenerator
	opts      *ragodomain.GenerationOptions
}

// NewRago creates providers through rago's OpenAI compatible factory.
func NewRago(ctx context.Context, cfg config.LLMConfig) (*Rago, error) {
	factory := providers.NewFactory()

	providerCfg := &ragodomain.OpenAIProviderConfig{
		BaseURL:        cfg.BaseURL,
		APIKey:         cfg.APIKey,
		EmbeddingModel: cfg.EmbeddingModel,
		LLMModel:       cfg.LLMModel,
	}

	embedder, err := factory.CreateEmbedderProvider(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	llmProvider, err := factory.CreateLLMProvider(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}

	return newRago(embedder, llmProvider), nil
}

func newRago(embedder ragoEmbedder, generator ragoGenerator) *Rago {
	return &Rago{
		embedder:  embedder,
		generator: generator,
		opts:      &ragodomain.GenerationOptions{Temperature: 0.3, MaxTokens: 1024},
	}
}

// Embed generates an embedding for a single text
func (r *Rago) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("rago embed: %w", err)
	}
	return toFloat32(v), nil
}

// EmbedBatch embeds texts one by one
func (r *Rago) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := r.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Generate completes prompt with the configured LLM
func (r *Rago) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := r.generator.Generate(ctx, prompt, r.opts)
	if err != nil {
		return "", fmt.Errorf("rago generate: %w", err)
	}
	return out, nil
}
