package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Default Ollama settings.
const (
	DefaultOllamaURL        = "http://localhost:11434"
	DefaultOllamaEmbedModel = "nomic-embed-text"
	DefaultOllamaLLMModel   = "llama3:instruct"
	defaultBatchConcurrency = 4
)

// OllamaConfig holds configuration for the Ollama adapters.
type OllamaConfig struct {
	BaseURL        string
	EmbeddingModel string
	LLMModel       string
	Timeout        time.Duration
}

func (c *OllamaConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultOllamaURL
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = DefaultOllamaEmbedModel
	}
	if c.LLMModel == "" {
		c.LLMModel = DefaultOllamaLLMModel
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// OllamaEmbedder generates embeddings using Ollama.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	cfg.applyDefaults()
	return &OllamaEmbedder{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.EmbeddingModel,
	}
}

// Embed generates a vector embedding for the given text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := postJSON(ctx, e.client, e.baseURL+"/api/embeddings", embedRequest{Model: e.model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("ollama: empty embedding for model %s", e.model)
	}
	return toFloat32(resp.Embedding), nil
}

// EmbedBatch embeds texts concurrently, preserving input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultBatchConcurrency)
	for i, text := range texts {
		g.Go(func() error {
			v, err := e.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// OllamaGenerator completes prompts using Ollama's generate endpoint.
type OllamaGenerator struct {
	client  *http.Client
	baseURL string
	model   string
}

// NewOllamaGenerator creates a new Ollama generator.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	cfg.applyDefaults()
	return &OllamaGenerator{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		model:   cfg.LLMModel,
	}
}

// Generate sends a non-streaming completion request.
func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	if err := postJSON(ctx, g.client, g.baseURL+"/api/generate", generateRequest{Model: g.model, Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	return resp.Response, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
