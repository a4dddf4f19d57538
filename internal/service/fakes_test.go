package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

func newTestIndex(t *testing.T) *vectorstore.SQLiteIndex {
	t.Helper()
	idx, err := vectorstore.OpenSQLite(filepath.Join(t.TempDir(), "vectors.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// memCatalog is an in-memory Catalog with the same dedup rules as SQLite.
type memCatalog struct {
	mu     sync.Mutex
	nextID int64
	docs   []*domain.Document
}

func (c *memCatalog) Insert(_ context.Context, doc *domain.Document) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.ContentHash == doc.ContentHash || d.SourcePath == doc.SourcePath {
			return false, nil
		}
	}
	c.nextID++
	doc.ID = c.nextID
	cp := *doc
	c.docs = append(c.docs, &cp)
	return true, nil
}

func (c *memCatalog) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	_, err := c.GetByHash(ctx, hash)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *memCatalog) GetByHash(_ context.Context, hash string) (*domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.ContentHash == hash {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (c *memCatalog) MarkIndexed(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.ID == id {
			d.Indexed = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (c *memCatalog) ListUnindexedWithText(_ context.Context) ([]*domain.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Document
	for _, d := range c.docs {
		if !d.Indexed && strings.TrimSpace(d.Text()) != "" {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *memCatalog) all() []*domain.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Document(nil), c.docs...)
}

// wordEmbedder maps text to a vector of hits against a fixed vocabulary,
// so texts sharing words end up close together.
type wordEmbedder struct {
	vocab []string
	fail  map[string]bool

	mu    sync.Mutex
	calls int
}

func newWordEmbedder(vocab ...string) *wordEmbedder {
	return &wordEmbedder{vocab: vocab, fail: map[string]bool{}}
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	for marker := range e.fail {
		if strings.Contains(text, marker) {
			return nil, errors.New("embedding backend unavailable")
		}
	}
	v := make([]float32, len(e.vocab)+1)
	v[len(e.vocab)] = 0.01
	lower := strings.ToLower(text)
	for i, w := range e.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedGenerator records prompts and returns canned answers.
type scriptedGenerator struct {
	mu      sync.Mutex
	prompts []string
	answer  func(prompt string) (string, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	answer := g.answer
	g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if answer == nil {
		return "resposta", nil
	}
	return answer(prompt)
}

func (g *scriptedGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// stubRetriever returns fixed chunks.
type stubRetriever struct {
	chunks []domain.RetrievedChunk
	err    error
}

func (r *stubRetriever) Retrieve(context.Context, string, int) ([]domain.RetrievedChunk, error) {
	return r.chunks, r.err
}

// stubExtractor returns a fixed extraction per file base name.
type stubExtractor struct {
	mu      sync.Mutex
	results map[string]domain.Extraction
	calls   int
}

func (e *stubExtractor) Extract(_ context.Context, path string) domain.Extraction {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	for name, res := range e.results {
		if strings.HasSuffix(path, name) {
			return res
		}
	}
	return domain.ExtractedText("conteúdo do documento "+path, false)
}
