package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/provider"
	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

// keywordPunctuation is stripped from both ends of every question token.
const keywordPunctuation = "?,.:;!¿¡\"'()[]«»“”‘’"

// Retriever runs keyword-filtered semantic search
type Retriever struct {
	embedder  provider.Embedder
	index     vectorstore.Index
	stopWords map[string]struct{}
	topN      int
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewRetriever creates a new retriever
func NewRetriever(
	embedder provider.Embedder,
	index vectorstore.Index,
	cfg config.RAGConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	stop := make(map[string]struct{}, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 5
	}
	return &Retriever{
		embedder:  embedder,
		index:     index,
		stopWords: stop,
		topN:      topN,
		logger:    logger.Named("retriever"),
		metrics:   m,
	}
}

// Keywords lowercases question, splits on whitespace, strips surrounding
// punctuation and quotes and drops stop words. Order is kept; repeats are dropped.
func (r *Retriever) Keywords(question string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(question)) {
		tok = strings.Trim(tok, keywordPunctuation)
		if tok == "" {
			continue
		}
		if _, stop := r.stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// BuildFilter returns nil for no keywords, a single contains predicate for
// one, and an any-of predicate otherwise.
func BuildFilter(keywords []string) *vectorstore.Filter {
	switch len(keywords) {
	case 0:
		return nil
	case 1:
		return vectorstore.Contains(keywords[0])
	default:
		return vectorstore.AnyOf(keywords...)
	}
}

// Retrieve returns up to topN chunks ordered by ascending distance.
// topN <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, question string, topN int) ([]domain.RetrievedChunk, error) {
	if topN <= 0 {
		topN = r.topN
	}

	filter := BuildFilter(r.Keywords(question))

	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	matches, err := r.index.Query(ctx, vector, topN, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	out := make([]domain.RetrievedChunk, len(matches))
	for i, m := range matches {
		out[i] = domain.RetrievedChunk{
			ChunkID:    m.ID,
			Text:       m.Document,
			DocumentID: m.Metadata.DocumentID,
			FileName:   m.Metadata.DisplayName,
			ChunkIndex: m.Metadata.ChunkIndex,
			Distance:   m.Distance,
		}
	}

	r.metrics.Retrieved(len(out))
	r.logger.Debug("retrieved chunks",
		zap.Any("filter", filter.Map()),
		zap.Int("results", len(out)),
	)
	return out, nil
}
