package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/liliang-cn/oraculo/internal/chunker"
	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/provider"
	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

// Catalog is the subset of the document repository used by services
type Catalog interface {
	Insert(ctx context.Context, doc *domain.Document) (bool, error)
	ExistsByHash(ctx context.Context, hash string) (bool, error)
	GetByHash(ctx context.Context, hash string) (*domain.Document, error)
	MarkIndexed(ctx context.Context, id int64) error
	ListUnindexedWithText(ctx context.Context) ([]*domain.Document, error)
}

// IndexSummary reports an indexing run
type IndexSummary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

// Indexer chunks, embeds and upserts cataloged documents
type Indexer struct {
	catalog     Catalog
	embedder    provider.Embedder
	index       vectorstore.Index
	chunker     *chunker.Chunker
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// NewIndexer creates a new indexer
func NewIndexer(
	catalog Catalog,
	embedder provider.Embedder,
	index vectorstore.Index,
	cfg config.RAGConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) (*Indexer, error) {
	c, err := chunker.New(chunker.WithChunkSize(cfg.ChunkSize), chunker.WithOverlap(cfg.ChunkOverlap))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.IndexConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		catalog:     catalog,
		embedder:    embedder,
		index:       index,
		chunker:     c,
		concurrency: concurrency,
		logger:      logger.Named("indexer"),
		metrics:     m,
	}, nil
}

// IndexDocument upserts every chunk of doc and then marks it indexed.
// Documents without text are skipped and report zero chunks.
func (ix *Indexer) IndexDocument(ctx context.Context, doc *domain.Document) (int, error) {
	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		ix.logger.Info("skipping document without text", zap.Int64("document_id", doc.ID))
		return 0, nil
	}

	chunks := ix.chunker.Split(strings.ToLower(text))
	if len(chunks) == 0 {
		ix.logger.Info("skipping document without chunks", zap.Int64("document_id", doc.ID))
		return 0, nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed document %d: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed document %d: got %d vectors for %d chunks", doc.ID, len(vectors), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = vectorstore.Record{
			ID:       domain.ChunkID(doc.ID, i),
			Vector:   vectors[i],
			Document: chunk,
			Metadata: vectorstore.Metadata{
				DocumentID:  doc.ID,
				DisplayName: doc.DisplayName,
				ChunkIndex:  i,
			},
		}
	}

	if err := ix.index.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert document %d: %w", doc.ID, err)
	}
	if err := ix.catalog.MarkIndexed(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("mark document %d indexed: %w", doc.ID, err)
	}

	ix.logger.Info("document indexed",
		zap.Int64("document_id", doc.ID),
		zap.String("display_name", doc.DisplayName),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// IndexPending indexes every cataloged document that has text and no vectors.
// Per-document failures are logged and counted; only listing the queue can fail the run.
func (ix *Indexer) IndexPending(ctx context.Context) (IndexSummary, error) {
	var summary IndexSummary

	docs, err := ix.catalog.ListUnindexedWithText(ctx)
	if err != nil {
		return summary, fmt.Errorf("list pending documents: %w", err)
	}
	if len(docs) == 0 {
		ix.logger.Info("no documents pending indexing")
		return summary, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for _, doc := range docs {
		g.Go(func() error {
			n, err := ix.IndexDocument(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				ix.metrics.Indexed("failed", 0)
				ix.logger.Error("failed to index document", zap.Int64("document_id", doc.ID), zap.Error(err))
			case n == 0:
				summary.Skipped++
				ix.metrics.Indexed("skipped", 0)
			default:
				summary.Indexed++
				summary.Chunks += n
				ix.metrics.Indexed("ok", n)
			}
			return nil
		})
	}
	_ = g.Wait()

	ix.logger.Info("indexing run finished",
		zap.Int("indexed", summary.Indexed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("chunks", summary.Chunks),
	)
	return summary, ctx.Err()
}
