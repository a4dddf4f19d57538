package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/extractor"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/provider"
	"github.com/liliang-cn/oraculo/internal/repository"
	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

// embedderProbeTimeout bounds the startup reachability check of the embedding service.
const embedderProbeTimeout = 10 * time.Second

// Orchestrator owns the long-lived handles shared by the services. Each
// handle is opened on first use and at most once.
type Orchestrator struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	dbOnce sync.Once
	db     *repository.DB
	docs   *repository.DocumentRepository
	dbErr  error

	providerOnce sync.Once
	embedder     provider.Embedder
	generator    provider.Generator
	providerErr  error

	indexOnce sync.Once
	index     vectorstore.Index
	indexErr  error

	convOnce     sync.Once
	convMu       sync.RWMutex
	conversation *Conversation
	dispatcher   *Dispatcher
	convErr      error
}

// NewOrchestrator creates an orchestrator. Nothing is opened until needed.
func NewOrchestrator(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, logger: logger, metrics: m}
}

// Config returns the configuration the orchestrator was built with
func (o *Orchestrator) Config() *config.Config {
	return o.cfg
}

// Metrics returns the shared metrics, possibly nil
func (o *Orchestrator) Metrics() *metrics.Metrics {
	return o.metrics
}

// Documents returns the document catalog
func (o *Orchestrator) Documents() (*repository.DocumentRepository, error) {
	o.dbOnce.Do(func() {
		db, err := repository.NewDB(o.cfg.Database.Path)
		if err != nil {
			o.dbErr = fmt.Errorf("open catalog: %w", err)
			return
		}
		o.db = db
		o.docs = repository.NewDocumentRepository(db)
		o.logger.Info("catalog opened", zap.String("path", o.cfg.Database.Path))
	})
	return o.docs, o.dbErr
}

// Providers returns the embedding and generation backends. The embedder is
// called once before first use; an unreachable service is an error.
func (o *Orchestrator) Providers(ctx context.Context) (provider.Embedder, provider.Generator, error) {
	o.providerOnce.Do(func() {
		embedder, generator, err := provider.New(ctx, o.cfg.LLM)
		if err != nil {
			o.providerErr = fmt.Errorf("create llm provider: %w", err)
			return
		}
		dims, err := probeEmbedder(ctx, embedder)
		if err != nil {
			o.providerErr = fmt.Errorf("embedding service %s (model %s) is not reachable: %w",
				o.cfg.LLM.BaseURL, o.cfg.LLM.EmbeddingModel, err)
			return
		}
		if o.cfg.VectorStore.Backend == "qdrant" && dims != o.cfg.VectorStore.Dimensions {
			o.providerErr = fmt.Errorf("embedding model %s returns %d dimensions, vector_store.dimensions is %d",
				o.cfg.LLM.EmbeddingModel, dims, o.cfg.VectorStore.Dimensions)
			return
		}
		o.embedder, o.generator = embedder, generator
		o.logger.Info("llm provider ready",
			zap.String("provider", o.cfg.LLM.Provider),
			zap.String("embedding_model", o.cfg.LLM.EmbeddingModel),
			zap.Int("embedding_dims", dims),
			zap.String("llm_model", o.cfg.LLM.LLMModel),
		)
	})
	return o.embedder, o.generator, o.providerErr
}

func probeEmbedder(ctx context.Context, embedder provider.Embedder) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, embedderProbeTimeout)
	defer cancel()
	v, err := embedder.Embed(ctx, "ping")
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, errors.New("empty embedding returned")
	}
	return len(v), nil
}

// Index returns the vector index
func (o *Orchestrator) Index(ctx context.Context) (vectorstore.Index, error) {
	o.indexOnce.Do(func() {
		o.index, o.indexErr = vectorstore.New(ctx, o.cfg.VectorStore, o.logger)
		if o.indexErr != nil {
			o.indexErr = fmt.Errorf("open vector index: %w", o.indexErr)
		}
	})
	return o.index, o.indexErr
}

// Extractor builds the text extractor from configuration
func (o *Orchestrator) Extractor() *extractor.Extractor {
	cfg := o.cfg.Extractor
	runner := extractor.ExecRunner{}

	var layer extractor.TextLayer = extractor.NativeTextLayer{}
	if cfg.TextLayer == "pdftotext" {
		layer = extractor.NewPDFToTextLayer(runner)
	}

	var ocr extractor.OCR
	if cfg.OCRCommand != "" {
		engine := extractor.NewOCRMyPDF(runner, cfg.OCRCommand, cfg.OCRLanguage)
		engine.Timeout = cfg.OCRTimeout
		ocr = engine
	}
	return extractor.New(layer, ocr, cfg.MinTextLength, o.logger)
}

// Indexer builds an indexer over the shared handles
func (o *Orchestrator) Indexer(ctx context.Context) (*Indexer, error) {
	docs, err := o.Documents()
	if err != nil {
		return nil, err
	}
	embedder, _, err := o.Providers(ctx)
	if err != nil {
		return nil, err
	}
	index, err := o.Index(ctx)
	if err != nil {
		return nil, err
	}
	return NewIndexer(docs, embedder, index, o.cfg.RAG, o.logger, o.metrics)
}

// Retriever builds a retriever over the shared handles
func (o *Orchestrator) Retriever(ctx context.Context) (*Retriever, error) {
	embedder, _, err := o.Providers(ctx)
	if err != nil {
		return nil, err
	}
	index, err := o.Index(ctx)
	if err != nil {
		return nil, err
	}
	return NewRetriever(embedder, index, o.cfg.RAG, o.logger, o.metrics), nil
}

// Ingest builds the ingestion service
func (o *Orchestrator) Ingest(ctx context.Context) (*IngestService, error) {
	docs, err := o.Documents()
	if err != nil {
		return nil, err
	}
	indexer, err := o.Indexer(ctx)
	if err != nil {
		return nil, err
	}
	return NewIngestService(docs, o.Extractor(), indexer, o.cfg, o.logger, o.metrics), nil
}

// Conversation returns the process-wide conversation service and its dispatcher
func (o *Orchestrator) Conversation(ctx context.Context) (*Conversation, *Dispatcher, error) {
	o.convOnce.Do(func() {
		retriever, err := o.Retriever(ctx)
		if err != nil {
			o.convErr = err
			return
		}
		_, generator, err := o.Providers(ctx)
		if err != nil {
			o.convErr = err
			return
		}
		conversation := NewConversation(retriever, generator, o.cfg.Chat, o.cfg.RAG.TopN, o.cfg.LLM.Timeout, o.logger, o.metrics)
		dispatcher := NewDispatcher(conversation, o.cfg.Chat.Workers, o.cfg.Chat.QueueSize, o.logger)

		o.convMu.Lock()
		o.conversation, o.dispatcher = conversation, dispatcher
		o.convMu.Unlock()
	})
	if o.convErr != nil {
		return nil, nil, o.convErr
	}
	return o.conversation, o.dispatcher, nil
}

// started returns the conversation if it has been built, without building it.
func (o *Orchestrator) started() (*Conversation, *Dispatcher) {
	o.convMu.RLock()
	defer o.convMu.RUnlock()
	return o.conversation, o.dispatcher
}

// Stats collects catalog, index and session counters
func (o *Orchestrator) Stats(ctx context.Context) (*domain.Stats, error) {
	docs, err := o.Documents()
	if err != nil {
		return nil, err
	}
	catalog, err := docs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats := &domain.Stats{Catalog: *catalog}

	index, err := o.Index(ctx)
	if err != nil {
		return nil, err
	}
	if stats.IndexedChunks, err = index.Count(ctx); err != nil {
		return nil, err
	}
	if conversation, _ := o.started(); conversation != nil {
		stats.ActiveSessions = conversation.ActiveSessions()
	}
	return stats, nil
}

// Close drains the dispatcher and releases the index and catalog
func (o *Orchestrator) Close() error {
	var errs []error
	if _, dispatcher := o.started(); dispatcher != nil {
		dispatcher.Close()
	}
	if o.index != nil {
		if err := o.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close vector index: %w", err))
		}
	}
	if o.db != nil {
		if err := o.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}
