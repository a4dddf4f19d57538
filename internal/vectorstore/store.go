// Package vectorstore holds chunk embeddings and answers nearest-neighbour queries.
package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
)

// Metadata travels with every record and comes back on every match.
type Metadata struct {
	DocumentID  int64  `json:"document_id"`
	DisplayName string `json:"display_name"`
	ChunkIndex  int    `json:"chunk_index"`
}

// Record is one chunk to store. Document is the lowercase chunk text
// that filters are evaluated against.
type Record struct {
	ID       string
	Vector   []float32
	Document string
	Metadata Metadata
}

// Match is a query hit. Lower Distance is closer.
type Match struct {
	ID       string
	Document string
	Metadata Metadata
	Distance float64
}

// Index stores records and returns the n closest to a vector.
// Upserting an existing ID replaces it.
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, n int, filter *Filter) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// New opens the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.VectorStoreConfig, logger *zap.Logger) (Index, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return OpenSQLite(cfg.Path, logger)
	case "qdrant":
		return NewQdrant(ctx, QdrantConfig{
			URL:        cfg.URL,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", cfg.Backend)
	}
}
