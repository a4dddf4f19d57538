package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	ragodomain "github.com/liliang-cn/rago/v2/pkg/domain"
	ragstore "github.com/liliang-cn/rago/v2/pkg/rag/store"
	"github.com/liliang-cn/sqvect/v2/pkg/core"
	"go.uber.org/zap"
)

// textKey holds the lowercase chunk text in record metadata so LIKE
// predicates can run inside SQLite before ranking.
const textKey = "text"

// SQLiteIndex stores chunks in a sqvect database through the rago store.
type SQLiteIndex struct {
	store  *ragstore.SQLiteStore
	core   *core.SQLiteStore
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the sqvect database at path with a flat index.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, errors.New("vectorstore: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create vector store directory: %w", err)
	}

	store, err := ragstore.NewSQLiteStore(path, "flat")
	if err != nil {
		return nil, fmt.Errorf("open vector store %s: %w", path, err)
	}

	idx := &SQLiteIndex{
		store:  store,
		core:   store.GetSqvectStore(),
		logger: logger.Named("vectorstore.sqlite"),
	}
	idx.logger.Info("vector store opened", zap.String("path", path))
	return idx, nil
}

// Upsert inserts or replaces records by ID.
func (s *SQLiteIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	chunks := make([]ragodomain.Chunk, len(records))
	for i, r := range records {
		if r.ID == "" {
			return errors.New("vectorstore: record id is required")
		}
		if len(r.Vector) == 0 {
			return fmt.Errorf("vectorstore: record %q has an empty vector", r.ID)
		}
		vector := make([]float64, len(r.Vector))
		for j, v := range r.Vector {
			vector[j] = float64(v)
		}
		chunks[i] = ragodomain.Chunk{
			ID:         r.ID,
			DocumentID: strconv.FormatInt(r.Metadata.DocumentID, 10),
			Content:    r.Document,
			Vector:     vector,
			Metadata: map[string]interface{}{
				"document_id":  strconv.FormatInt(r.Metadata.DocumentID, 10),
				"display_name": r.Metadata.DisplayName,
				"chunk_index":  strconv.Itoa(r.Metadata.ChunkIndex),
				textKey:        r.Document,
			},
		}
	}

	if err := s.store.Store(ctx, chunks); err != nil {
		return fmt.Errorf("vectorstore: upsert: %w", err)
	}
	return nil
}

// Query returns up to n matches ordered by ascending cosine distance, ties by ID.
// The filter narrows candidates in SQL and is re-checked exactly before the cut.
func (s *SQLiteIndex) Query(ctx context.Context, vector []float32, n int, filter *Filter) ([]Match, error) {
	if len(vector) == 0 {
		return nil, errors.New("vectorstore: query vector required")
	}
	if n <= 0 {
		return []Match{}, nil
	}

	results, err := s.core.SearchWithAdvancedFilter(ctx, vector, core.AdvancedSearchOptions{
		PreFilter: likeFilter(filter),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		if len(r.Vector) != len(vector) || !filter.Matches(r.Content) {
			continue
		}
		matches = append(matches, Match{
			ID:       r.ID,
			Document: r.Content,
			Metadata: metadataFromStrings(r.Metadata),
			Distance: 1 - r.Score,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// Count returns the number of stored records.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	stats, err := s.core.Stats(ctx)
	if err != nil {
		return 0, fmt.Errorf("vectorstore: count: %w", err)
	}
	return int(stats.Count), nil
}

// Close releases the database.
func (s *SQLiteIndex) Close() error {
	return s.store.Close()
}

// likeFilter translates a keyword filter into sqvect LIKE predicates.
// LIKE wildcards in keywords only widen the candidate set; Query re-checks
// every candidate with Filter.Matches.
func likeFilter(f *Filter) *core.FilterExpression {
	if f == nil {
		return nil
	}
	if len(f.Or) == 0 {
		return &core.FilterExpression{
			Operator: core.FilterLIKE,
			Field:    textKey,
			Value:    "%" + f.Contains + "%",
		}
	}
	children := make([]*core.FilterExpression, 0, len(f.Or))
	for i := range f.Or {
		children = append(children, likeFilter(&f.Or[i]))
	}
	return &core.FilterExpression{Operator: core.FilterOR, Children: children}
}

func metadataFromStrings(m map[string]string) Metadata {
	docID, _ := strconv.ParseInt(m["document_id"], 10, 64)
	chunkIndex, _ := strconv.Atoi(m["chunk_index"])
	return Metadata{
		DocumentID:  docID,
		DisplayName: m["display_name"],
		ChunkIndex:  chunkIndex,
	}
}
