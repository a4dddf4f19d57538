package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

var testRAG = config.RAGConfig{
	ChunkSize:        1000,
	ChunkOverlap:     150,
	TopN:             5,
	StopWords:        []string{"qual", "é", "a", "o", "de", "do", "da"},
	IndexConcurrency: 2,
}

func seedDoc(t *testing.T, catalog *memCatalog, name, text string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		DisplayName:      name,
		SourcePath:       "/docs/" + name,
		ContentHash:      "hash-" + name,
		ExtractionStatus: domain.ExtractionOK,
	}
	if text != "" {
		doc.FullText = &text
	}
	inserted, err := catalog.Insert(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, inserted)
	return doc
}

func TestIndexDocument_UpsertsChunksAndMarksIndexed(t *testing.T) {
	ctx := context.Background()
	catalog := &memCatalog{}
	index := newTestIndex(t)
	ix, err := NewIndexer(catalog, newWordEmbedder("certidão"), index, testRAG, nil, nil)
	require.NoError(t, err)

	doc := seedDoc(t, catalog, "Certidao.pdf", "CERTIDÃO "+strings.Repeat("x", 2491))

	n, err := ix.IndexDocument(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	matches, err := index.Query(ctx, []float32{1, 0}, 1, vectorstore.Contains("certidão"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "doc1_chunk0", matches[0].ID)
	assert.Equal(t, "Certidao.pdf", matches[0].Metadata.DisplayName)
	assert.Equal(t, int64(1), matches[0].Metadata.DocumentID)
	assert.True(t, strings.HasPrefix(matches[0].Document, "certidão"))

	assert.True(t, catalog.all()[0].Indexed)

	// re-indexing the same document replaces the same ids
	_, err = ix.IndexDocument(ctx, doc)
	require.NoError(t, err)
	count, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestIndexDocument_ReindexKeepsChunkIDs(t *testing.T) {
	ctx := context.Background()
	catalog := &memCatalog{}
	index := newTestIndex(t)
	ix, err := NewIndexer(catalog, newWordEmbedder("escritura"), index, testRAG, nil, nil)
	require.NoError(t, err)

	doc := seedDoc(t, catalog, "Escritura.pdf", "Escritura "+strings.Repeat("y", 1800))

	ids := func() []string {
		matches, err := index.Query(ctx, []float32{1, 0}, 100, nil)
		require.NoError(t, err)
		out := make([]string, len(matches))
		for i, m := range matches {
			out[i] = m.ID
		}
		return out
	}

	first, err := ix.IndexDocument(ctx, doc)
	require.NoError(t, err)
	before := ids()

	second, err := ix.IndexDocument(ctx, doc)
	require.NoError(t, err)
	after := ids()

	assert.Equal(t, first, second)
	assert.ElementsMatch(t, []string{"doc1_chunk0", "doc1_chunk1"}, before)
	assert.ElementsMatch(t, before, after)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(before), count)
}

func TestIndexDocument_SkipsBlankText(t *testing.T) {
	ctx := context.Background()
	catalog := &memCatalog{}
	index := newTestIndex(t)
	embedder := newWordEmbedder()
	ix, err := NewIndexer(catalog, embedder, index, testRAG, nil, nil)
	require.NoError(t, err)

	doc := seedDoc(t, catalog, "branco.pdf", "   \n\t ")

	n, err := ix.IndexDocument(ctx, doc)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, embedder.calls)
	assert.False(t, catalog.all()[0].Indexed)
}

func TestIndexPending_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	catalog := &memCatalog{}
	index := newTestIndex(t)
	embedder := newWordEmbedder("casamento")
	embedder.fail["corrompido"] = true
	ix, err := NewIndexer(catalog, embedder, index, testRAG, nil, nil)
	require.NoError(t, err)

	seedDoc(t, catalog, "a.pdf", "certidão de casamento")
	seedDoc(t, catalog, "b.pdf", "conteúdo corrompido")
	seedDoc(t, catalog, "c.pdf", "escritura do imóvel")
	seedDoc(t, catalog, "d.pdf", "")

	summary, err := ix.IndexPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, IndexSummary{Indexed: 2, Failed: 1, Chunks: 2}, summary)

	pending, err := catalog.ListUnindexedWithText(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b.pdf", pending[0].DisplayName)

	// a second run only retries the failed document
	embedder.fail = map[string]bool{}
	summary, err = ix.IndexPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, IndexSummary{Indexed: 1, Chunks: 1}, summary)
}

func TestNewIndexer_RejectsInvalidChunking(t *testing.T) {
	cfg := testRAG
	cfg.ChunkOverlap = cfg.ChunkSize
	_, err := NewIndexer(&memCatalog{}, newWordEmbedder(), newTestIndex(t), cfg, nil, nil)
	assert.Error(t, err)
}
