package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liliang-cn/oraculo/internal/vectorstore"
)

func TestKeywords(t *testing.T) {
	r := NewRetriever(newWordEmbedder(), newTestIndex(t), testRAG, nil, nil)

	tests := []struct {
		question string
		want     []string
	}{
		{"Qual é a data de nascimento do João?", []string{"data", "nascimento", "joão"}},
		{"certidão, certidão; CERTIDÃO!", []string{"certidão"}},
		{"qual é o ?", nil},
		{`Quanto veio a conta de "luz"?`, []string{"quanto", "veio", "conta", "luz"}},
		{"(escritura) ¿imóvel? «herança»", []string{"escritura", "imóvel", "herança"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Keywords(tt.question))
		})
	}
}

func TestBuildFilter(t *testing.T) {
	assert.Nil(t, BuildFilter(nil))
	assert.Equal(t, map[string]any{"$contains": "escritura"}, BuildFilter([]string{"escritura"}).Map())
	assert.Equal(t, map[string]any{"$or": []any{
		map[string]any{"$contains": "escritura"},
		map[string]any{"$contains": "imóvel"},
	}}, BuildFilter([]string{"escritura", "imóvel"}).Map())
}

func indexTexts(t *testing.T, embedder *wordEmbedder, index vectorstore.Index, texts map[string]string) {
	t.Helper()
	catalog := &memCatalog{}
	ix, err := NewIndexer(catalog, embedder, index, testRAG, nil, nil)
	require.NoError(t, err)
	for name, text := range texts {
		doc := seedDoc(t, catalog, name, text)
		_, err := ix.IndexDocument(context.Background(), doc)
		require.NoError(t, err)
	}
}

func TestRetrieve_KeywordFilterRestrictsResults(t *testing.T) {
	ctx := context.Background()
	embedder := newWordEmbedder("nascimento", "casamento", "imóvel")
	index := newTestIndex(t)
	indexTexts(t, embedder, index, map[string]string{
		"nascimento.pdf": "Certidão de nascimento de Maria",
		"casamento.pdf":  "Certidão de casamento de Maria e José",
		"escritura.pdf":  "Escritura do imóvel da rua das Flores",
	})
	r := NewRetriever(embedder, index, testRAG, nil, nil)

	got, err := r.Retrieve(ctx, "Qual é a certidão de casamento?", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "casamento.pdf", got[0].FileName)
	assert.LessOrEqual(t, got[0].Distance, got[1].Distance)
	for _, c := range got {
		assert.Contains(t, c.Text, "certidão")
	}

	got, err = r.Retrieve(ctx, "testamento", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_NoKeywordsIsPureSemantic(t *testing.T) {
	ctx := context.Background()
	embedder := newWordEmbedder("imóvel")
	index := newTestIndex(t)
	indexTexts(t, embedder, index, map[string]string{
		"a.pdf": "escritura do imóvel",
		"b.pdf": "boletim escolar",
	})
	r := NewRetriever(embedder, index, testRAG, nil, nil)

	got, err := r.Retrieve(ctx, "qual é o", 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = r.Retrieve(ctx, "qual é o", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRetrieve_EmbeddingError(t *testing.T) {
	embedder := newWordEmbedder()
	embedder.fail["quebrado"] = true
	r := NewRetriever(embedder, newTestIndex(t), testRAG, nil, nil)

	_, err := r.Retrieve(context.Background(), "quebrado", 3)
	assert.ErrorContains(t, err, "embed question")
}
