package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID(t *testing.T) {
	assert.Equal(t, "doc7_chunk0", ChunkID(7, 0))
	assert.Equal(t, "doc12_chunk31", Chunk{DocumentID: 12, Index: 31}.ID())
}

func TestDocumentText(t *testing.T) {
	d := &Document{}
	assert.Equal(t, "", d.Text())

	text := "certidão"
	d.FullText = &text
	assert.Equal(t, "certidão", d.Text())
}

func TestExtractionConstructors(t *testing.T) {
	ok := ExtractedText("abc", true)
	assert.Equal(t, ExtractionOK, ok.Kind)
	assert.True(t, ok.UsedOCR)
	assert.Empty(t, ok.Detail())

	none := NoText(true)
	assert.Equal(t, ExtractionNoText, none.Kind)
	assert.Empty(t, none.Text)

	failed := ExtractionError(errors.New("boom"), false)
	assert.Equal(t, ExtractionFailed, failed.Kind)
	assert.Equal(t, "boom", failed.Detail())
}
