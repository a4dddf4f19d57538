package domain

import (
	"fmt"
	"time"
)

// Extraction status constants (stored in the catalog)
const (
	ExtractionOK     = "ok"
	ExtractionNoText = "no_text"
	ExtractionFailed = "failed"
)

// Document is one cataloged source file
type Document struct {
	ID               int64     `json:"id"`
	DisplayName      string    `json:"display_name"`
	SourcePath       string    `json:"source_path"`
	ContentHash      string    `json:"content_hash"`
	FullText         *string   `json:"full_text,omitempty"`
	PreviewText      string    `json:"preview_text"`
	Indexed          bool      `json:"indexed"`
	ExtractionStatus string    `json:"extraction_status"`
	ExtractionDetail string    `json:"extraction_detail,omitempty"`
	UsedOCR          bool      `json:"used_ocr"`
	CatalogedAt      time.Time `json:"cataloged_at"`
}

// Text returns the full text or "" when none was extracted.
func (d *Document) Text() string {
	if d.FullText == nil {
		return ""
	}
	return *d.FullText
}

// Chunk is a bounded window of a document's text
type Chunk struct {
	DocumentID int64     `json:"document_id"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ID returns the chunk's stable identifier
func (c Chunk) ID() string {
	return ChunkID(c.DocumentID, c.Index)
}

// ChunkID formats the identifier shared by the catalog and the vector index
func ChunkID(documentID int64, index int) string {
	return fmt.Sprintf("doc%d_chunk%d", documentID, index)
}

// RetrievedChunk is a chunk returned by the retriever
type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	DocumentID int64   `json:"document_id"`
	FileName   string  `json:"file_name"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
}

// CatalogStats summarises the catalog
type CatalogStats struct {
	TotalDocuments int `json:"total_documents"`
	Indexed        int `json:"indexed"`
	Pending        int `json:"pending"`
	WithoutText    int `json:"without_text"`
	UsedOCR        int `json:"used_ocr"`
}

// DocumentListResponse is the response for listing documents
type DocumentListResponse struct {
	Documents []*Document `json:"documents"`
	Total     int         `json:"total"`
}
