package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/liliang-cn/oraculo/internal/domain"
)

const documentColumns = `id, display_name, source_path, content_hash, full_text, preview_text,
	extraction_status, extraction_detail, used_ocr, indexed, cataloged_at`

// DocumentRepository is the document catalog
type DocumentRepository struct {
	db *DB
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Insert adds doc to the catalog. A row with the same content hash or source
// path already present makes this a no-op reporting inserted=false.
// On insertion doc.ID and doc.CatalogedAt are filled in.
func (r *DocumentRepository) Insert(ctx context.Context, doc *domain.Document) (bool, error) {
	if doc.CatalogedAt.IsZero() {
		doc.CatalogedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (display_name, source_path, content_hash, full_text, preview_text,
			extraction_status, extraction_detail, used_ocr, indexed, cataloged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT DO NOTHING
	`, doc.DisplayName, doc.SourcePath, doc.ContentHash, doc.FullText, doc.PreviewText,
		doc.ExtractionStatus, doc.ExtractionDetail, doc.UsedOCR, doc.CatalogedAt)
	if err != nil {
		return false, fmt.Errorf("insert document %s: %w", doc.SourcePath, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return true, err
	}
	doc.ID = id
	doc.Indexed = false
	return true, nil
}

// MarkIndexed flips the indexed flag. Marking an already indexed document is a no-op.
func (r *DocumentRepository) MarkIndexed(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET indexed = 1 WHERE id = ? AND indexed = 0`, id)
	if err != nil {
		return fmt.Errorf("mark document %d indexed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// ListUnindexedWithText returns documents that have text but no vectors yet
func (r *DocumentRepository) ListUnindexedWithText(ctx context.Context) ([]*domain.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE full_text IS NOT NULL AND TRIM(full_text) != '' AND indexed = 0
		ORDER BY id`)
}

// Get retrieves a document by ID
func (r *DocumentRepository) Get(ctx context.Context, id int64) (*domain.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
}

// GetByHash retrieves a document by content hash
func (r *DocumentRepository) GetByHash(ctx context.Context, hash string) (*domain.Document, error) {
	return r.queryOne(ctx, `SELECT `+documentColumns+` FROM documents WHERE content_hash = ?`, hash)
}

// ExistsByHash reports whether a document with hash is cataloged
func (r *DocumentRepository) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE content_hash = ?`, hash).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List retrieves all documents in catalog order
func (r *DocumentRepository) List(ctx context.Context) ([]*domain.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY id`)
}

// FindByName returns documents whose display name contains pattern
func (r *DocumentRepository) FindByName(ctx context.Context, pattern string) ([]*domain.Document, error) {
	return r.query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE display_name LIKE '%' || ? || '%' ORDER BY id`, pattern)
}

// Stats summarises the catalog
func (r *DocumentRepository) Stats(ctx context.Context) (*domain.CatalogStats, error) {
	stats := &domain.CatalogStats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN indexed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN indexed = 0 AND full_text IS NOT NULL AND TRIM(full_text) != '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN full_text IS NULL OR TRIM(full_text) = '' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(used_ocr), 0)
		FROM documents
	`).Scan(&stats.TotalDocuments, &stats.Indexed, &stats.Pending, &stats.WithoutText, &stats.UsedOCR)
	if err != nil {
		return nil, fmt.Errorf("catalog stats: %w", err)
	}
	return stats, nil
}

func (r *DocumentRepository) queryOne(ctx context.Context, query string, args ...any) (*domain.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*domain.Document, error) {
	doc := &domain.Document{}
	var fullText sql.NullString
	err := s.Scan(&doc.ID, &doc.DisplayName, &doc.SourcePath, &doc.ContentHash, &fullText,
		&doc.PreviewText, &doc.ExtractionStatus, &doc.ExtractionDetail, &doc.UsedOCR,
		&doc.Indexed, &doc.CatalogedAt)
	if err != nil {
		return nil, err
	}
	if fullText.Valid {
		doc.FullText = &fullText.String
	}
	return doc, nil
}
