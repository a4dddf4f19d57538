package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/domain"
	"github.com/liliang-cn/oraculo/internal/hasher"
	"github.com/liliang-cn/oraculo/internal/metrics"
)

// Catalog outcomes
const (
	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

const previewEllipsis = "..."

// ErrUnsupportedFile is returned for uploads that are not PDFs
var ErrUnsupportedFile = errors.New("unsupported file type")

// DocumentExtractor turns a file into text
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) domain.Extraction
}

// CatalogResult reports the cataloging of one file
type CatalogResult struct {
	Path     string           `json:"path"`
	Outcome  string           `json:"outcome"`
	Document *domain.Document `json:"document,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// CatalogSummary reports a folder catalog run
type CatalogSummary struct {
	Found      int `json:"found"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	NoText     int `json:"no_text"`
	UsedOCR    int `json:"used_ocr"`
}

// UpdateSummary reports a catalog run followed by an index run
type UpdateSummary struct {
	Catalog CatalogSummary `json:"catalog"`
	Index   IndexSummary   `json:"index"`
}

// UploadResult reports an uploaded document
type UploadResult struct {
	CatalogResult
	Chunks int `json:"chunks"`
}

// IngestService catalogs PDF files and feeds them to the indexer
type IngestService struct {
	catalog       Catalog
	extractor     DocumentExtractor
	indexer       *Indexer
	storage       config.StorageConfig
	previewLength int
	logger        *zap.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(
	catalog Catalog,
	extractor DocumentExtractor,
	indexer *Indexer,
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		catalog:       catalog,
		extractor:     extractor,
		indexer:       indexer,
		storage:       cfg.Storage,
		previewLength: cfg.Catalog.PreviewLength,
		logger:        logger.Named("ingest"),
		metrics:       m,
		now:           time.Now,
	}
}

// FindPDFs lists the PDF files directly under dir. The extension match is
// case-insensitive and the result is sorted.
func FindPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// BuildPreview caps text at n characters, marking truncation with "...".
func BuildPreview(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + previewEllipsis
}

// CatalogFile fingerprints, extracts and records a single file. Files whose
// fingerprint is already cataloged are reported as duplicates without being
// extracted again.
func (s *IngestService) CatalogFile(ctx context.Context, path, displayName string) (CatalogResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if displayName == "" {
		displayName = filepath.Base(abs)
	}
	result := CatalogResult{Path: abs}
	log := s.logger.With(zap.String("file", displayName))

	hash, err := hasher.HashFile(abs)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		s.metrics.Cataloged(OutcomeFailed)
		return result, fmt.Errorf("hash %s: %w", displayName, err)
	}

	exists, err := s.catalog.ExistsByHash(ctx, hash)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		s.metrics.Cataloged(OutcomeFailed)
		return result, err
	}
	if exists {
		return s.duplicate(ctx, result, hash, log), nil
	}

	extraction := s.extractor.Extract(ctx, abs)
	doc := &domain.Document{
		DisplayName:      displayName,
		SourcePath:       abs,
		ContentHash:      hash,
		ExtractionStatus: extraction.Kind,
		ExtractionDetail: extraction.Detail(),
		UsedOCR:          extraction.UsedOCR,
		CatalogedAt:      s.now(),
	}
	if extraction.Kind == domain.ExtractionOK {
		text := extraction.Text
		doc.FullText = &text
		doc.PreviewText = BuildPreview(text, s.previewLength)
	}

	inserted, err := s.catalog.Insert(ctx, doc)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Error = err.Error()
		s.metrics.Cataloged(OutcomeFailed)
		return result, fmt.Errorf("insert %s: %w", displayName, err)
	}
	if !inserted {
		return s.duplicate(ctx, result, hash, log), nil
	}

	result.Outcome = OutcomeInserted
	result.Document = doc
	s.metrics.Cataloged(OutcomeInserted)
	log.Info("document cataloged",
		zap.Int64("document_id", doc.ID),
		zap.String("extraction", doc.ExtractionStatus),
		zap.Bool("used_ocr", doc.UsedOCR),
	)
	if doc.ExtractionStatus == domain.ExtractionFailed {
		log.Warn("extraction failed", zap.String("detail", doc.ExtractionDetail))
	}
	return result, nil
}

func (s *IngestService) duplicate(ctx context.Context, result CatalogResult, hash string, log *zap.Logger) CatalogResult {
	result.Outcome = OutcomeDuplicate
	if existing, err := s.catalog.GetByHash(ctx, hash); err == nil {
		result.Document = existing
	}
	s.metrics.Cataloged(OutcomeDuplicate)
	log.Info("document already cataloged")
	return result
}

// CatalogFolder catalogs every PDF under dir. Per-file failures are logged
// and counted.
func (s *IngestService) CatalogFolder(ctx context.Context, dir string) (CatalogSummary, error) {
	var summary CatalogSummary

	files, err := FindPDFs(dir)
	if err != nil {
		return summary, err
	}
	summary.Found = len(files)
	s.logger.Info("catalog run started", zap.String("folder", dir), zap.Int("files", len(files)))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.CatalogFile(ctx, path, "")
		if err != nil {
			s.logger.Error("failed to catalog file", zap.String("path", path), zap.Error(err))
		}
		switch res.Outcome {
		case OutcomeInserted:
			summary.Inserted++
			switch res.Document.ExtractionStatus {
			case domain.ExtractionNoText:
				summary.NoText++
			case domain.ExtractionFailed:
				summary.Failed++
			}
			if res.Document.UsedOCR {
				summary.UsedOCR++
			}
		case OutcomeDuplicate:
			summary.Duplicates++
		default:
			summary.Failed++
		}
	}

	s.logger.Info("catalog run finished",
		zap.Int("inserted", summary.Inserted),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
		zap.Int("no_text", summary.NoText),
	)
	return summary, nil
}

// Update catalogs the documents folder and then indexes pending documents.
func (s *IngestService) Update(ctx context.Context) (UpdateSummary, error) {
	var summary UpdateSummary

	if err := os.MkdirAll(s.storage.Documents, 0755); err != nil {
		return summary, fmt.Errorf("failed to create documents folder: %w", err)
	}

	cat, err := s.CatalogFolder(ctx, s.storage.Documents)
	summary.Catalog = cat
	if err != nil {
		return summary, err
	}

	idx, err := s.indexer.IndexPending(ctx)
	summary.Index = idx
	return summary, err
}

// UploadDocument stores an uploaded PDF, catalogs it and indexes it.
func (s *IngestService) UploadDocument(ctx context.Context, file *multipart.FileHeader) (*UploadResult, error) {
	if !isPDF(file.Filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(file.Filename))
	}

	if err := os.MkdirAll(s.storage.Uploads, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	storagePath := filepath.Join(s.storage.Uploads, uuid.New().String()+strings.ToLower(filepath.Ext(file.Filename)))

	if err := saveUpload(file, storagePath); err != nil {
		return nil, err
	}

	res, err := s.CatalogFile(ctx, storagePath, filepath.Base(file.Filename))
	if err != nil || res.Outcome != OutcomeInserted {
		_ = os.Remove(storagePath)
	}
	if err != nil {
		return nil, err
	}

	out := &UploadResult{CatalogResult: res}
	if res.Outcome != OutcomeInserted || res.Document.FullText == nil {
		return out, nil
	}

	n, err := s.indexer.IndexDocument(ctx, res.Document)
	if err != nil {
		// the document stays cataloged and is picked up by the next index run
		s.logger.Error("failed to index uploaded document",
			zap.Int64("document_id", res.Document.ID), zap.Error(err))
		return out, nil
	}
	out.Chunks = n
	out.Document.Indexed = n > 0
	return out, nil
}

func saveUpload(file *multipart.FileHeader, dst string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create storage file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("failed to save file: %w", err)
	}
	return out.Close()
}
