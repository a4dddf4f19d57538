// Package extractor pulls text out of PDFs, falling back to OCR for scans.
package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/domain"
)

// DefaultMinTextLength is the trimmed text length below which OCR kicks in.
const DefaultMinTextLength = 100

// Extractor runs the direct text layer and the OCR fallback.
type Extractor struct {
	textLayer     TextLayer
	ocr           OCR
	minTextLength int
	logger        *zap.Logger
}

// New creates an Extractor. A nil ocr disables the fallback.
func New(textLayer TextLayer, ocr OCR, minTextLength int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	return &Extractor{
		textLayer:     textLayer,
		ocr:           ocr,
		minTextLength: minTextLength,
		logger:        logger.Named("extractor"),
	}
}

// Extract never returns an error: every failure is folded into a failed result.
// An empty text layer always goes to OCR.
func (e *Extractor) Extract(ctx context.Context, path string) domain.Extraction {
	text, err := e.textLayer.Text(ctx, path)
	if err != nil {
		e.logger.Warn("text layer failed", zap.String("path", path), zap.Error(err))
		return domain.ExtractionError(err, false)
	}
	if n := trimmedLen(text); n > 0 && n >= e.minTextLength {
		return domain.ExtractedText(text, false)
	}

	if e.ocr == nil {
		if trimmedLen(text) > 0 {
			return domain.ExtractedText(text, false)
		}
		return domain.NoText(false)
	}

	e.logger.Info("text layer too short, running OCR",
		zap.String("path", path),
		zap.Int("chars", trimmedLen(text)),
	)
	return e.extractWithOCR(ctx, path)
}

func (e *Extractor) extractWithOCR(ctx context.Context, path string) domain.Extraction {
	tmpDir, err := os.MkdirTemp("", "oraculo-ocr-*")
	if err != nil {
		return domain.ExtractionError(fmt.Errorf("create temp dir: %w", err), true)
	}
	defer os.RemoveAll(tmpDir)

	output := filepath.Join(tmpDir, "ocr.pdf")
	if err := e.ocr.OCR(ctx, path, output); err != nil {
		e.logger.Warn("OCR failed", zap.String("path", path), zap.Error(err))
		return domain.ExtractionError(err, true)
	}

	text, err := e.textLayer.Text(ctx, output)
	if err != nil {
		return domain.ExtractionError(fmt.Errorf("read OCR output: %w", err), true)
	}
	if strings.TrimSpace(text) == "" {
		return domain.NoText(true)
	}
	return domain.ExtractedText(text, true)
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
