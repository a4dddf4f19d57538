package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dslipak/pdf"
)

// TextLayer reads the embedded text of a PDF, page by page.
type TextLayer interface {
	Text(ctx context.Context, path string) (string, error)
}

// NativeTextLayer reads PDFs in process.
type NativeTextLayer struct{}

// Text returns every page's plain text joined with "\n".
func (NativeTextLayer) Text(ctx context.Context, path string) (text string, err error) {
	// the PDF parser panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf %s: %w", path, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf %s: %w", path, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read page %d of %s: %w", i, path, err)
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

// PDFToTextLayer shells out to poppler's pdftotext.
type PDFToTextLayer struct {
	runner CommandRunner
}

// NewPDFToTextLayer creates a pdftotext-backed text layer.
func NewPDFToTextLayer(runner CommandRunner) *PDFToTextLayer {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFToTextLayer{runner: runner}
}

// Text runs pdftotext and converts its form feeds into page separators.
func (l *PDFToTextLayer) Text(ctx context.Context, path string) (string, error) {
	out, err := l.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	text := strings.TrimRight(string(out), "\f")
	return strings.ReplaceAll(text, "\f", "\n"), nil
}
