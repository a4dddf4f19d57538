package extractor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

var (
	// ErrOCRMissingDependency means the OCR engine or one of its tools is absent.
	ErrOCRMissingDependency = errors.New("ocr: missing dependency")
	// ErrEncryptedInput means the PDF is password protected.
	ErrEncryptedInput = errors.New("ocr: encrypted input")
)

// ocrmypdf exit codes
const (
	exitMissingDependency = 3
	exitEncryptedPDF      = 8
)

// OCR writes a searchable copy of input to output.
type OCR interface {
	OCR(ctx context.Context, input, output string) error
}

// OCRMyPDF drives the ocrmypdf command line tool.
type OCRMyPDF struct {
	runner   CommandRunner
	command  string
	language string
	// Timeout bounds a single run; zero means no limit.
	Timeout time.Duration
}

// NewOCRMyPDF creates the ocrmypdf adapter.
func NewOCRMyPDF(runner CommandRunner, command, language string) *OCRMyPDF {
	if runner == nil {
		runner = ExecRunner{}
	}
	if command == "" {
		command = "ocrmypdf"
	}
	if language == "" {
		language = "por"
	}
	return &OCRMyPDF{runner: runner, command: command, language: language}
}

// OCR rasterises every page and adds a text layer.
func (o *OCRMyPDF) OCR(ctx context.Context, input, output string) error {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	_, err := o.runner.Run(ctx, o.command,
		"--language", o.language,
		"--force-ocr",
		"--deskew",
		"--quiet",
		input, output,
	)
	if err != nil {
		return classifyOCRError(err)
	}
	return nil
}

func classifyOCRError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrOCRMissingDependency, err)
	}
	var coded interface{ ExitCode() int }
	if errors.As(err, &coded) {
		switch coded.ExitCode() {
		case exitMissingDependency:
			return fmt.Errorf("%w: %v", ErrOCRMissingDependency, err)
		case exitEncryptedPDF:
			return fmt.Errorf("%w: %v", ErrEncryptedInput, err)
		}
	}
	return fmt.Errorf("ocr: %w", err)
}
