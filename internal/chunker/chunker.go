// Package chunker splits text into overlapping fixed-size windows.
package chunker

import "errors"

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 150

// ErrInvalidParams is returned when size <= overlap or overlap < 0.
var ErrInvalidParams = errors.New("chunker: chunk size must be greater than overlap and overlap must not be negative")

// Split cuts text into windows of size characters, each starting
// size-overlap characters after the previous one. Sizes are counted
// in runes so multi-byte text is never cut mid-character.
func Split(text string, size, overlap int) ([]string, error) {
	if overlap < 0 || size <= overlap {
		return nil, ErrInvalidParams
	}
	if text == "" {
		return []string{}, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := size - overlap

	chunks := make([]string, 0, n/step+1)
	for start := 0; start < n; start += step {
		end := min(start+size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks, nil
}

// Chunker binds a size and overlap pair.
type Chunker struct {
	size    int
	overlap int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) { c.size = size }
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) { c.overlap = overlap }
}

// New creates a Chunker, rejecting invalid parameters up front.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{size: DefaultChunkSize, overlap: DefaultChunkOverlap}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap < 0 || c.size <= c.overlap {
		return nil, ErrInvalidParams
	}
	return c, nil
}

// Split splits text with the configured parameters.
func (c *Chunker) Split(text string) []string {
	chunks, _ := Split(text, c.size, c.overlap)
	return chunks
}
