package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_InvalidParams(t *testing.T) {
	for _, tc := range []struct{ size, overlap int }{
		{10, 10}, {10, 11}, {10, -1}, {0, 0},
	} {
		_, err := Split("abc", tc.size, tc.overlap)
		assert.ErrorIs(t, err, ErrInvalidParams, "size=%d overlap=%d", tc.size, tc.overlap)
	}
}

func TestSplit_EdgeCases(t *testing.T) {
	chunks, err := Split("", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = Split("short", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)

	chunks, err = Split("exactlyten", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"exactlyten"}, chunks)
}

func TestSplit_Windows(t *testing.T) {
	chunks, err := Split("abcdefghij", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)

	chunks, err = Split("abcdefghijk", 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij", "jk"}, chunks)
}

func TestSplit_CoverageAndOverlap(t *testing.T) {
	text := strings.Repeat("O oráculo da família guarda certidões. ", 80)
	size, overlap := 100, 15

	chunks, err := Split(text, size, overlap)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	var rebuilt []rune
	for i, c := range chunks {
		r := []rune(c)
		assert.LessOrEqual(t, len(r), size)
		if i < len(chunks)-1 {
			assert.Len(t, r, size)
			next := []rune(chunks[i+1])
			assert.Equal(t, string(r[size-overlap:]), string(next[:overlap]))
		}
		if i == 0 {
			rebuilt = append(rebuilt, r...)
		} else {
			rebuilt = append(rebuilt, r[overlap:]...)
		}
	}
	assert.Equal(t, text, string(rebuilt))
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("inventário ", 300)
	a, err := Split(text, 1000, 150)
	require.NoError(t, err)
	b, err := Split(text, 1000, 150)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNew(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.size)
	assert.Equal(t, DefaultChunkOverlap, c.overlap)

	c, err = New(WithChunkSize(4), WithOverlap(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, c.Split("abcdefghij"))

	_, err = New(WithChunkSize(100), WithOverlap(150))
	assert.ErrorIs(t, err, ErrInvalidParams)
}
