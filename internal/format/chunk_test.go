package format

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkLongReply(t *testing.T) {
	text := strings.Repeat("a", 8500)

	chunks := Chunk(text, 4000)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4000)
	assert.Len(t, chunks[1], 4000)
	assert.Len(t, chunks[2], 500)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkShortReply(t *testing.T) {
	assert.Equal(t, []string{"hello"}, Chunk("hello", 4000))
	assert.Equal(t, []string{"abcd"}, Chunk("abcd", 4))
}

func TestChunkEmpty(t *testing.T) {
	assert.Empty(t, Chunk("", 4000))
}

func TestChunkNoLimit(t *testing.T) {
	text := strings.Repeat("x", 10000)
	assert.Equal(t, []string{text}, Chunk(text, 0))
}

func TestChunkMultibyte(t *testing.T) {
	text := strings.Repeat("привет🙂", 700) // 4900 runes

	chunks := Chunk(text, 4000)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, 4000, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 900, utf8.RuneCountInString(chunks[1]))
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkRestartable(t *testing.T) {
	text := strings.Repeat("ab", 5000)
	assert.Equal(t, Chunk(text, 3000), Chunk(text, 3000))
}
