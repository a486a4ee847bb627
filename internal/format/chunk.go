// Package format prepares replies for delivery over size-limited transports.
package format

import "unicode/utf8"

// DefaultLimit is the largest message, in characters, sent in one piece.
const DefaultLimit = 4000

// Chunk splits text into pieces of at most limit characters (runes), in
// order. A multibyte character is never split. Empty text yields no chunks;
// a non-positive limit yields the whole text as one chunk.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	start, count := 0, 0
	for i := range text {
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
