// Package chunker splits normalized text into word-bounded chunks.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text on single spaces into runs of at most maxWords words and
// drops runs shorter than minChars characters. When every run is dropped the
// original text is returned as the only chunk, so callers always get at least
// one element.
func Chunk(text string, maxWords, minChars int) []string {
	words := strings.Split(text, " ")
	if maxWords <= 0 {
		maxWords = len(words)
	}

	chunks := make([]string, 0, len(words)/maxWords+1)
	for start := 0; start < len(words); start += maxWords {
		end := min(start+maxWords, len(words))
		chunk := strings.Join(words[start:end], " ")
		if utf8.RuneCountInString(chunk) >= minChars {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
