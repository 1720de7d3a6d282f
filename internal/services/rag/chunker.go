package rag

import "strings"

const (
	defaultChunkSize = 1000
	minChunkSize     = 50
)

// splitText breaks text into chunks of roughly size runes with the given
// overlap, preferring to cut at paragraph then sentence boundaries so
// chunks stay readable. Returned offsets are rune offsets into the
// original text.
func splitText(text string, size, overlap int) []chunkSpan {
	if size <= 0 {
		size = defaultChunkSize
	}
	if size < minChunkSize {
		size = minChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var spans []chunkSpan
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = findBreak(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			spans = append(spans, chunkSpan{Offset: start, Text: chunk})
		}

		if end == len(runes) {
			break
		}
		start = end - overlap
	}

	return spans
}

type chunkSpan struct {
	Offset int
	Text   string
}

// findBreak walks back from the hard limit looking for a natural cut
// point, giving up after a quarter of the chunk.
func findBreak(runes []rune, start, limit int) int {
	floor := limit - (limit-start)/4
	for i := limit; i > floor; i-- {
		if runes[i-1] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		switch runes[i-1] {
		case '.', '!', '?':
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return limit
}
