package rag

import (
	"strings"
	"testing"
)

func TestSplitTextShortInput(t *testing.T) {
	spans := splitText("hello world", 1000, 0)
	if len(spans) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(spans))
	}
	if spans[0].Text != "hello world" || spans[0].Offset != 0 {
		t.Errorf("Unexpected span: %+v", spans[0])
	}
}

func TestSplitTextEmpty(t *testing.T) {
	if spans := splitText("", 1000, 0); spans != nil {
		t.Errorf("Expected nil for empty input, got %d spans", len(spans))
	}
	if spans := splitText("   \n\n  ", 1000, 0); len(spans) != 0 {
		t.Errorf("Expected no spans for whitespace input, got %d", len(spans))
	}
}

func TestSplitTextChunking(t *testing.T) {
	// 10 paragraphs of ~120 chars each
	para := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 3)
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 10))

	spans := splitText(text, 300, 0)
	if len(spans) < 3 {
		t.Fatalf("Expected several chunks, got %d", len(spans))
	}

	runes := []rune(text)
	for i, span := range spans {
		if len([]rune(span.Text)) > 300 {
			t.Errorf("Chunk %d exceeds size: %d runes", i, len([]rune(span.Text)))
		}
		// Offsets point into the original text
		at := string(runes[span.Offset:])
		if !strings.HasPrefix(strings.TrimLeft(at, " \n"), span.Text[:20]) {
			t.Errorf("Chunk %d offset %d does not line up with source", i, span.Offset)
		}
	}
}

func TestSplitTextOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 chars, no break points
	spans := splitText(text, 100, 20)

	if len(spans) < 3 {
		t.Fatalf("Expected at least 3 chunks, got %d", len(spans))
	}
	// With overlap 20, consecutive chunks start 80 apart
	if spans[1].Offset != spans[0].Offset+80 {
		t.Errorf("Expected overlap of 20, offsets %d and %d", spans[0].Offset, spans[1].Offset)
	}
}

func TestSplitTextPrefersSentenceBreaks(t *testing.T) {
	text := "First sentence here. " + strings.Repeat("x", 60) + ". Tail content that continues for a while and then some."
	spans := splitText(text, 90, 0)

	if len(spans) < 2 {
		t.Fatalf("Expected a split, got %d chunks", len(spans))
	}
	if !strings.HasSuffix(spans[0].Text, ".") {
		t.Errorf("Expected first chunk to end at a sentence boundary, got %q", spans[0].Text)
	}
}
