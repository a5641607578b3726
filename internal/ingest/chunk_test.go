package ingest

import (
	"strings"
	"testing"
)

func TestChunkEmpty(t *testing.T) {
	if got := Chunk("", DefaultChunkOptions); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
	if got := Chunk("   \n\n  ", DefaultChunkOptions); got != nil {
		t.Errorf("expected nil for whitespace text, got %v", got)
	}
}

func TestChunkShortText(t *testing.T) {
	chunks := Chunk("a short note", DefaultChunkOptions)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0] != "a short note" {
		t.Errorf("unexpected chunk %q", chunks[0])
	}
}

func TestChunkSplitsAtParagraphs(t *testing.T) {
	para := strings.Repeat("word ", 12) // ~60 chars
	text := strings.TrimSpace(strings.Repeat(para+"\n\n", 5))

	chunks := Chunk(text, ChunkOptions{MaxChars: 150})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 150 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(c))
		}
	}
}

func TestChunkHeadingStartsFreshChunk(t *testing.T) {
	text := "# Section One\n\n" + strings.Repeat("alpha ", 10) +
		"\n\n# Section Two\n\n" + strings.Repeat("beta ", 10)

	chunks := Chunk(text, ChunkOptions{MaxChars: 100})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0], "# Section One") {
		t.Errorf("chunk 0 should start with the first heading: %q", chunks[0])
	}
	if !strings.Contains(chunks[1], "# Section Two") {
		t.Errorf("chunk 1 should contain the second heading: %q", chunks[1])
	}
}

func TestChunkSplitsOversizedParagraph(t *testing.T) {
	// One paragraph, many lines, no blank lines in between.
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 30))
	}
	text := strings.Join(lines, "\n")

	chunks := Chunk(text, ChunkOptions{MaxChars: 200})
	if len(chunks) < 2 {
		t.Fatalf("expected oversized paragraph to split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(c))
		}
	}
}

func TestChunkCutsVeryLongLine(t *testing.T) {
	text := strings.Repeat("longword ", 100) // single ~900 char line

	chunks := Chunk(text, ChunkOptions{MaxChars: 200})
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d exceeds budget: %d chars", i, len(c))
		}
	}
	// Word-boundary cuts keep words whole.
	for i, c := range chunks {
		if strings.Contains(c, "longwor\n") {
			t.Errorf("chunk %d split mid-word: %q", i, c)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	first := strings.Repeat("alpha ", 20)
	second := strings.Repeat("beta ", 20)
	text := strings.TrimSpace(first) + "\n\n" + strings.TrimSpace(second)

	chunks := Chunk(text, ChunkOptions{MaxChars: 120, Overlap: 30})
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The second chunk opens with the tail of the first.
	if !strings.HasPrefix(chunks[1], "alpha") {
		t.Errorf("expected overlap prefix from previous chunk, got %q", chunks[1][:20])
	}
	if !strings.Contains(chunks[1], "beta") {
		t.Errorf("second chunk lost its own content: %q", chunks[1])
	}
}

func TestChunkNoOverlapForSingleChunk(t *testing.T) {
	chunks := Chunk("only one", ChunkOptions{MaxChars: 100, Overlap: 50})
	if len(chunks) != 1 || chunks[0] != "only one" {
		t.Errorf("unexpected chunks %q", chunks)
	}
}

func TestChunkZeroMaxCharsUsesDefaults(t *testing.T) {
	text := strings.Repeat("filler text ", 400) // ~4800 chars
	chunks := Chunk(text, ChunkOptions{})
	if len(chunks) < 2 {
		t.Fatalf("expected default budget to split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		// Overlap can push a chunk slightly past MaxChars.
		if len(c) > DefaultChunkOptions.MaxChars+DefaultChunkOptions.Overlap+1 {
			t.Errorf("chunk %d way over default budget: %d chars", i, len(c))
		}
	}
}

func TestChunkOverlapClampedBelowMaxChars(t *testing.T) {
	text := strings.Repeat("clamp test data ", 50)
	chunks := Chunk(text, ChunkOptions{MaxChars: 100, Overlap: 500})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Overlap clamps to a quarter of the budget, so chunks stay bounded.
	for i, c := range chunks {
		if len(c) > 130 {
			t.Errorf("chunk %d exceeds clamped bound: %d chars", i, len(c))
		}
	}
}
