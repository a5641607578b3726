package ingest

import "strings"

// ChunkOptions controls how extracted text is split for embedding.
type ChunkOptions struct {
	MaxChars int // Upper bound per chunk (~4 chars per token).
	Overlap  int // Characters carried over from the previous chunk.
}

// DefaultChunkOptions targets roughly 400-token chunks with a small
// overlap so answers spanning a boundary still retrieve.
var DefaultChunkOptions = ChunkOptions{MaxChars: 1600, Overlap: 200}

// Chunk splits text into chunks of at most MaxChars characters. Splits
// prefer paragraph boundaries, then lines; markdown headings always
// start a fresh chunk so sections stay coherent.
func Chunk(text string, opts ChunkOptions) []string {
	if opts.MaxChars <= 0 {
		opts = DefaultChunkOptions
	}
	if opts.Overlap >= opts.MaxChars {
		opts.Overlap = opts.MaxChars / 4
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxChars {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, "\n\n"))
		current = nil
		currentLen = 0
	}

	for _, para := range splitParagraphs(text) {
		isHeading := strings.HasPrefix(para, "#")

		// A heading or an oversized addition closes the current chunk.
		if len(current) > 0 && (isHeading || currentLen+len(para)+2 > opts.MaxChars) {
			flush()
		}

		if len(para) > opts.MaxChars {
			flush()
			for _, piece := range splitLongText(para, opts.MaxChars) {
				chunks = append(chunks, piece)
			}
			continue
		}

		current = append(current, para)
		currentLen += len(para) + 2
	}
	flush()

	return applyOverlap(chunks, opts.Overlap)
}

// splitParagraphs breaks text on blank lines, trimming each block.
func splitParagraphs(text string) []string {
	var paras []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paras = append(paras, block)
		}
	}
	return paras
}

// splitLongText hard-splits a block that exceeds the chunk budget,
// breaking at line boundaries where possible.
func splitLongText(text string, maxChars int) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	currentLen := 0

	for _, line := range lines {
		// A single line longer than the budget is cut mid-line.
		for len(line) > maxChars {
			cut := maxChars
			if idx := strings.LastIndex(line[:maxChars], " "); idx > maxChars/2 {
				cut = idx
			}
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
				current = nil
				currentLen = 0
			}
			chunks = append(chunks, strings.TrimSpace(line[:cut]))
			line = strings.TrimSpace(line[cut:])
		}

		lineLen := len(line) + 1
		if currentLen+lineLen > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentLen = 0
		}
		current = append(current, line)
		currentLen += lineLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// applyOverlap prefixes each chunk after the first with the tail of its
// predecessor, cut at a word boundary.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		tail := overlapTail(chunks[i-1], overlap)
		if tail != "" {
			out[i] = tail + "\n" + chunks[i]
		} else {
			out[i] = chunks[i]
		}
	}
	return out
}

func overlapTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
