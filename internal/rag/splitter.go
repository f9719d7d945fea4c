// Package rag assembles the retrieval-augmented generation pipeline:
// chunking, query-time retrieval, prompt assembly, and grounded answering.
package rag

import "strings"

// Splitter cuts source text into chunks suitable for embedding.
// It splits on blank lines first and packs paragraphs up to ChunkSize
// characters; oversized paragraphs are hard-split with Overlap characters
// carried between consecutive pieces.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

// DefaultSplitter returns a splitter with sizes that work well for
// sentence-level embedding models.
func DefaultSplitter() *Splitter {
	return &Splitter{ChunkSize: 1000, Overlap: 100}
}

// Split returns the chunks of text in document order. Empty and
// whitespace-only input yields no chunks.
func (s *Splitter) Split(text string) []string {
	size := s.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := s.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > size {
			flush()
			for _, piece := range hardSplit(para, size, overlap) {
				chunks = append(chunks, piece)
			}
			continue
		}

		if current.Len() > 0 && current.Len()+2+len(para) > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// hardSplit cuts text into size-bounded pieces, preferring to break at a
// space near the boundary and carrying overlap characters forward.
func hardSplit(text string, size, overlap int) []string {
	var out []string
	for len(text) > size {
		cut := size
		if idx := strings.LastIndexByte(text[:size], ' '); idx > size/2 {
			cut = idx
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		next := cut - overlap
		if next < 1 {
			next = cut
		}
		text = strings.TrimSpace(text[next:])
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
