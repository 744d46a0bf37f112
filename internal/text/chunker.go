package text

import (
	"fmt"
	"regexp"
	"strings"
)

// Page is the text of a single document page as produced by extraction.
// Pages are transient: they exist between extraction and chunking and are
// never persisted.
type Page struct {
	Number int
	Text   string
}

// Chunk is a bounded, possibly-overlapping window of page text, the unit of
// retrieval. StartOffset and EndOffset are byte offsets into the original
// page text, even when Content has been trimmed of surrounding whitespace.
type Chunk struct {
	Index       int
	PageNumber  int
	Content     string
	StartOffset int
	EndOffset   int
}

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// Chunker splits page text into overlapping, sentence-aligned windows.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// ChunkPages chunks every page of a document in order. Chunk indices are
// assigned 0-based and contiguous across the whole document.
func (c *Chunker) ChunkPages(pages []Page) []Chunk {
	var all []Chunk
	for _, page := range pages {
		all = append(all, c.chunkPage(page, len(all))...)
	}
	return all
}

// chunkPage scans the page text with a sliding window. When the window does
// not already reach the end of the text, the window is shrunk back to the
// last sentence terminator inside it, provided that terminator lies beyond
// the overlap region. Blank windows are discarded after trimming.
func (c *Chunker) chunkPage(page Page, startIndex int) []Chunk {
	var chunks []Chunk

	text := page.Text
	if strings.TrimSpace(text) == "" {
		return chunks
	}

	index := startIndex
	position := 0

	for position < len(text) {
		end := position + c.size
		if end > len(text) {
			end = len(text)
		}

		if end < len(text) {
			if last := lastSentenceBoundary(text[position:end]); last > c.overlap {
				end = position + last
			}
		}

		content := strings.TrimSpace(text[position:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Index:       index,
				PageNumber:  page.Number,
				Content:     content,
				StartOffset: position,
				EndOffset:   end,
			})
			index++
		}

		if end >= len(text) {
			break
		}

		// Either the window was full (end-position == size > overlap) or it
		// was shrunk to a boundary beyond the overlap, so next > position in
		// both cases. The guard enforces forward progress regardless.
		next := end - c.overlap
		if next <= position {
			next = position + (c.size - c.overlap)
		}
		position = next
	}

	return chunks
}

// lastSentenceBoundary returns the offset just past the final sentence
// terminator ('.', '!' or '?' followed by whitespace) in s, or -1 if none.
func lastSentenceBoundary(s string) int {
	locs := sentenceEnd.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][1]
}
