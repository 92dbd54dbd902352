package rag

import (
	"strconv"
	"strings"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are measured in runes.
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 200
)

// separators, in priority order. The splitter prefers breaking on code
// declarations, then larger structural boundaries, falling back to smaller
// ones.
var separators = []string{
	"\nclass ",
	"\ndef ",
	"\nasync def ",
	"\nfunc ",
	"\ntype ",
	"\nfunction ",
	"\nconst ",
	"\nexport ",
	"\n\n",
	"\n",
	" ",
	"",
}

// Chunk is one slice of a source file, addressable for vector indexing.
type Chunk struct {
	ID      string // "<path>:<index>"
	Path    string
	Index   int
	Content string
}

// Chunker splits file contents recursively so chunks stay under the size
// limit while breaking on the most natural boundary available.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker builds a chunker; non-positive arguments fall back to defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split chunks one file. Empty content yields no chunks.
func (c *Chunker) Split(file RepoFile) []Chunk {
	pieces := c.split(file.Content, separators)
	merged := c.merge(pieces)

	chunks := make([]Chunk, 0, len(merged))
	for i, content := range merged {
		chunks = append(chunks, Chunk{
			ID:      file.Path + ":" + strconv.Itoa(i),
			Path:    file.Path,
			Index:   i,
			Content: content,
		})
	}
	return chunks
}

// SplitAll chunks a whole file set.
func (c *Chunker) SplitAll(files []RepoFile) []Chunk {
	var all []Chunk
	for _, f := range files {
		all = append(all, c.Split(f)...)
	}
	return all
}

// split recursively cuts text on the first separator that produces pieces
// small enough, descending to finer separators for oversized pieces.
func (c *Chunker) split(text string, seps []string) []string {
	if text == "" {
		return nil
	}
	if len([]rune(text)) <= c.size {
		return []string{text}
	}

	sep := seps[0]
	rest := seps[1:]

	if sep == "" {
		return c.hardSplit(text)
	}

	var out []string
	for _, part := range splitKeepSep(text, sep) {
		if len([]rune(part)) <= c.size {
			out = append(out, part)
		} else {
			out = append(out, c.split(part, rest)...)
		}
	}
	return out
}

// merge greedily packs adjacent pieces into chunks up to the size limit,
// carrying overlap runes from the end of each chunk into the next.
func (c *Chunker) merge(pieces []string) []string {
	var (
		chunks   []string
		current  strings.Builder
		hasFresh bool // current holds more than carried overlap
	)

	flush := func() {
		text := strings.TrimSpace(current.String())
		current.Reset()
		hasFresh = false
		if text != "" {
			chunks = append(chunks, text)
			runes := []rune(text)
			if c.overlap > 0 && len(runes) > c.overlap {
				current.WriteString(string(runes[len(runes)-c.overlap:]))
			}
		}
	}

	for _, piece := range pieces {
		pieceLen := len([]rune(piece))
		if current.Len() > 0 && len([]rune(current.String()))+pieceLen > c.size {
			flush()
			// The carried overlap may leave no room for a near-size piece.
			if len([]rune(current.String()))+pieceLen > c.size {
				current.Reset()
			}
		}
		current.WriteString(piece)
		hasFresh = true
	}
	if hasFresh && strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

func (c *Chunker) hardSplit(text string) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += c.size {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// splitKeepSep splits on sep while keeping the separator attached to the
// start of the following piece, so declarations stay with their bodies and
// merging reconstructs the original text.
func splitKeepSep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
