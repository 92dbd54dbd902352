package rag

import (
	"strconv"
	"strings"
	"testing"
)

func TestSplit_SmallFileSingleChunk(t *testing.T) {
	t.Parallel()

	c := NewChunker(100, 20)
	chunks := c.Split(RepoFile{Path: "main.go", Content: "package main\n\nfunc main() {}\n"})

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].ID != "main.go:0" {
		t.Fatalf("unexpected chunk id: %s", chunks[0].ID)
	}
	if chunks[0].Path != "main.go" {
		t.Fatalf("unexpected path: %s", chunks[0].Path)
	}
}

func TestSplit_EmptyFile(t *testing.T) {
	t.Parallel()

	c := NewChunker(100, 20)
	if chunks := c.Split(RepoFile{Path: "empty.go"}); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestSplit_RespectsSizeLimit(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("func handler() { return }\n\n")
	}

	c := NewChunker(200, 40)
	chunks := c.Split(RepoFile{Path: "big.go", Content: b.String()})

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if n := len([]rune(chunk.Content)); n > 200 {
			t.Fatalf("chunk %s exceeds limit: %d runes", chunk.ID, n)
		}
	}

	// A piece just under the limit must not stack on top of the carried
	// overlap from the previous chunk.
	near := strings.Repeat("a", 95) + "\n\n" + strings.Repeat("b", 95)
	chunks = NewChunker(100, 20).Split(RepoFile{Path: "near.txt", Content: near})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if n := len([]rune(chunk.Content)); n > 100 {
			t.Fatalf("chunk %s exceeds limit: %d runes", chunk.ID, n)
		}
	}
}

func TestSplit_BreaksOnFunctionBoundaries(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("package sample\n")
	for i := 0; i < 3; i++ {
		b.WriteString("\nfunc handler" + strconv.Itoa(i) + "() {\n")
		b.WriteString("\t" + strings.Repeat("x", 60) + "\n")
		b.WriteString("}\n")
	}

	c := NewChunker(120, 0)
	chunks := c.Split(RepoFile{Path: "sample.go", Content: b.String()})

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	// Every chunk after the first opens with a declaration, not a torn body.
	for _, chunk := range chunks[1:] {
		if !strings.HasPrefix(chunk.Content, "func handler") {
			t.Fatalf("chunk %s does not start at a declaration: %q", chunk.ID, chunk.Content)
		}
	}
}

func TestSplit_OverlapCarriesContext(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("line of source text\n")
	}

	c := NewChunker(120, 30)
	chunks := c.Split(RepoFile{Path: "f.go", Content: b.String()})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Each chunk after the first starts with text from the end of the
	// previous one.
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		tail := strings.TrimSpace(string(prev[len(prev)-30:]))
		if tail == "" {
			continue
		}
		if !strings.Contains(chunks[i].Content, strings.Fields(tail)[0]) {
			t.Fatalf("chunk %d does not overlap with its predecessor", i)
		}
	}
}

func TestSplit_UnbreakableTextHardSplits(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("x", 450) // no separators at all

	c := NewChunker(200, 0)
	chunks := c.Split(RepoFile{Path: "blob.md", Content: content})

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for _, chunk := range chunks {
		if len([]rune(chunk.Content)) > 200 {
			t.Fatalf("chunk exceeds limit: %d", len(chunk.Content))
		}
	}
}

func TestSplitAll_IndexesPerFile(t *testing.T) {
	t.Parallel()

	c := NewChunker(1000, 100)
	chunks := c.SplitAll([]RepoFile{
		{Path: "a.go", Content: "package a\n"},
		{Path: "b.go", Content: "package b\n"},
	})

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "a.go:0" || chunks[1].ID != "b.go:0" {
		t.Fatalf("unexpected ids: %s, %s", chunks[0].ID, chunks[1].ID)
	}
}

func TestNewChunker_Defaults(t *testing.T) {
	t.Parallel()

	c := NewChunker(0, -5)
	if c.size != DefaultChunkSize {
		t.Fatalf("unexpected size: %d", c.size)
	}
	if c.overlap != DefaultChunkOverlap {
		t.Fatalf("unexpected overlap: %d", c.overlap)
	}
}
