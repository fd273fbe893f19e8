package chunker

import (
	"strings"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

func paragraphText(n int) string {
	paras := make([]string, n)
	for i := range paras {
		paras[i] = strings.Repeat("Acme Corp is a leading provider of widgets and related services. ", 6)
	}
	return strings.Join(paras, "\n\n")
}

func TestChunk_SplitsOnParagraphsAndTagsMetadata(t *testing.T) {
	c := New(DefaultConfig())
	text := paragraphText(6)

	chunks := c.Chunk(text, acctplan.ChunkMetadata{URL: "https://example.com/a", CompanyName: "Acme"})
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	for i, ch := range chunks {
		if ch.Metadata.ChunkIndex != i {
			t.Fatalf("chunk %d has wrong ChunkIndex %d", i, ch.Metadata.ChunkIndex)
		}
		if ch.Metadata.TotalChunks != len(chunks) {
			t.Fatalf("chunk %d has wrong TotalChunks %d, want %d", i, ch.Metadata.TotalChunks, len(chunks))
		}
		if ch.Metadata.CharCount != len(ch.Text) {
			t.Fatalf("chunk %d CharCount mismatch: got %d, text len %d", i, ch.Metadata.CharCount, len(ch.Text))
		}
		if ch.Metadata.URL != "https://example.com/a" {
			t.Fatalf("expected caller metadata preserved, got %q", ch.Metadata.URL)
		}
		if ch.ChunkID.String() == "" {
			t.Fatalf("expected a populated chunk id")
		}
	}
}

func TestChunk_DropsChunksBelowMinSize(t *testing.T) {
	c := New(Config{ChunkSize: 800, ChunkOverlap: 100, MinChunkSize: 200})
	chunks := c.Chunk("too short", acctplan.ChunkMetadata{})
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for text below MinChunkSize, got %d", len(chunks))
	}
}

func TestChunk_EmptyTextReturnsNil(t *testing.T) {
	c := New(DefaultConfig())
	if chunks := c.Chunk("   ", acctplan.ChunkMetadata{}); chunks != nil {
		t.Fatalf("expected nil for blank text, got %v", chunks)
	}
}

func TestChunk_LongSingleParagraphFallsBackToSentences(t *testing.T) {
	c := New(Config{ChunkSize: 200, ChunkOverlap: 20, MinChunkSize: 50})
	sentence := "Acme Corp reported strong quarterly growth across every division it operates. "
	text := strings.Repeat(sentence, 20) // one giant paragraph, no blank lines

	chunks := c.Chunk(text, acctplan.ChunkMetadata{})
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized paragraph to be split into multiple chunks, got %d", len(chunks))
	}
	limit := int(float64(c.cfg.ChunkSize) * 1.5)
	for i, ch := range chunks {
		if len(ch.Text) > limit {
			t.Fatalf("chunk %d exceeds 1.5x chunk size: len=%d limit=%d", i, len(ch.Text), limit)
		}
	}
}

func TestChunk_FixedWidthBreaksAtWordBoundary(t *testing.T) {
	c := New(Config{ChunkSize: 50, ChunkOverlap: 10, MinChunkSize: 10})
	text := strings.Repeat("wordlongenoughtoavoidsentencesplitting ", 20)
	pieces := c.fixedWidth(text)
	for _, p := range pieces {
		if strings.HasPrefix(p, " ") || strings.HasSuffix(p, " ") {
			t.Fatalf("expected trimmed piece, got %q", p)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	text := "Revenue grew. Margins held steady! Is this sustainable? Yes, for now."
	got := splitSentences(text)
	if len(got) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(got), got)
	}
}

func TestExtractOverlap(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	got := extractOverlap(text, 15)
	if strings.HasPrefix(got, "t") && strings.Contains(text, "x "+got) {
		t.Fatalf("overlap should start on a word boundary, got %q", got)
	}
	if got == "" {
		t.Fatalf("expected non-empty overlap")
	}
}
