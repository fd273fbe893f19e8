// Package chunker splits normalized text into an ordered sequence of
// overlapping, scored-later chunks (spec §4.2). It descends from the
// paragraph/sentence/fixed-width splitting cascade used elsewhere in
// this codebase's lineage, generalized from a token-budgeted, parent/
// child document index to the flat, character-budgeted Chunk model
// this domain uses.
package chunker

import (
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
)

// Config controls chunking behaviour. Zero values are replaced with
// the defaults from spec §4.2.
type Config struct {
	ChunkSize    int // target chunk size in characters
	ChunkOverlap int // characters of trailing context carried into the next chunk
	MinChunkSize int // chunks shorter than this are discarded
}

// DefaultConfig returns the spec's default chunking parameters.
func DefaultConfig() Config {
	return Config{ChunkSize: 800, ChunkOverlap: 100, MinChunkSize: 200}
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = 800
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 100
	}
	if c.MinChunkSize == 0 {
		c.MinChunkSize = 200
	}
	return c
}

// Chunker converts clean text into Chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.withDefaults()}
}

// Chunk splits text into an ordered sequence of Chunks, tagging each
// with chunk_index/total_chunks/char_count/word_count/timestamp and any
// caller-supplied metadata (url, source kind, company, etc. carried in
// base).
func (c *Chunker) Chunk(text string, base acctplan.ChunkMetadata) []acctplan.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := c.split(text)

	now := time.Now().UTC()
	chunks := make([]acctplan.Chunk, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if len(p) < c.cfg.MinChunkSize {
			continue
		}
		meta := base
		meta.RetrievedAt = now
		meta.CharCount = len(p)
		meta.WordCount = len(strings.Fields(p))
		chunks = append(chunks, acctplan.Chunk{
			ChunkID:  acctplan.NewChunkID(),
			Text:     p,
			Metadata: meta,
		})
	}

	total := len(chunks)
	for i := range chunks {
		chunks[i].Metadata.ChunkIndex = i
		chunks[i].Metadata.TotalChunks = total
	}
	return chunks
}

// split applies the strategy cascade from spec §4.2: paragraph
// boundaries, then sentence boundaries, then fixed-width with overlap,
// stopping at the first strategy whose packed chunks are all within
// 1.5x chunk_size.
func (c *Chunker) split(text string) []string {
	limit := int(float64(c.cfg.ChunkSize) * 1.5)

	if paras := splitParagraphs(text); len(paras) > 1 || len(text) <= limit {
		packed := c.pack(paras)
		if withinLimit(packed, limit) {
			return packed
		}
	}

	if sentences := splitSentences(text); len(sentences) > 0 {
		packed := c.pack(sentences)
		if withinLimit(packed, limit) {
			return packed
		}
	}

	return c.fixedWidth(text)
}

func withinLimit(chunks []string, limit int) bool {
	for _, c := range chunks {
		if len(c) > limit {
			return false
		}
	}
	return true
}

// pack greedily packs ordered segments into chunks up to ChunkSize,
// carrying ChunkOverlap characters of trailing context from one chunk
// into the start of the next (the teacher's splitContent idiom,
// generalized from token counts to character counts).
func (c *Chunker) pack(segments []string) []string {
	var out []string
	var current strings.Builder
	overlap := ""

	flush := func() {
		if current.Len() == 0 {
			return
		}
		out = append(out, strings.TrimSpace(current.String()))
		overlap = extractOverlap(current.String(), c.cfg.ChunkOverlap)
		current.Reset()
		if overlap != "" {
			current.WriteString(overlap)
			current.WriteString(" ")
		}
	}

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(seg)+1 > c.cfg.ChunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(seg)
	}
	if strings.TrimSpace(current.String()) != "" {
		out = append(out, strings.TrimSpace(current.String()))
	}
	return out
}

// fixedWidth is the fallback strategy: fixed-size windows over the raw
// text, breaking at the last word boundary within the window, carrying
// ChunkOverlap characters of overlap into the next window.
func (c *Chunker) fixedWidth(text string) []string {
	var out []string
	size := c.cfg.ChunkSize
	overlap := c.cfg.ChunkOverlap
	if overlap >= size {
		overlap = size / 4
	}

	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			out = append(out, strings.TrimSpace(text[start:]))
			break
		}
		// Break at the last word boundary within the window.
		breakAt := strings.LastIndexByte(text[start:end], ' ')
		if breakAt <= 0 {
			breakAt = end - start
		}
		out = append(out, strings.TrimSpace(text[start:start+breakAt]))
		next := start + breakAt - overlap
		if next <= start {
			next = start + breakAt
		}
		start = next
	}
	return out
}

// splitParagraphs splits text on blank-line boundaries.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences tokenizes on '.', '?', '!' followed by whitespace or
// end of string, preserving the terminator (spec §4.2).
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// extractOverlap returns the trailing maxChars characters of text,
// trimmed forward to the next word boundary so it doesn't start mid-word.
func extractOverlap(text string, maxChars int) string {
	text = strings.TrimSpace(text)
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	tail := text[len(text)-maxChars:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
