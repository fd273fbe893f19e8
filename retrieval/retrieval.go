// Package retrieval orchestrates the Search → Scrape → Preprocess →
// Chunk → Score → enrich → dedup pipeline that turns a query into a
// ranked set of Chunks (spec §4.6). Per-URL scraping fans out over
// goroutines gathered through channels, the concurrency idiom this
// module's lineage uses for its own hybrid vector/FTS/graph search.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/chunker"
	"github.com/brunobiangulo/acctplan/entity"
	"github.com/brunobiangulo/acctplan/preprocess"
	"github.com/brunobiangulo/acctplan/scorer"
)

// Config tunes the pipeline. Zero values fall back to spec defaults.
type Config struct {
	TopKScrape   int // how many SERP results to scrape, highest-ranked first
	MinScore     float64
	ChunkSize    int
	ChunkOverlap int
	MinChunkSize int

	SearchMaxResults int
	SearchRetries    int
	ScrapeRetries    int
}

func (c Config) withDefaults() Config {
	if c.TopKScrape == 0 {
		c.TopKScrape = 5
	}
	if c.SearchMaxResults == 0 {
		c.SearchMaxResults = c.TopKScrape * 2
	}
	if c.SearchRetries == 0 {
		c.SearchRetries = 3
	}
	if c.ScrapeRetries == 0 {
		c.ScrapeRetries = 2
	}
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

// Trace records the per-stage breakdown of one retrieval run, the
// domain's analogue of the lineage's SearchTrace diagnostics struct.
type Trace struct {
	SearchResults  int           `json:"search_results"`
	URLsScraped    int           `json:"urls_scraped"`
	ScrapeFailures int           `json:"scrape_failures"`
	ChunksBuilt    int           `json:"chunks_built"`
	ChunksKept     int           `json:"chunks_kept"`
	ElapsedMs      int64         `json:"elapsed_ms"`
}

// Pipeline wires together the external collaborators and the
// in-process preprocess/chunker/scorer stages.
type Pipeline struct {
	search acctplan.SearchAPI
	scrape acctplan.ScrapeAPI
	chunk  *chunker.Chunker
	cfg    Config
}

// New returns a retrieval Pipeline.
func New(search acctplan.SearchAPI, scrape acctplan.ScrapeAPI, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		search: search,
		scrape: scrape,
		chunk: chunker.New(chunker.Config{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			MinChunkSize: cfg.MinChunkSize,
		}),
		cfg: cfg,
	}
}

// Run executes the full pipeline for one query and returns a
// deduplicated, score-filtered, highest-score-first set of Chunks.
func (p *Pipeline) Run(ctx context.Context, query, companyName, userID string) ([]acctplan.Chunk, *Trace, error) {
	start := time.Now()
	trace := &Trace{}

	results, err := p.searchWithRetry(ctx, query)
	if err != nil {
		return nil, trace, fmt.Errorf("retrieval: search: %w", err)
	}
	trace.SearchResults = len(results)

	sort.SliceStable(results, func(i, j int) bool { return results[i].Position < results[j].Position })
	if len(results) > p.cfg.TopKScrape {
		results = results[:p.cfg.TopKScrape]
	}

	type scraped struct {
		chunks []acctplan.Chunk
		err    error
		url    string
	}
	out := make(chan scraped, len(results))

	for _, r := range results {
		r := r
		go func() {
			chunks, err := p.scrapeAndChunk(ctx, r, query, companyName, userID)
			out <- scraped{chunks: chunks, err: err, url: r.URL}
		}()
	}

	var all []acctplan.Chunk
	for range results {
		s := <-out
		if s.err != nil {
			trace.ScrapeFailures++
			slog.Warn("retrieval: scrape failed", "url", s.url, "error", s.err)
			all = append(all, s.chunks...)
			continue
		}
		trace.URLsScraped++
		all = append(all, s.chunks...)
	}
	trace.ChunksBuilt = len(all)

	deduped := dedupe(all)
	kept := scorer.FilterByScore(deduped, p.cfg.MinScore)
	trace.ChunksKept = len(kept)
	trace.ElapsedMs = time.Since(start).Milliseconds()

	return kept, trace, nil
}

// scrapeAndChunk fetches one URL, cleans it, splits it into chunks and
// scores each one against the query. A scrape failure that exhausts
// retries degrades to the SERP snippet as a fallback chunk, matching
// spec §4.6's "never let one bad URL fail the whole query" requirement;
// the scrape error is returned alongside that chunk so Run can count it.
func (p *Pipeline) scrapeAndChunk(ctx context.Context, r acctplan.SearchResult, query, companyName, userID string) ([]acctplan.Chunk, error) {
	raw, kind, err := p.scrapeWithRetry(ctx, r.URL)
	if err != nil {
		return p.fallbackChunk(r, query, companyName, userID), err
	}

	var pKind preprocess.ContentKind
	switch kind {
	case acctplan.ContentMarkdown:
		pKind = preprocess.KindMarkdown
	default:
		pKind = preprocess.KindHTML
	}

	result, err := preprocess.Process(raw, pKind, r.URL)
	if err != nil || result.Text == "" {
		return p.fallbackChunk(r, query, companyName, userID), nil
	}

	base := acctplan.ChunkMetadata{
		URL:         r.URL,
		Title:       r.Title,
		SourceKind:  acctplan.SourceWebSearch,
		UserID:      userID,
		CompanyName: companyName,
		Query:       query,
		Language:    result.Metadata.Language,
		Domain:      result.Metadata.Domain,
	}

	chunks := p.chunk.Chunk(result.Text, base)
	for i := range chunks {
		chunks[i].Score = scorer.Score(chunks[i].Text, chunks[i].Metadata, query)
		ents := entity.Extract(chunks[i].Text)
		if len(ents) > 0 {
			chunks[i].Metadata.KeyFacts = summarizeEntities(ents)
		}
	}
	return chunks, nil
}

func (p *Pipeline) fallbackChunk(r acctplan.SearchResult, query, companyName, userID string) []acctplan.Chunk {
	if strings.TrimSpace(r.Snippet) == "" {
		return nil
	}
	meta := acctplan.ChunkMetadata{
		URL:         r.URL,
		Title:       r.Title,
		SourceKind:  acctplan.SourceFallback,
		UserID:      userID,
		CompanyName: companyName,
		Query:       query,
		CharCount:   len(r.Snippet),
		WordCount:   len(strings.Fields(r.Snippet)),
	}
	c := acctplan.Chunk{ChunkID: acctplan.NewChunkID(), Text: r.Snippet, Metadata: meta}
	c.Score = scorer.Score(c.Text, c.Metadata, query)
	return []acctplan.Chunk{c}
}

func summarizeEntities(e acctplan.Entities) []string {
	var facts []string
	for _, kind := range acctplan.AllEntityKinds {
		if v := e.First(kind); v != "" {
			facts = append(facts, fmt.Sprintf("%s: %s", kind, v))
		}
	}
	return facts
}

// dedupe collapses chunks whose normalized text is identical, keeping
// the first (highest-ranked source) occurrence.
func dedupe(chunks []acctplan.Chunk) []acctplan.Chunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]acctplan.Chunk, 0, len(chunks))
	for _, c := range chunks {
		key := strings.ToLower(strings.Join(strings.Fields(c.Text), " "))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// searchWithRetry retries SearchAPI failures with the backoff schedule
// 2s, 4s, 8s, matching the reference adapters' network retry idiom.
func (p *Pipeline) searchWithRetry(ctx context.Context, query string) ([]acctplan.SearchResult, error) {
	var lastErr error
	delay := 2 * time.Second
	for attempt := 0; attempt <= p.cfg.SearchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		results, err := p.search.Search(ctx, query, p.cfg.SearchMaxResults)
		if err == nil {
			return results, nil
		}
		lastErr = err
		if acctplan.KindOf(err) == acctplan.FailureAuth || acctplan.KindOf(err) == acctplan.FailureInvalidInput {
			break // not retryable
		}
	}
	return nil, lastErr
}

// scrapeWithRetry retries a ScrapeAPI failure once (2 attempts total),
// matching spec §4.6's lighter retry budget for the deep-scrape stage.
func (p *Pipeline) scrapeWithRetry(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.ScrapeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(time.Second):
			}
		}
		raw, kind, err := p.scrape.Fetch(ctx, url)
		if err == nil {
			return raw, kind, nil
		}
		lastErr = err
		if acctplan.KindOf(err) == acctplan.FailureAuth || acctplan.KindOf(err) == acctplan.FailureInvalidInput {
			break
		}
	}
	return "", "", lastErr
}
