package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

type fakeSearch struct {
	results []acctplan.SearchResult
	err     error
	calls   int
}

func (f *fakeSearch) Search(ctx context.Context, query string, maxResults int) ([]acctplan.SearchResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeScrape struct {
	pages map[string]string
	fail  map[string]bool
}

func (f *fakeScrape) Fetch(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	if f.fail[url] {
		return "", "", acctplan.Fail(acctplan.FailureNetwork, errors.New("boom"))
	}
	return f.pages[url], acctplan.ContentHTML, nil
}

func repeatSentence(n int) string {
	return strings.Repeat("Acme Corp reported strong quarterly revenue growth across all divisions. ", n)
}

func TestRun_BuildsScoresAndFiltersChunks(t *testing.T) {
	search := &fakeSearch{results: []acctplan.SearchResult{
		{Title: "Acme news", URL: "https://news.example.com/acme", Snippet: "Acme snippet", Position: 0},
	}}
	scrape := &fakeScrape{pages: map[string]string{
		"https://news.example.com/acme": "<html><body><main><p>" + repeatSentence(6) + "</p></main></body></html>",
	}}

	p := New(search, scrape, Config{MinScore: 0})
	chunks, trace, err := p.Run(context.Background(), "Acme revenue", "Acme", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	if trace.URLsScraped != 1 {
		t.Fatalf("expected 1 url scraped, got %d", trace.URLsScraped)
	}
	if trace.ChunksKept != len(chunks) {
		t.Fatalf("trace ChunksKept mismatch: %d vs %d", trace.ChunksKept, len(chunks))
	}
}

func TestRun_ScrapeFailureFallsBackToSnippet(t *testing.T) {
	search := &fakeSearch{results: []acctplan.SearchResult{
		{Title: "Acme news", URL: "https://fail.example.com/acme", Snippet: "Acme reported growth this quarter.", Position: 0},
	}}
	scrape := &fakeScrape{fail: map[string]bool{"https://fail.example.com/acme": true}}

	p := New(search, scrape, Config{MinScore: 0, ScrapeRetries: 1})
	chunks, trace, err := p.Run(context.Background(), "Acme", "Acme", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 fallback chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.SourceKind != acctplan.SourceFallback {
		t.Fatalf("expected fallback source kind, got %v", chunks[0].Metadata.SourceKind)
	}
	if trace.ScrapeFailures != 1 {
		t.Fatalf("expected 1 scrape failure recorded, got %d", trace.ScrapeFailures)
	}
}

func TestRun_DedupesIdenticalContentAcrossURLs(t *testing.T) {
	body := "<html><body><main><p>" + repeatSentence(6) + "</p></main></body></html>"
	search := &fakeSearch{results: []acctplan.SearchResult{
		{Title: "A", URL: "https://a.example.com", Snippet: "x", Position: 0},
		{Title: "B", URL: "https://b.example.com", Snippet: "y", Position: 1},
	}}
	scrape := &fakeScrape{pages: map[string]string{
		"https://a.example.com": body,
		"https://b.example.com": body,
	}}

	p := New(search, scrape, Config{MinScore: 0, TopKScrape: 2})
	chunks, _, err := p.Run(context.Background(), "Acme", "Acme", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]bool)
	for _, c := range chunks {
		key := strings.ToLower(strings.Join(strings.Fields(c.Text), " "))
		if seen[key] {
			t.Fatalf("expected duplicate content to be deduped, found repeat: %q", c.Text)
		}
		seen[key] = true
	}
}

func TestRun_SearchFailurePropagatesAfterRetries(t *testing.T) {
	search := &fakeSearch{err: acctplan.Fail(acctplan.FailureAuth, errors.New("bad key"))}
	scrape := &fakeScrape{}

	p := New(search, scrape, Config{})
	_, _, err := p.Run(context.Background(), "Acme", "Acme", "u1")
	if err == nil {
		t.Fatalf("expected error when search fails")
	}
	if search.calls != 1 {
		t.Fatalf("expected auth failure to skip retries, got %d calls", search.calls)
	}
}
