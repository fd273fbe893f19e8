package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brunobiangulo/acctplan"
)

func TestFetch_NoAPIKeyFallsBackToDirectGET(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>hello world</p></body></html>"))
	}))
	defer srv.Close()

	c := New(Config{})
	raw, kind, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != acctplan.ContentHTML {
		t.Fatalf("expected ContentHTML, got %v", kind)
	}
	if !strings.Contains(raw, "hello world") {
		t.Fatalf("expected raw body content, got %q", raw)
	}
}

func TestFetch_DirectGETUnauthorizedFailsAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{})
	_, _, err := c.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	if acctplan.KindOf(err) != acctplan.FailureAuth {
		t.Fatalf("expected FailureAuth, got %v", acctplan.KindOf(err))
	}
}

func TestFetch_DirectGETNotFoundReturnsEmptyNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{})
	raw, _, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected no error on 404, got %v", err)
	}
	if raw != "" {
		t.Fatalf("expected empty content, got %q", raw)
	}
}

func TestFetch_FirecrawlPrefersMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fc-key" {
			t.Errorf("missing firecrawl auth header")
		}
		w.Write([]byte(`{"success":true,"data":{"markdown":"# Acme\n\nContent here.","html":"<h1>Acme</h1>"}}`))
	}))
	defer srv.Close()

	c := New(Config{FirecrawlAPIKey: "fc-key", BaseURL: srv.URL})
	raw, kind, err := c.Fetch(context.Background(), "https://acme.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != acctplan.ContentMarkdown {
		t.Fatalf("expected ContentMarkdown, got %v", kind)
	}
	if !strings.Contains(raw, "Acme") {
		t.Fatalf("unexpected content: %q", raw)
	}
}

func TestFetch_FirecrawlFailureReturnsEmptyNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"could not render"}`))
	}))
	defer srv.Close()

	c := New(Config{FirecrawlAPIKey: "fc-key", BaseURL: srv.URL})
	raw, _, err := c.Fetch(context.Background(), "https://acme.example.com")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if raw != "" {
		t.Fatalf("expected empty content on firecrawl failure, got %q", raw)
	}
}

func TestFetch_FirecrawlUnauthorizedDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{FirecrawlAPIKey: "bad-key", BaseURL: srv.URL, Retries: 3})
	_, _, err := c.Fetch(context.Background(), "https://acme.example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retries on 401, got %d calls", calls)
	}
}

func TestTruncate_CapsLongContent(t *testing.T) {
	s := strings.Repeat("a", 100)
	got := truncate(s, 10)
	if len(got) != 10 {
		t.Fatalf("expected truncated length 10, got %d", len(got))
	}
}
