// Package scrape is the reference acctplan.ScrapeAPI adapter. It
// prefers Firecrawl.dev's readability-aware scrape API when configured,
// and otherwise falls back to a direct HTTP GET of the page so the
// pipeline still has raw HTML for preprocess to clean up.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brunobiangulo/acctplan"
)

const defaultBaseURL = "https://api.firecrawl.dev/v1/scrape"

// Config configures the scrape client.
type Config struct {
	FirecrawlAPIKey string
	BaseURL         string // defaults to https://api.firecrawl.dev/v1/scrape
	Retries         int    // defaults to 2
	MaxContentChars int    // defaults to 10000, matching spec's content cap
}

// Client implements acctplan.ScrapeAPI.
type Client struct {
	cfg     Config
	http    *http.Client
	retries int
	maxLen  int
}

// New returns a scrape Client. With no FirecrawlAPIKey, Fetch degrades
// to a direct HTTP GET of the target URL.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 2
	}
	maxLen := cfg.MaxContentChars
	if maxLen == 0 {
		maxLen = 10000
	}
	return &Client{
		cfg:     cfg,
		retries: retries,
		maxLen:  maxLen,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch retrieves raw content for url. It returns ("", "", nil) if
// the page was reachable but yielded no usable content (caller falls
// back to the SERP snippet); it returns an error only when the fetch
// itself failed.
func (c *Client) Fetch(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	if c.cfg.FirecrawlAPIKey != "" {
		return c.fetchFirecrawl(ctx, url)
	}
	return c.fetchDirect(ctx, url)
}

type firecrawlRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Markdown string `json:"markdown"`
		HTML     string `json:"html"`
	} `json:"data"`
	Error string `json:"error"`
}

func (c *Client) fetchFirecrawl(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	body, err := json.Marshal(firecrawlRequest{
		URL:             url,
		Formats:         []string{"markdown", "html"},
		OnlyMainContent: true,
	})
	if err != nil {
		return "", "", err
	}

	respBody, err := c.doPost(ctx, c.cfg.BaseURL, body)
	if err != nil {
		return "", "", err
	}

	var resp firecrawlResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", "", acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("scrape: decoding firecrawl response: %w", err))
	}
	if !resp.Success {
		if resp.Error != "" {
			slog.Warn("scrape: firecrawl returned an error", "url", url, "error", resp.Error)
		}
		return "", "", nil
	}

	if resp.Data.Markdown != "" {
		return truncate(resp.Data.Markdown, c.maxLen), acctplan.ContentMarkdown, nil
	}
	if resp.Data.HTML != "" {
		return truncate(resp.Data.HTML, c.maxLen), acctplan.ContentHTML, nil
	}
	return "", "", nil
}

func (c *Client) fetchDirect(ctx context.Context, url string) (string, acctplan.ContentKind, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
		if err != nil {
			return "", "", err
		}
		req.Header.Set("User-Agent", "acctplan-research-bot/1.0")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("scrape: fetching %s: %w", url, err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("scrape: reading body for %s: %w", url, err))
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = acctplan.Fail(classifyStatus(resp.StatusCode), fmt.Errorf("scrape: %s returned %d", url, resp.StatusCode))
			continue
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", "", acctplan.Fail(acctplan.FailureAuth, fmt.Errorf("scrape: %s returned %d", url, resp.StatusCode))
		}
		if resp.StatusCode >= 400 {
			return "", "", nil
		}

		return truncate(string(respBody), c.maxLen), acctplan.ContentHTML, nil
	}
	return "", "", lastErr
}

func classifyStatus(code int) acctplan.FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return acctplan.FailureRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return acctplan.FailureAuth
	case code >= 500:
		return acctplan.FailureNetwork
	default:
		return acctplan.FailureNetwork
	}
}

func (c *Client) doPost(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("scrape: retrying firecrawl request", "url", url, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FirecrawlAPIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("scrape: request to %s failed: %w", url, err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("scrape: reading response body: %w", err))
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		kind := classifyStatus(resp.StatusCode)
		lastErr = acctplan.Fail(kind, fmt.Errorf("scrape: firecrawl API error %d: %s", resp.StatusCode, string(respBody)))
		if kind == acctplan.FailureAuth {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
