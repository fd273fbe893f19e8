// Package search is the reference acctplan.SearchAPI adapter: a thin
// client for Serper.dev's Google Search API, grounded on the llm
// package's doPost retry idiom (network/429-aware backoff classified
// through acctplan.FailureKind).
package search

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

const defaultBaseURL = "https://google.serper.dev"

// Config configures the Serper client.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://google.serper.dev
	Retries int    // defaults to 3
}

// Client implements acctplan.SearchAPI against Serper.dev.
type Client struct {
	cfg     Config
	http    *http.Client
	retries int
}

// New returns a Serper-backed SearchAPI. An empty APIKey is allowed at
// construction time; Search fails with FailureAuth on first use so the
// caller sees the error in context rather than at startup.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	retries := cfg.Retries
	if retries == 0 {
		retries = 3
	}
	return &Client{
		cfg:     cfg,
		retries: retries,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
}

// Search queries Serper.dev's organic Google Search results.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]acctplan.SearchResult, error) {
	if c.cfg.APIKey == "" {
		return nil, acctplan.Fail(acctplan.FailureAuth, fmt.Errorf("search: Serper API key not configured"))
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: maxResults})
	if err != nil {
		return nil, err
	}

	respBody, err := c.doPost(ctx, "/search", body)
	if err != nil {
		return nil, err
	}

	var resp serperResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("search: decoding serper response: %w", err))
	}

	results := make([]acctplan.SearchResult, 0, len(resp.Organic))
	for _, item := range resp.Organic {
		if len(results) >= maxResults {
			break
		}
		results = append(results, acctplan.SearchResult{
			Title:    item.Title,
			URL:      item.Link,
			Snippet:  item.Snippet,
			Position: item.Position,
			Source:   "serper",
		})
	}
	return results, nil
}

func classifyStatus(code int) acctplan.FailureKind {
	switch {
	case code == http.StatusTooManyRequests:
		return acctplan.FailureRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return acctplan.FailureAuth
	case code == http.StatusBadRequest:
		return acctplan.FailureInvalidInput
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return acctplan.FailureTimeout
	default:
		return acctplan.FailureNetwork
	}
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (c *Client) doPost(ctx context.Context, path string, body []byte) ([]byte, error) {
	url := c.cfg.BaseURL + path

	var lastErr error
	delay := 2 * time.Second
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("search: retrying serper request", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-KEY", c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("search: request to %s failed: %w", url, err))
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = acctplan.Fail(acctplan.FailureNetwork, fmt.Errorf("search: reading response body: %w", err))
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = acctplan.Fail(classifyStatus(resp.StatusCode), fmt.Errorf("search: serper API error %d: %s", resp.StatusCode, string(respBody)))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, lastErr
}
