package planner

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
)

// callOnce issues a single section-generation call, applying the
// timeout/rate-limit retry schedules spec.md §4.7 specifies. A
// safety-filter finish reason is never retried: the caller treats it as
// a terminal failure for that attempt. MAX_TOKENS handling (context
// halving) is the caller's responsibility since it needs to rebuild the
// prompt with a smaller context window.
func (g *Generator) callOnce(ctx context.Context, prompt, systemPrompt string, temperature float64) (acctplan.GenerateResult, error) {
	req := acctplan.GenerateRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  temperature,
		MaxTokens:    g.cfg.MaxTokens,
		Timeout:      g.cfg.SectionTimeout,
	}

	var lastErr error
	timeoutAttempts := 0
	rateLimitAttempts := 0

	for {
		callCtx := ctx
		var cancel context.CancelFunc
		if g.cfg.SectionTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.SectionTimeout)
		}
		result, err := g.llm.Generate(callCtx, req)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if result.FinishReason == acctplan.FinishSafety || result.FinishReason == acctplan.FinishRecitation {
				return result, acctplan.Fail(acctplan.FailureSafetyBlocked, errSafetyBlocked)
			}
			return result, nil
		}
		lastErr = err

		switch acctplan.KindOf(err) {
		case acctplan.FailureRateLimit:
			if rateLimitAttempts >= g.cfg.RateLimitRetries {
				return acctplan.GenerateResult{}, lastErr
			}
			delay := backoff(g.cfg.RetryBaseDelay, rateLimitAttempts)
			rateLimitAttempts++
			slog.Warn("planner: rate limited, retrying", "attempt", rateLimitAttempts, "delay", delay)
			if !sleepOrDone(ctx, delay) {
				return acctplan.GenerateResult{}, ctx.Err()
			}
		case acctplan.FailureTimeout:
			if timeoutAttempts >= g.cfg.TimeoutRetries {
				return acctplan.GenerateResult{}, lastErr
			}
			delay := backoff(g.cfg.RetryBaseDelay, timeoutAttempts)
			timeoutAttempts++
			slog.Warn("planner: section call timed out, retrying", "attempt", timeoutAttempts, "delay", delay)
			if !sleepOrDone(ctx, delay) {
				return acctplan.GenerateResult{}, ctx.Err()
			}
		default:
			return acctplan.GenerateResult{}, lastErr
		}
	}
}

// backoff returns 2s, 4s, 8s, ... for attempt 0, 1, 2, ...
func backoff(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var errSafetyBlocked = &safetyBlockedError{}

type safetyBlockedError struct{}

func (*safetyBlockedError) Error() string { return "generation blocked by safety filter" }

// safeGenerateText runs one text section through callOnce, halving its
// context window once on an empty/short MAX_TOKENS response, cleaning
// the result, and falling back to the section's fallback text on any
// unrecovered failure — mirroring the generator's safe_generate wrapper
// so one section's failure never blocks the others.
func (g *Generator) safeGenerateText(ctx context.Context, sec textSection, company, researchContext, entitiesJSON string) string {
	contextChars := sec.contextChars

	for attempt := 0; attempt < 2; attempt++ {
		trimmedContext := truncateChars(researchContext, contextChars)
		prompt := sec.buildPrompt(company, trimmedContext, entitiesJSON)

		result, err := g.callOnce(ctx, prompt, sec.systemPrompt, sec.temperature)
		if err != nil {
			slog.Error("planner: section generation failed", "section", sec.key, "error", err)
			return sec.fallback(company)
		}

		text := strings.TrimSpace(result.Text)
		if result.FinishReason == acctplan.FinishLength && len(text) < 50 && attempt == 0 {
			slog.Warn("planner: section hit max_tokens with short output, retrying with smaller context", "section", sec.key)
			contextChars /= 2
			continue
		}

		if len(text) <= 20 {
			return sec.fallback(company)
		}
		return cleanSectionText(text)
	}
	return sec.fallback(company)
}

// safeGenerateSWOT generates the four-key SWOT object, retrying once
// with a smaller context window on a parse failure before falling back
// to filled placeholder strings.
func (g *Generator) safeGenerateSWOT(ctx context.Context, company, researchContext string) acctplan.SWOT {
	contextChars := 2000

	for attempt := 0; attempt < 2; attempt++ {
		prompt := buildSWOTPrompt(company, truncateChars(researchContext, contextChars))
		result, err := g.callOnce(ctx, prompt, swotSystemPrompt, 0.7)
		if err != nil {
			slog.Error("planner: swot generation failed", "error", err)
			break
		}

		candidate := extractJSONObject(result.Text)
		if candidate == "" {
			contextChars = 1500
			continue
		}

		var raw struct {
			Strengths     string `json:"strengths"`
			Weaknesses    string `json:"weaknesses"`
			Opportunities string `json:"opportunities"`
			Threats       string `json:"threats"`
		}
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			contextChars = 1500
			continue
		}
		if raw.Strengths == "" && raw.Weaknesses == "" && raw.Opportunities == "" && raw.Threats == "" {
			contextChars = 1500
			continue
		}

		return acctplan.SWOT{
			Strengths:     cleanSectionText(raw.Strengths),
			Weaknesses:    cleanSectionText(raw.Weaknesses),
			Opportunities: cleanSectionText(raw.Opportunities),
			Threats:       cleanSectionText(raw.Threats),
		}
	}
	return fallbackSWOT()
}

// safeGenerateFinal generates the executive-summary section, which
// consumes the prior sections' output and so runs last and only once.
func (g *Generator) safeGenerateFinal(ctx context.Context, company, overview, insights, opportunities string) string {
	prompt := buildFinalPlanPrompt(company, overview, insights, opportunities)
	result, err := g.callOnce(ctx, prompt, finalPlanSystemPrompt, 0.7)
	if err != nil {
		slog.Error("planner: final account plan generation failed", "error", err)
		return fallbackFinalPlan(company)
	}
	text := strings.TrimSpace(result.Text)
	if len(text) <= 20 {
		return fallbackFinalPlan(company)
	}
	return cleanSectionText(text)
}
