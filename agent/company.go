package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/brunobiangulo/acctplan"
	"github.com/brunobiangulo/acctplan/entity"
)

// companyNamePatterns is tried in order; the first capture group of the
// first match wins. They cover the common phrasings for kicking off
// research on a company.
var companyNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)research\s+(?:on\s+|about\s+)?([A-Za-z0-9][\w&.,' -]{1,80}?)(?:[.!?]|\s+for\b|\s+and\b|$)`),
	regexp.MustCompile(`(?i)(?:tell me about|look up|find out about|analyze)\s+([A-Za-z0-9][\w&.,' -]{1,80}?)(?:[.!?]|\s+for\b|\s+and\b|$)`),
	regexp.MustCompile(`(?i)(?:generate|create|build)\s+(?:a|an|the)\s+(?:account plan|plan)\s+for\s+([A-Za-z0-9][\w&.,' -]{1,80}?)(?:[.!?]|$)`),
	regexp.MustCompile(`(?i)(?:account plan|plan)\s+for\s+([A-Za-z0-9][\w&.,' -]{1,80}?)(?:[.!?]|$)`),
	// A bare reply with no verb at all ("Acme Corp") is treated as a
	// company name only when it looks like a proper noun, not an
	// ordinary lowercase sentence — otherwise every short chat message
	// would be misread as a company name.
	regexp.MustCompile(`^\s*([A-Z][\w&.,' -]{1,60}?)[.!]?\s*$`),
}

// capitalizedRun catches a bare capitalized phrase ("Acme Corp") as the
// last-resort guess when none of the phrased patterns match.
var capitalizedRun = regexp.MustCompile(`\b([A-Z][\w&.]*(?:\s+[A-Z][\w&.]*){0,3})\b`)

// extractCompanyName pulls a company name out of a free-form message,
// falling back to the uploaded-document guesser and then to a bare
// capitalized phrase, matching the original controller's three-tier
// fallback (spec §9, Open Question #1).
func extractCompanyName(ctx context.Context, message string, vectorStore acctplan.VectorStore) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return ""
	}

	for _, pattern := range companyNamePatterns {
		m := pattern.FindStringSubmatch(trimmed)
		if len(m) < 2 {
			continue
		}
		name := cleanCompanyCandidate(m[1])
		if name != "" {
			return name
		}
	}

	if vectorStore != nil {
		docs, err := vectorStore.Search(ctx, "", 1, map[string]any{"source_kind": string(acctplan.SourceUploadedDocument)})
		if err == nil && len(docs) > 0 {
			if guess := entity.GuessCompanyName(docs[0].Text); guess != "" {
				return guess
			}
		}
	}

	if m := capitalizedRun.FindString(trimmed); m != "" {
		return cleanCompanyCandidate(m)
	}

	return ""
}

var genericCompanyWords = map[string]bool{
	"the": true, "a": true, "an": true, "company": true, "this": true,
	"that": true, "it": true, "them": true, "please": true,
}

func cleanCompanyCandidate(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, ".,!? ")
	if name == "" {
		return ""
	}
	if genericCompanyWords[strings.ToLower(name)] {
		return ""
	}
	if len(name) < 2 || len(name) > 80 {
		return ""
	}
	return name
}
