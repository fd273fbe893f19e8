// Package entity pulls structured business facts out of chunk text
// using pattern matching, the cheap pass that runs before (and
// alongside) LLM synthesis (spec §4.4).
package entity

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/acctplan"
)

var companyNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-zA-Z&\s]+)\s+(Inc\.|LLC|Ltd\.|Corp\.|Corporation|Company)`),
	regexp.MustCompile(`([A-Z][a-zA-Z&\s]+)\s+is\s+(?:a|an)\b`),
}

var revenuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)revenue\s+(?:of|is|was)\s+\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B)?`),
	regexp.MustCompile(`(?i)\$([\d,]+\.?\d*)\s*(?:million|billion|M|B)?\s+(?:in\s+)?revenue`),
}

// profit/market_cap are supplemental entity kinds not present in the
// source material's extractor; patterns mirror its revenue cascade.
var profitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:net\s+)?profit\s+(?:of|is|was)\s+\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B)?`),
	regexp.MustCompile(`(?i)net\s+income\s+(?:of|is|was)\s+\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B)?`),
}

var marketCapPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)market\s+cap(?:italization)?\s+(?:of|is|was)\s+\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B|trillion)?`),
	regexp.MustCompile(`(?i)valued?\s+at\s+\$([\d,]+\.?\d*)\s*(?:million|billion|M|B|trillion)?`),
}

var headcountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s+employees?`),
	regexp.MustCompile(`(?i)employs?\s+(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(?i)workforce\s+of\s+(\d{1,3}(?:,\d{3})*)`),
}

var locationPattern = regexp.MustCompile(`(?:in|at|from)\s+([A-Z][a-zA-Z\s]+(?:,\s*[A-Z][a-zA-Z]+)?)`)

// peoplePatterns catches "<Title> <Name>" and "<Name>, <Title>" shapes
// for the supplemental people entity kind.
var peoplePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:CEO|CFO|COO|CTO|President|Founder|Chairman)\s+([A-Z][a-z]+\s+[A-Z][a-z]+)`),
	regexp.MustCompile(`([A-Z][a-z]+\s+[A-Z][a-z]+),\s+(?:the\s+)?(?:CEO|CFO|COO|CTO|President|Founder|Chairman)`),
}

var sentenceSplit = regexp.MustCompile(`[.!?]`)

type keywordRule struct {
	kind     acctplan.EntityKind
	keywords []string
}

var keywordRules = []keywordRule{
	{acctplan.EntityProducts, []string{"product", "offers", "provides", "sells"}},
	{acctplan.EntityServices, []string{"service", "solutions", "consulting", "support"}},
	{acctplan.EntityCompetitors, []string{"competitor", "competes with", "rival", "vs.", "versus"}},
}

// maxKeywordMatches caps the number of sentence-derived hits per kind,
// matching the source extractor's [:10] slice.
const maxKeywordMatches = 10

// Extract pulls all entity kinds out of text. Results are ordered and
// deduplicated within each kind.
func Extract(text string) acctplan.Entities {
	e := acctplan.Entities{}

	if v := extractAll(text, revenuePatterns); len(v) > 0 {
		e[acctplan.EntityRevenue] = v
	}
	if v := extractAll(text, profitPatterns); len(v) > 0 {
		e[acctplan.EntityProfit] = v
	}
	if v := extractAll(text, marketCapPatterns); len(v) > 0 {
		e[acctplan.EntityMarketCap] = v
	}
	if v := extractAll(text, headcountPatterns); len(v) > 0 {
		e[acctplan.EntityEmployees] = v
	}
	if v := dedupLimit(locationPattern.FindAllStringSubmatch(text, -1), maxKeywordMatches); len(v) > 0 {
		e[acctplan.EntityLocations] = v
	}
	if v := extractAll(text, peoplePatterns); len(v) > 0 {
		e[acctplan.EntityPeople] = v
	}

	for _, rule := range keywordRules {
		if v := extractByKeywords(text, rule.keywords); len(v) > 0 {
			e[rule.kind] = v
		}
	}

	return e
}

// GuessCompanyName returns the first company-name-shaped match in
// text, or "" if none is found. Used as a last-resort fallback when a
// session has no explicit company name (spec §9, Open Question #1).
func GuessCompanyName(text string) string {
	for _, p := range companyNamePatterns {
		if m := p.FindStringSubmatch(text); len(m) > 1 {
			name := strings.TrimSpace(m[1])
			if name != "" {
				return name
			}
		}
	}
	return ""
}

func extractAll(text string, patterns []*regexp.Regexp) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, flattenGroups(p.FindAllStringSubmatch(text, -1))...)
	}
	return dedup(out)
}

func flattenGroups(matches [][]string) []string {
	var out []string
	for _, m := range matches {
		if len(m) > 1 {
			out = append(out, strings.TrimSpace(m[1]))
		}
	}
	return out
}

func dedup(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupLimit(matches [][]string, limit int) []string {
	out := dedup(flattenGroups(matches))
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// extractByKeywords scans each sentence for any of keywords and, on a
// hit, keeps the sentence's first five words as a coarse noun-phrase
// proxy, matching the source extractor's simplified approach.
func extractByKeywords(text string, keywords []string) []string {
	var out []string
	for _, sentence := range sentenceSplit.Split(text, -1) {
		lower := strings.ToLower(sentence)
		matched := false
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		words := strings.Fields(sentence)
		if len(words) <= 2 {
			continue
		}
		if len(words) > 5 {
			words = words[:5]
		}
		out = append(out, strings.Join(words, " "))
		if len(out) >= maxKeywordMatches {
			break
		}
	}
	return dedup(out)
}
