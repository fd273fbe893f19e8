// Package scorer assigns a weighted quality score to a chunk before it
// reaches the LLM, so low-value content can be filtered and the rest
// ranked (spec §4.3).
package scorer

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/brunobiangulo/acctplan"
)

// credibleDomains mirrors the source material's hand-curated tier of
// news/official/academic domains that score as fully credible.
var credibleDomains = []string{
	"reuters.com", "bloomberg.com", "wsj.com", "ft.com", "economist.com",
	"nytimes.com", "washingtonpost.com", "theguardian.com",
	"forbes.com", "techcrunch.com", "wired.com",
	"wikipedia.org", "linkedin.com", "crunchbase.com", "sec.gov",
}

var lowCredibilityDomains = []string{"blogspot", "wordpress", "tumblr", "medium.com"}

var lowQualityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)click here`),
	regexp.MustCompile(`(?i)buy now`),
	regexp.MustCompile(`(?i)sign up`),
	regexp.MustCompile(`(?i)subscribe`),
	regexp.MustCompile(`(?i)advertisement`),
	regexp.MustCompile(`(?i)sponsored`),
	regexp.MustCompile(`(?i)promoted`),
	regexp.MustCompile(`(?i)cookie policy`),
	regexp.MustCompile(`(?i)privacy policy`),
	regexp.MustCompile(`(?i)terms of service`),
}

var wordPattern = regexp.MustCompile(`\b\w+\b`)
var sentencePattern = regexp.MustCompile(`[.!?]+`)

// Score computes a Chunk's Score from its text, metadata and an
// optional query (empty query scores relevance at the neutral 0.5, as
// in the source material).
func Score(text string, meta acctplan.ChunkMetadata, query string) acctplan.Score {
	s := acctplan.Score{
		Freshness:   scoreFreshness(meta.RetrievedAt),
		Credibility: scoreCredibility(meta.URL, meta.Domain),
		Quality:     scoreQuality(text),
		Relevance:   0.5,
		Readability: scoreReadability(text),
	}
	if query != "" {
		s.Relevance = scoreRelevance(text, query)
	}
	s.Total = round3(s.Freshness*acctplan.WeightFreshness +
		s.Credibility*acctplan.WeightCredibility +
		s.Quality*acctplan.WeightQuality +
		s.Relevance*acctplan.WeightRelevance +
		s.Readability*acctplan.WeightReadability)
	return s
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func scoreFreshness(retrievedAt time.Time) float64 {
	if retrievedAt.IsZero() {
		return 0.5
	}
	ageDays := time.Since(retrievedAt).Hours() / 24
	switch {
	case ageDays < 7:
		return 1.0
	case ageDays < 30:
		return 0.8
	case ageDays < 90:
		return 0.6
	case ageDays < 365:
		return 0.4
	default:
		return 0.2
	}
}

func scoreCredibility(sourceURL, domain string) float64 {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" && sourceURL != "" {
		d = strings.ToLower(hostOf(sourceURL))
	}
	if d == "" {
		return 0.5
	}

	for _, credible := range credibleDomains {
		if strings.Contains(d, credible) {
			return 1.0
		}
	}
	for _, low := range lowCredibilityDomains {
		if strings.Contains(d, low) {
			return 0.3
		}
	}

	switch {
	case strings.HasSuffix(d, ".gov") || strings.HasSuffix(d, ".edu"):
		return 0.9
	case strings.HasSuffix(d, ".org"):
		return 0.7
	case strings.HasSuffix(d, ".com") || strings.HasSuffix(d, ".net"):
		return 0.6
	default:
		return 0.5
	}
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimPrefix(rawURL, "https://")
	rawURL = strings.TrimPrefix(rawURL, "http://")
	if i := strings.IndexByte(rawURL, '/'); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}

func scoreQuality(text string) float64 {
	if text == "" {
		return 0.0
	}

	score := 1.0
	lower := strings.ToLower(text)
	for _, p := range lowQualityPatterns {
		if p.MatchString(lower) {
			score -= 0.1
		}
	}

	words := strings.Fields(text)
	switch {
	case len(words) < 50:
		score -= 0.3
	case len(words) < 100:
		score -= 0.1
	}

	if len(text) > 50000 {
		score -= 0.2
	}

	if strings.Count(text, "\n\n") > 3 {
		score += 0.1
	}

	if len(words) > 0 {
		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			seen[w] = struct{}{}
		}
		uniqueRatio := float64(len(seen)) / float64(len(words))
		if uniqueRatio < 0.3 {
			score -= 0.3
		}
	}

	return clamp01(score)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func scoreRelevance(text, query string) float64 {
	lowerText := strings.ToLower(text)
	words := wordPattern.FindAllString(strings.ToLower(query), -1)

	queryWords := make(map[string]struct{})
	for _, w := range words {
		if len(w) > 3 {
			queryWords[w] = struct{}{}
		}
	}
	if len(queryWords) == 0 {
		return 0.5
	}

	matches := 0
	for w := range queryWords {
		if strings.Contains(lowerText, w) {
			matches++
		}
	}
	ratio := float64(matches) / float64(len(queryWords))
	return clamp01(ratio * 1.2)
}

func scoreReadability(text string) float64 {
	if text == "" {
		return 0.0
	}

	rawSentences := sentencePattern.Split(text, -1)
	var sentences []string
	for _, s := range rawSentences {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return 0.0
	}

	totalWords := 0
	for _, s := range sentences {
		totalWords += len(strings.Fields(s))
	}
	avgLen := float64(totalWords) / float64(len(sentences))

	var readability float64
	switch {
	case avgLen >= 10 && avgLen <= 25:
		readability = 1.0
	case (avgLen >= 5 && avgLen < 10) || (avgLen > 25 && avgLen <= 35):
		readability = 0.7
	default:
		readability = 0.4
	}

	// Sentence fragments here have their terminators stripped by the
	// split, so none end in punctuation; punctuationRatio is always 0,
	// matching the source formula's behavior on already-split input.
	return readability / 2
}

// FilterByScore keeps chunks at or above minScore and sorts the
// survivors highest score first.
func FilterByScore(chunks []acctplan.Chunk, minScore float64) []acctplan.Chunk {
	out := make([]acctplan.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score.Total >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Total > out[j].Score.Total
	})
	return out
}
