package planner

import "strings"

// incompleteTailPatterns are word fragments a model leaves behind when a
// response is cut off mid-sentence by a token ceiling.
var incompleteTailPatterns = []string{
	"relev", "focu", "into re", "contin", "strateg", "oppor", "competit",
	"custom", "the comp", "in the", "and the",
}

const minLongSectionChars = 50

// isTruncated runs the truncation detector over one generated section's
// text. longSection marks sections with a minimum-length expectation
// (company_overview, market_summary, key_insights, competitor_analysis,
// strategic_recommendations).
func isTruncated(text string, longSection bool) (bool, string) {
	if text == "" {
		return true, "empty"
	}

	trimmedSpace := strings.TrimRight(text, " \t\n")
	if trimmedSpace == "" {
		return true, "empty"
	}

	last := trimmedSpace[len(trimmedSpace)-1]
	switch last {
	case '.', '!', '?', '"', '\'', ')', ']', '}':
	default:
		return true, "missing terminal punctuation"
	}

	// bare strips the terminal punctuation itself so the word/tail-pattern
	// checks below inspect the sentence's actual last content, not the
	// punctuation mark that closes it.
	bare := strings.TrimRight(trimmedSpace, ".!?\"')]},;: \t\n")

	words := strings.Fields(bare)
	if len(words) > 0 {
		lastWord := words[len(words)-1]
		if len(lastWord) < 4 && !isPunctuationOnly(lastWord) {
			return true, "short trailing word"
		}
	}

	lower := strings.ToLower(bare)
	for _, pattern := range incompleteTailPatterns {
		if strings.HasSuffix(lower, pattern) {
			return true, "incomplete tail pattern: " + pattern
		}
	}

	if longSection && len(text) < minLongSectionChars {
		return true, "too short for a long section"
	}

	return false, ""
}

func isPunctuationOnly(s string) bool {
	for _, r := range s {
		switch r {
		case '.', '!', '?', '"', '\'', ')', ']', '}', ',', ';', ':':
		default:
			return false
		}
	}
	return len(s) > 0
}
