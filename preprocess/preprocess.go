// Package preprocess turns raw HTML, markdown or plain text into
// normalized clean text plus metadata, the first stage of the
// retrieval pipeline (spec §4.1).
package preprocess

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyContent is returned when raw_content is empty, per spec §4.1.
var ErrEmptyContent = errors.New("preprocess: raw content is empty")

// ContentKind is the shape of the raw content handed to Process.
type ContentKind string

const (
	KindHTML     ContentKind = "html"
	KindMarkdown ContentKind = "markdown"
	KindText     ContentKind = "text"
)

// Defaults matching spec §4.1.
const (
	MinTextLength = 100
	MaxTextLength = 50000
)

// Metadata describes the processed text.
type Metadata struct {
	URL         string
	Domain      string
	Language    string
	WordCount   int
	CharCount   int
	ProcessedAt time.Time
}

// Result is the output of Process.
type Result struct {
	Text     string
	Metadata Metadata
}

var (
	contentElements  = []string{"main", "article"}
	stripElements    = map[string]bool{"script": true, "style": true, "nav": true, "footer": true, "header": true, "aside": true, "noscript": true}
	contentClassHint = regexp.MustCompile(`(?i)content|main|article`)

	urlPattern        = regexp.MustCompile(`https?://\S+|www\.\S+`)
	percentEncPattern = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	trackingParamPattern = regexp.MustCompile(`(?i)\b(rut|utm_\w*|ref|uddg|source|campaign|medium|term|content)=[a-zA-Z0-9_-]+`)
	ampParamPattern   = regexp.MustCompile(`&[a-zA-Z0-9_]+=[a-zA-Z0-9_-]+`)
	hexIDPattern      = regexp.MustCompile(`(?i)\b[0-9a-f]{32,}\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	paraBreakPattern  = regexp.MustCompile(`\n\s*\n`)

	mdHeaderPattern = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBoldPattern   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	mdItalicPattern = regexp.MustCompile(`\*([^*]+)\*`)
	mdLinkPattern   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdCodePattern   = regexp.MustCompile("`([^`]+)`")
	mdCodeBlockPattern = regexp.MustCompile("(?s)```.*?```")

	englishIndicators = []string{" the ", " and ", " is ", " are ", " was ", " were ", " this ", " that "}
)

// Process cleans raw content into normalized text and metadata. It
// fails with ErrEmptyContent only when rawContent itself is empty;
// content that normalizes to fewer than MinTextLength characters
// returns an empty-text Result, not an error, matching spec §4.1.
func Process(rawContent string, kind ContentKind, sourceURL string) (Result, error) {
	if strings.TrimSpace(rawContent) == "" {
		return Result{}, ErrEmptyContent
	}

	var extracted string
	switch kind {
	case KindHTML:
		extracted = extractFromHTML(rawContent)
	case KindMarkdown:
		extracted = extractFromMarkdown(rawContent)
	default:
		extracted = strings.TrimSpace(rawContent)
	}

	now := time.Now().UTC()
	if len(strings.TrimSpace(extracted)) < MinTextLength {
		return Result{Metadata: Metadata{URL: sourceURL, Language: "unknown", ProcessedAt: now}}, nil
	}

	normalized := normalizeText(extracted)
	cleaned := removeLowQualityLines(normalized)
	if len(cleaned) > MaxTextLength {
		cleaned = cleaned[:MaxTextLength]
	}
	if len(cleaned) < MinTextLength {
		return Result{Metadata: Metadata{URL: sourceURL, Language: "unknown", ProcessedAt: now}}, nil
	}

	lang := detectLanguage(cleaned)
	meta := Metadata{
		URL:         sourceURL,
		Domain:      domainOf(sourceURL),
		Language:    lang,
		WordCount:   len(strings.Fields(cleaned)),
		CharCount:   len(cleaned),
		ProcessedAt: now,
	}

	return Result{Text: cleaned, Metadata: meta}, nil
}

// extractFromHTML applies a readability-style cascade: prefer a
// semantic main-content container, strip boilerplate elements, fall
// back to the full body text.
func extractFromHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	stripNodes(doc)

	if main := findContentNode(doc); main != nil {
		if text := strings.TrimSpace(nodeText(main)); len(text) > MinTextLength {
			return text
		}
	}
	return strings.TrimSpace(nodeText(doc))
}

func stripNodes(n *html.Node) {
	var toRemove []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && stripElements[n.Data] {
			toRemove = append(toRemove, n)
			return // don't descend into a node we're about to remove
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func findContentNode(n *html.Node) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, tag := range contentElements {
				if n.Data == tag {
					found = n
					return
				}
			}
			if n.Data == "div" {
				for _, a := range n.Attr {
					if a.Key == "class" && contentClassHint.MatchString(a.Val) {
						found = n
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
			if found != nil {
				return
			}
		}
	}
	walk(n)
	if found != nil {
		return found
	}
	// Fall back to <body>.
	var body *html.Node
	var findBody func(*html.Node)
	findBody = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findBody(c)
		}
	}
	findBody(n)
	return body
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func extractFromMarkdown(md string) string {
	text := mdHeaderPattern.ReplaceAllString(md, "")
	text = mdCodeBlockPattern.ReplaceAllString(text, "")
	text = mdBoldPattern.ReplaceAllString(text, "$1")
	text = mdItalicPattern.ReplaceAllString(text, "$1")
	text = mdLinkPattern.ReplaceAllString(text, "$1")
	text = mdCodePattern.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text)
}

// normalizeText strips URLs and tracking fragments, normalizes Unicode
// to NFC, and collapses whitespace. Applying it twice is a no-op
// (spec §8's Preprocess ∘ Preprocess = Preprocess round-trip law).
func normalizeText(text string) string {
	text = norm.NFC.String(text)
	text = percentEncPattern.ReplaceAllString(text, "")
	text = urlPattern.ReplaceAllString(text, "")
	text = trackingParamPattern.ReplaceAllString(text, "")
	text = ampParamPattern.ReplaceAllString(text, "")
	text = hexIDPattern.ReplaceAllString(text, "")
	text = paraBreakPattern.ReplaceAllString(text, "\n\n")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// removeLowQualityLines drops lines that are too short, mostly
// punctuation, or a single repeated character.
func removeLowQualityLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || len(line) < 10 {
			continue
		}
		wordChars := 0
		for _, r := range line {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
				wordChars++
			}
		}
		if float64(wordChars) < float64(len(line))*0.3 {
			continue
		}
		if len(uniqueRunes(line)) < 3 {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func uniqueRunes(s string) map[rune]struct{} {
	set := make(map[rune]struct{})
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}

// detectLanguage is a simple heuristic fallback: no external language
// library is wired in, so it reports "en" when common English function
// words are present and "unknown" otherwise (spec §4.1 allows this).
func detectLanguage(text string) string {
	padded := " " + strings.ToLower(text) + " "
	for _, w := range englishIndicators {
		if strings.Contains(padded, w) {
			return "en"
		}
	}
	return "unknown"
}

func domainOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
