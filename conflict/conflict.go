// Package conflict finds factual disagreements across distinct source
// documents — never within a single document — and renders them as a
// plain-language prompt for the user to resolve (spec §4.5).
package conflict

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/acctplan"
)

var topicKeywords = map[string][]string{
	"revenue":   {"revenue", "sales", "income", "earnings"},
	"headcount": {"employees", "headcount", "workforce", "staff"},
	"founded":   {"founded", "established", "started", "incorporated"},
	"location":  {"headquarters", "based in", "located in", "hq"},
	"products":  {"product", "offers", "provides"},
	"market":    {"market", "industry", "sector"},
}

// topicOrder fixes iteration order so conflicts are deterministic.
var topicOrder = []string{"revenue", "headcount", "founded", "location", "products", "market"}

var revenuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:revenue|sales|income)[:\s]+(?:of|is|was|were|are)\s+\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B|trillion)?`),
	regexp.MustCompile(`(?i)\$([\d,]+\.?\d*)\s*(?:million|billion|M|B|trillion)?\s+(?:in\s+)?(?:annual\s+)?(?:revenue|sales)`),
	regexp.MustCompile(`(?i)(?:annual\s+)?revenue\s+(?:of\s+)?\$?([\d,]+\.?\d*)\s*(?:million|billion|M|B|trillion)?`),
}

var headcountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})*)\s+employees?`),
	regexp.MustCompile(`(?i)employs?\s+(\d{1,3}(?:,\d{3})*)\s+(?:people|employees|staff)`),
	regexp.MustCompile(`(?i)workforce\s+(?:of\s+)?(\d{1,3}(?:,\d{3})*)`),
	regexp.MustCompile(`(?i)approximately\s+(\d{1,3}(?:,\d{3})*)\s+employees?`),
}

var foundedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)founded\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)established\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)started\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)incorporated\s+in\s+(\d{4})`),
	regexp.MustCompile(`(?i)(\d{4})\s+(?:was\s+)?(?:the\s+)?year\s+(?:we\s+)?(?:were\s+)?founded`),
}

var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)headquarters[:\s]+(?:in|at|is\s+in|are\s+in|located\s+in)\s+([A-Z][a-zA-Z\s,]+(?:,\s*[A-Z][a-zA-Z]+)?)`),
	regexp.MustCompile(`(?i)based\s+in\s+([A-Z][a-zA-Z\s,]+(?:,\s*[A-Z][a-zA-Z]+)?)`),
	regexp.MustCompile(`(?i)headquartered\s+in\s+([A-Z][a-zA-Z\s,]+(?:,\s*[A-Z][a-zA-Z]+)?)`),
}

var numericTopics = map[string]bool{"revenue": true, "headcount": true, "founded": true}
var highSeverityTopics = map[string]bool{"revenue": true, "headcount": true, "founded": true, "location": true}

type topicValue struct {
	value      string
	documentID string
	sourceKind string
	sourceRef  string
}

// DetectConflicts groups chunks by document and flags topics where two
// or more distinct documents report different values. Chunks all from
// the same document never produce a conflict.
func DetectConflicts(chunks []acctplan.Chunk) []acctplan.Conflict {
	byDoc := make(map[string][]acctplan.Chunk)
	var docOrder []string
	for i, c := range chunks {
		id := c.Metadata.DocumentID(fmt.Sprintf("source_%d", i))
		if _, ok := byDoc[id]; !ok {
			docOrder = append(docOrder, id)
		}
		byDoc[id] = append(byDoc[id], c)
	}

	if len(byDoc) < 2 {
		return nil
	}

	topicData := make(map[string][]topicValue)
	for _, docID := range docOrder {
		docChunks := byDoc[docID]
		var text strings.Builder
		for _, c := range docChunks {
			text.WriteString(c.Text)
			text.WriteString(" ")
		}
		docText := strings.ToLower(text.String())
		first := docChunks[0]

		for _, topic := range topicOrder {
			keywords := topicKeywords[topic]
			hasKeyword := false
			for _, kw := range keywords {
				if strings.Contains(docText, kw) {
					hasKeyword = true
					break
				}
			}
			if !hasKeyword {
				continue
			}
			value, ok := extractValue(docText, topic)
			if !ok || strings.TrimSpace(value) == "" {
				continue
			}
			topicData[topic] = append(topicData[topic], topicValue{
				value:      value,
				documentID: docID,
				sourceKind: string(first.Metadata.SourceKind),
				sourceRef:  first.Metadata.DocumentID(docID),
			})
		}
	}

	var conflicts []acctplan.Conflict
	for _, topic := range topicOrder {
		values := topicData[topic]
		if len(values) < 2 {
			continue
		}

		valuesByDoc := make(map[string]map[string]bool)
		for _, v := range values {
			if valuesByDoc[v.documentID] == nil {
				valuesByDoc[v.documentID] = make(map[string]bool)
			}
			valuesByDoc[v.documentID][v.value] = true
		}
		if len(valuesByDoc) < 2 {
			continue
		}

		uniqueSet := make(map[string]bool)
		for _, vs := range valuesByDoc {
			for v := range vs {
				uniqueSet[v] = true
			}
		}
		if len(uniqueSet) < 2 {
			continue
		}

		if numericTopics[topic] && !areValuesSignificantlyDifferent(topic, uniqueSet) {
			continue
		}

		uniqueValues := make([]string, 0, len(uniqueSet))
		for v := range uniqueSet {
			uniqueValues = append(uniqueValues, v)
		}
		sort.Strings(uniqueValues)

		sources := make([]acctplan.ConflictSourceValue, 0, len(values))
		for _, v := range values {
			sources = append(sources, acctplan.ConflictSourceValue{
				Value:           v.value,
				DocumentID:      v.documentID,
				SourceKind:      v.sourceKind,
				SourceFileOrURL: v.sourceRef,
			})
		}

		conflicts = append(conflicts, acctplan.Conflict{
			Topic:             topic,
			ConflictingValues: uniqueValues,
			Sources:           sources,
			Severity:          severityOf(topic),
		})
	}

	return conflicts
}

func severityOf(topic string) acctplan.ConflictSeverity {
	if highSeverityTopics[topic] {
		return acctplan.SeverityHigh
	}
	return acctplan.SeverityMedium
}

// extractValue pulls the representative value for topic out of
// lowercased document text. products/market are deliberately never
// extracted — the source material only flags conflicts in
// factual, verifiable data.
func extractValue(text, topic string) (string, bool) {
	switch topic {
	case "revenue", "headcount":
		patterns := revenuePatterns
		if topic == "headcount" {
			patterns = headcountPatterns
		}
		var last string
		found := false
		for _, p := range patterns {
			matches := p.FindAllStringSubmatch(text, -1)
			for _, m := range matches {
				if len(m) > 1 {
					last = m[1]
					found = true
				}
			}
		}
		return last, found

	case "founded":
		var years []int
		for _, p := range foundedPatterns {
			for _, m := range p.FindAllStringSubmatch(text, -1) {
				if len(m) > 1 {
					if y, err := strconv.Atoi(m[1]); err == nil && y >= 1800 && y <= 2100 {
						years = append(years, y)
					}
				}
			}
		}
		if len(years) == 0 {
			return "", false
		}
		min := years[0]
		for _, y := range years[1:] {
			if y < min {
				min = y
			}
		}
		return strconv.Itoa(min), true

	case "location":
		for _, p := range locationPatterns {
			m := p.FindStringSubmatch(text)
			if len(m) > 1 {
				loc := strings.TrimSpace(m[1])
				lower := strings.ToLower(loc)
				if len(loc) > 3 && !strings.Contains(lower, "the") && !strings.Contains(lower, "company") && !strings.Contains(lower, "corporation") {
					if len(loc) > 50 {
						loc = loc[:50]
					}
					return loc, true
				}
			}
		}
		return "", false
	}
	return "", false
}

func areValuesSignificantlyDifferent(topic string, values map[string]bool) bool {
	switch topic {
	case "revenue":
		nums := normalizeFloats(values)
		if len(nums) < 2 {
			return true
		}
		min, max := minMaxFloat(nums)
		if min <= 0 {
			return true
		}
		return ((max-min)/min)*100 > 10

	case "headcount":
		nums := normalizeFloats(values)
		if len(nums) < 2 {
			return true
		}
		min, max := minMaxFloat(nums)
		if min <= 0 {
			return true
		}
		return ((max-min)/min)*100 > 15

	case "founded":
		var years []int
		for v := range values {
			digits := strings.Map(func(r rune) rune {
				if r >= '0' && r <= '9' {
					return r
				}
				return -1
			}, v)
			if len(digits) == 4 {
				if y, err := strconv.Atoi(digits); err == nil && y >= 1800 && y <= 2100 {
					years = append(years, y)
				}
			}
		}
		if len(years) < 2 {
			return true
		}
		min, max := years[0], years[0]
		for _, y := range years[1:] {
			if y < min {
				min = y
			}
			if y > max {
				max = y
			}
		}
		return (max - min) > 2
	}
	return true
}

func normalizeFloats(values map[string]bool) []float64 {
	var out []float64
	for v := range values {
		clean := strings.ReplaceAll(v, ",", "")
		clean = strings.ReplaceAll(clean, " ", "")
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func minMaxFloat(nums []float64) (float64, float64) {
	min, max := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
	}
	return min, max
}

// FormatMessage renders a conflict as a Markdown prompt with no URLs,
// grouping sources by the value they reported (spec §4.5).
func FormatMessage(c acctplan.Conflict) string {
	topicDisplay := strings.Title(strings.ReplaceAll(c.Topic, "_", " "))

	sourcesByValue := make(map[string][]acctplan.ConflictSourceValue)
	for _, s := range c.Sources {
		sourcesByValue[s.Value] = append(sourcesByValue[s.Value], s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**I'm finding conflicting information about %s:**\n\n", topicDisplay)

	for _, value := range c.ConflictingValues {
		sourceList := sourcesByValue[value]
		label := sourceLabel(friendlySources(sourceList))
		fmt.Fprintf(&b, "- **%s** reports: %s\n\n", label, formatValue(c.Topic, value))
	}

	b.WriteString("**Should I dig deeper to verify this information, or would you like me to proceed with the most authoritative source?**")
	return b.String()
}

func friendlySources(sources []acctplan.ConflictSourceValue) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sources {
		var label string
		switch {
		case s.SourceKind == string(acctplan.SourceUploadedDocument) && s.SourceFileOrURL != "":
			name := filepath.Base(s.SourceFileOrURL)
			name = strings.TrimSuffix(name, filepath.Ext(name))
			name = strings.Title(strings.ReplaceAll(name, "_", " "))
			label = fmt.Sprintf("Uploaded document (%s)", name)
		case s.SourceKind == string(acctplan.SourceUploadedDocument):
			label = "Uploaded document"
		case s.SourceKind == string(acctplan.SourceWebSearch):
			label = "Web research source"
		default:
			label = "Research source"
		}
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	return out
}

func sourceLabel(sources []string) string {
	switch len(sources) {
	case 0:
		return "Research source"
	case 1:
		return sources[0]
	case 2:
		return sources[0] + " and " + sources[1]
	default:
		return fmt.Sprintf("%s, %s, and %d other source(s)", sources[0], sources[1], len(sources)-2)
	}
}

func formatValue(topic, value string) string {
	if topic != "revenue" && topic != "headcount" {
		return value
	}
	clean := strings.ReplaceAll(value, ",", "")
	num, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return value
	}
	switch {
	case num >= 1_000_000:
		if topic == "revenue" {
			return fmt.Sprintf("$%.1fM", num/1_000_000)
		}
		return fmt.Sprintf("%dM employees", int(num/1_000_000))
	case num >= 1_000:
		if topic == "revenue" {
			return fmt.Sprintf("$%.1fK", num/1_000)
		}
		return fmt.Sprintf("%dK employees", int(num/1_000))
	}
	return value
}
