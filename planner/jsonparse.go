package planner

import "strings"

// extractJSONArray pulls the first balanced top-level JSON array out of
// a raw LLM response, tolerating markdown code fences and trailing
// prose. Returns "" if no balanced array is found.
func extractJSONArray(raw string) string {
	return extractBalanced(raw, '[', ']')
}

// extractJSONObject pulls the first balanced top-level JSON object out
// of a raw LLM response, the same way extractJSONArray does for arrays.
func extractJSONObject(raw string) string {
	return extractBalanced(raw, '{', '}')
}

func extractBalanced(raw string, open, close byte) string {
	raw = stripCodeFence(raw)
	start := strings.IndexByte(raw, open)
	if start == -1 {
		return ""
	}
	body := raw[start:]

	depth := 0
	inString := false
	escaped := false
	end := -1

	for i := 0; i < len(body); i++ {
		c := body[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return ""
	}
	return body[:end]
}

func stripCodeFence(raw string) string {
	if i := strings.Index(raw, "```json"); i != -1 {
		rest := raw[i+len("```json"):]
		if j := strings.Index(rest, "```"); j != -1 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	if i := strings.Index(raw, "```"); i != -1 {
		rest := raw[i+3:]
		if j := strings.Index(rest, "```"); j != -1 {
			return strings.TrimSpace(rest[:j])
		}
		return strings.TrimSpace(rest)
	}
	return raw
}
