package research

import "strings"

// extractFirstJSONObject finds the first balanced {...} substring in text,
// tolerating braces inside string literals. It returns ok=false if no
// balanced object is found, which the caller treats as a parse failure
// per spec.md §4.8's "if parsing fails, return an empty list" rule.
func extractFirstJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
