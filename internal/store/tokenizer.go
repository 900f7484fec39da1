package store

import (
	"regexp"
	"strings"
	"unicode"
)

// identifierRegex matches alphanumeric runs (underscores included) so
// punctuation and whitespace fall out as natural split points.
var identifierRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// tokenizeCode splits source text into lowercase search tokens, further
// breaking each identifier on camelCase/PascalCase/snake_case boundaries so
// "getUserById" contributes "get", "user", "by", "id"; the unsplit word is
// not emitted as a token of its own. Tokens under two characters are
// dropped as noise.
func tokenizeCode(text string) []string {
	var tokens []string
	for _, word := range identifierRegex.FindAllString(text, -1) {
		for _, t := range splitIdentifier(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// splitIdentifier breaks a single token on underscores first, then applies
// camelCase splitting to each underscore-delimited part.
func splitIdentifier(token string) []string {
	if !strings.Contains(token, "_") {
		return splitCamelCase(token)
	}
	var result []string
	for _, part := range strings.Split(token, "_") {
		if part != "" {
			result = append(result, splitCamelCase(part)...)
		}
	}
	return result
}

// splitCamelCase splits camelCase/PascalCase identifiers, keeping acronym
// runs (e.g. "HTTPHandler" -> "HTTP", "Handler") intact rather than
// shattering them letter by letter.
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, stop := stopWords[strings.ToLower(t)]; !stop {
			out = append(out, t)
		}
	}
	return out
}

func buildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
