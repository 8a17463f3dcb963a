package render

import (
	"html"
	"strings"
)

// StripHTML flattens an HTML body into a plain-text alternative: tags are
// dropped, block boundaries become newlines, and entities are decoded.
func StripHTML(input string) string {
	var out strings.Builder
	inTag := false
	for _, r := range input {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	text := html.UnescapeString(out.String())
	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n")
}
