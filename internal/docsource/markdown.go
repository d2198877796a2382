package docsource

import (
	"regexp"
	"strings"
)

var codeBlockRE = regexp.MustCompile("(?s)```.*?```")

// extractTitle returns the first Markdown heading in content, or its first
// non-empty line if no heading is present.
func extractTitle(content string) string {
	var firstLine string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if firstLine == "" {
			firstLine = trimmed
		}
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return firstLine
}

// extractCodeBlocks returns every fenced code block (``` ... ```) found in
// content, in document order.
func extractCodeBlocks(content string) []string {
	return codeBlockRE.FindAllString(content, -1)
}
