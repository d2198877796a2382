package mcpserver

import "regexp"

var fencedCodeBlockRE = regexp.MustCompile("(?s)```.*?```")

// extractCodeBlocks returns every fenced code block found in text, in
// document order. It mirrors docsource's own extraction regex, kept
// separate since it operates on search-result text rather than whole
// documents.
func extractCodeBlocks(text string) []string {
	return fencedCodeBlockRE.FindAllString(text, -1)
}
