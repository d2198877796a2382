package chunking

import (
	"regexp"
	"strings"
)

var (
	paragraphBreakRE = regexp.MustCompile(`\n\s*\n+`)
	sentenceRE       = regexp.MustCompile(`[^.!?。！？]+[.!?。！？]*`)
)

// splitSentences breaks text into sentence-sized units, first on paragraph
// breaks (blank lines, as Markdown documents use them) and then on
// sentence-terminating punctuation within each paragraph. It understands
// both Latin and Chinese terminators since the corpus ships bilingual docs.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []string
	for _, para := range paragraphBreakRE.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		matches := sentenceRE.FindAllString(para, -1)
		if len(matches) == 0 {
			out = append(out, para)
			continue
		}
		for _, m := range matches {
			m = strings.TrimSpace(m)
			if m != "" {
				out = append(out, m)
			}
		}
	}
	return out
}
