package chunking

import (
	"strings"
	"unicode/utf8"
)

// fallbackSplit accumulates sentences into chunks bounded by a token budget,
// carrying the tail of one chunk into the next as overlap so that context
// isn't lost at a cut. Used whenever semantic splitting is disabled or fails.
func (c *Chunker) fallbackSplit(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentTokens := 0

	for _, s := range sentences {
		tok := c.countTokens(s)

		if currentTokens+tok > c.fallbackMaxTokens && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = overlapTail(current, c.fallbackChunkOverlapChars)
			currentTokens = c.countTokens(strings.Join(current, " "))
		}

		current = append(current, s)
		currentTokens += tok
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

// overlapTail returns the trailing sentences of a chunk whose combined
// length is at most maxChars, working backwards from the end.
func overlapTail(sentences []string, maxChars int) []string {
	if len(sentences) == 0 || maxChars <= 0 {
		return nil
	}

	var tail []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		total += len(sentences[i])
		if total > maxChars && len(tail) > 0 {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
	}
	return tail
}

// splitOversizedByChars enforces chunkMaxSizeChars on a single chunk by
// char-budgeted sentence accumulation; a sentence longer than the budget on
// its own is cut at rune boundaries. Applied to every piece produced by
// either splitter.
func splitOversizedByChars(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s)+1 > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		for maxChars > 0 && len(s) > maxChars {
			cut := maxChars
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(s)
			}
			chunks = append(chunks, s[:cut])
			s = strings.TrimSpace(s[cut:])
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
