package chunking

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// semanticSplit groups sentences into chunks by embedding a sliding window
// around each sentence, measuring cosine distance between consecutive
// windows, and cutting at distances above the configured percentile
// threshold. This mirrors LlamaIndex's SemanticSplitterNodeParser: instead of
// a fixed chunk size, boundaries fall where the topic actually shifts.
func (c *Chunker) semanticSplit(text string) ([]string, error) {
	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return sentences, nil
	}

	windows := make([]string, len(sentences))
	for i := range sentences {
		lo := i - c.bufferSize
		if lo < 0 {
			lo = 0
		}
		hi := i + c.bufferSize + 1
		if hi > len(sentences) {
			hi = len(sentences)
		}
		windows[i] = strings.Join(sentences[lo:hi], " ")
	}

	vectors, err := c.embedder.GenerateEmbeddings(windows)
	if err != nil {
		return nil, fmt.Errorf("embedding sentence windows: %w", err)
	}

	distances := make([]float64, len(vectors)-1)
	for i := 0; i < len(vectors)-1; i++ {
		distances[i] = cosineDistance(vectors[i], vectors[i+1])
	}

	threshold := percentile(distances, c.breakpointPercentile)

	var chunks []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			chunks = append(chunks, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	chunks = append(chunks, strings.Join(sentences[start:], " "))

	return chunks, nil
}

func cosineDistance(a, b []float32) float64 {
	return 1 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// percentile returns the linear-interpolated p-th percentile (0-100) of
// values. An empty slice yields 0, which produces no breakpoints at all —
// the caller then falls back to the single-chunk result.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
