// Package fusion implements Reciprocal Rank Fusion over multiple ranked
// result lists produced by independent retrieval sources.
package fusion

import (
	"sort"
	"strings"

	"github.com/cangjie-tools/cangjie-mcp/internal/models"
)

// DefaultK is the RRF smoothing constant used when the caller does not
// configure one.
const DefaultK = 60

// dedupKey collapses chunk variants of the same logical passage across
// retrievers without requiring stable chunk IDs: the first 200 characters
// of the text, paired with the file path, are assumed to be distinguishing.
func dedupKey(r models.SearchResult) string {
	text := r.Text
	if len(text) > 200 {
		text = text[:200]
	}
	var b strings.Builder
	b.WriteString(r.Metadata.FilePath)
	b.WriteByte('|')
	b.WriteString(text)
	return b.String()
}

// Reciprocal runs Reciprocal Rank Fusion over resultLists, accumulating
// 1/(k+rank+1) per dedup key across every list (rank is zero-based), and
// returns the top topK entries sorted by accumulated score descending. Each
// returned entry carries forward the metadata of whichever occurrence had
// the highest original score, with its Score field replaced by the fused
// RRF score.
func Reciprocal(resultLists [][]models.SearchResult, k int, topK int) []models.SearchResult {
	if k <= 0 {
		k = DefaultK
	}

	scores := make(map[string]float64)
	best := make(map[string]models.SearchResult)
	order := make([]string, 0)

	for _, list := range resultLists {
		for rank, result := range list {
			key := dedupKey(result)
			if _, seen := scores[key]; !seen {
				order = append(order, key)
			}
			scores[key] += 1.0 / float64(k+rank+1)

			if current, ok := best[key]; !ok || result.Score > current.Score {
				best[key] = result
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if topK > 0 && topK < len(order) {
		order = order[:topK]
	}

	out := make([]models.SearchResult, 0, len(order))
	for _, key := range order {
		merged := best[key]
		merged.Score = scores[key]
		out = append(out, merged)
	}
	return out
}
