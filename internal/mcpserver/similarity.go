package mcpserver

// suggestTopics returns the known topics most similar to topic (by
// normalized edit distance), for the "did you mean" hint attached to a
// NotFound error when get_topic misses. At most max names are returned.
func suggestTopics(topic string, known []string, max int) []string {
	type scored struct {
		name  string
		score float64
	}
	scores := make([]scored, 0, len(known))
	for _, name := range known {
		scores = append(scores, scored{name: name, score: similarity(topic, name)})
	}

	// Simple selection sort over a small slice; known-topic counts are a
	// handful to a few hundred, never large enough to warrant sort.Slice
	// plus a comparator allocation.
	for i := range scores {
		best := i
		for j := i + 1; j < len(scores); j++ {
			if scores[j].score > scores[best].score {
				best = j
			}
		}
		scores[i], scores[best] = scores[best], scores[i]
	}

	if max > len(scores) {
		max = len(scores)
	}
	out := make([]string, 0, max)
	for i := 0; i < max; i++ {
		if scores[i].score <= 0 {
			break
		}
		out = append(out, scores[i].name)
	}
	return out
}

// similarity is 1 - (levenshtein distance / longer string length), so 1.0
// is an exact match and 0.0 shares nothing.
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	dist := levenshtein(a, b)
	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	if longer == 0 {
		return 0
	}
	return 1 - float64(dist)/float64(longer)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
