package retrieval

import (
	"sort"
	"strings"

	"github.com/KhushM7/UncTube/internal/memory"
)

// Score counts keyword occurrences in title, summary and description, and adds two
// points per exact keyword shared with the unit's own keyword list.
func Score(u memory.MemoryUnit, keywords []string) int {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Title, u.Summary} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if u.Description != nil && *u.Description != "" {
		parts = append(parts, *u.Description)
	}
	blob := strings.ToLower(strings.Join(parts, " "))

	score := 0
	for _, kw := range keywords {
		needle := strings.ToLower(kw)
		if needle == "" {
			continue
		}
		score += strings.Count(blob, needle)
	}

	own := make(map[string]struct{}, len(u.Keywords))
	for _, kw := range u.Keywords {
		own[kw] = struct{}{}
	}
	shared := make(map[string]struct{})
	for _, kw := range keywords {
		if _, ok := own[kw]; ok {
			shared[kw] = struct{}{}
		}
	}
	return score + 2*len(shared)
}

// Rank orders candidates by descending score, keeping store order on ties, and
// truncates to topK.
func Rank(candidates []memory.RetrievedMemory, keywords []string, topK int) []memory.RetrievedMemory {
	scores := make([]int, len(candidates))
	idx := make([]int, len(candidates))
	for i, c := range candidates {
		scores[i] = Score(c.Unit, keywords)
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	n := len(idx)
	if topK > 0 && n > topK {
		n = topK
	}
	out := make([]memory.RetrievedMemory, 0, n)
	for _, i := range idx[:n] {
		out = append(out, candidates[i])
	}
	return out
}
