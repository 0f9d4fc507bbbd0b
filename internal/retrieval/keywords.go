package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/KhushM7/UncTube/internal/extraction"
	"github.com/KhushM7/UncTube/internal/logging"
)

// RelatednessThreshold is the minimum 1-10 score for an inventory keyword to count.
const RelatednessThreshold = 8

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9']+`)

var stopwords = toSet(
	"a", "an", "the", "and", "or", "but", "to", "of", "in", "on", "for", "with", "about",
	"at", "by", "from", "is", "are", "was", "were", "be", "been", "this", "that", "these",
	"those", "it", "its", "as", "i", "me", "my", "we", "our", "you", "your", "they", "their",
	"he", "she", "his", "her", "them", "what", "when", "where", "who", "why", "how", "did",
)

func toSet(words ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// FallbackKeywords returns the topN most frequent non-stopword tokens, ties in
// first-seen order.
func FallbackKeywords(question string, topN int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, tok := range tokenize(question) {
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}
	return order
}

// Inference is the outcome of keyword inference for one question.
type Inference struct {
	Keywords      []string
	EventTypes    []string
	Matches       []extraction.Match
	FromInventory bool
}

// InferKeywords prefers inventory keywords the collaborator rates as related to the
// question and falls back to token frequency when that yields nothing or fails.
func InferKeywords(ctx context.Context, collab extraction.Collaborator, question string, inventory []string, topN int) Inference {
	var inf Inference
	if len(inventory) > 0 && collab != nil {
		match, err := collab.MatchKeywords(ctx, question, inventory, topN)
		if err != nil {
			logging.FromCtx(ctx).Warn().Err(err).Msg("keyword matching failed, using token fallback")
		} else {
			inf.Keywords, inf.Matches = resolveMatches(question, inventory, match)
		}
	}
	if len(inf.Keywords) > 0 {
		inf.FromInventory = true
	} else {
		inf.Keywords = FallbackKeywords(question, topN)
	}
	inf.EventTypes = EventHints(inf.Keywords)
	return inf
}

// resolveMatches maps collaborator output back onto canonical inventory casing.
func resolveMatches(question string, inventory []string, match extraction.KeywordMatch) ([]string, []extraction.Match) {
	canonical := make(map[string]string, len(inventory))
	for _, kw := range inventory {
		canonical[strings.ToLower(strings.TrimSpace(kw))] = kw
	}

	resolved := make([]string, 0)
	selected := make([]extraction.Match, 0)
	for _, m := range match.Matches {
		if m.Score < RelatednessThreshold {
			continue
		}
		kw, ok := canonical[strings.ToLower(strings.TrimSpace(m.Keyword))]
		if !ok {
			continue
		}
		resolved = append(resolved, kw)
		selected = append(selected, extraction.Match{Keyword: kw, Score: m.Score, QuestionKeyword: m.QuestionKeyword})
	}
	if len(resolved) > 0 {
		return dedupeFold(resolved), selected
	}

	for _, k := range match.Keywords {
		if kw, ok := canonical[strings.ToLower(strings.TrimSpace(k))]; ok {
			resolved = append(resolved, kw)
		}
	}
	if len(resolved) == 0 {
		return nil, selected
	}
	resolved = dedupeFold(resolved)

	// Without scored matches, only trust keywords sharing a term with the question.
	questionTerms := toSet(tokenize(question)...)
	strict := make([]string, 0, len(resolved))
	for _, kw := range resolved {
		for _, term := range tokenize(kw) {
			if _, ok := questionTerms[term]; ok {
				strict = append(strict, kw)
				break
			}
		}
	}
	if len(strict) > 0 {
		return strict, selected
	}
	return resolved, selected
}

func dedupeFold(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := strings.ToLower(w)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	return out
}
