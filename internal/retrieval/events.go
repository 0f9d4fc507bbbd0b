package retrieval

import (
	"sort"
	"strings"
)

var eventTriggers = map[string]string{
	"wedding":      "wedding",
	"marriage":     "wedding",
	"birthday":     "birthday",
	"anniversary":  "anniversary",
	"graduation":   "graduation",
	"trip":         "travel",
	"vacation":     "travel",
	"travel":       "travel",
	"holiday":      "holiday",
	"christmas":    "holiday",
	"thanksgiving": "holiday",
	"funeral":      "funeral",
}

// EventHints maps trigger keywords onto the event-type hint vocabulary, sorted and unique.
func EventHints(keywords []string) []string {
	set := make(map[string]struct{})
	for _, kw := range keywords {
		if hint, ok := eventTriggers[strings.ToLower(strings.TrimSpace(kw))]; ok {
			set[hint] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for hint := range set {
		out = append(out, hint)
	}
	sort.Strings(out)
	return out
}
