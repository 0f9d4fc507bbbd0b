package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	speechURLPattern        = regexp.MustCompile(`https?://\S+`)
	speechLinkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	speechCitationPattern   = regexp.MustCompile(`\[[^\]]*\]`)
	speechListMarkerPattern = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
)

// SpeakableText strips markdown, bracketed citations, links and emoji from an answer
// so it reads naturally when synthesized.
func SpeakableText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = speechLinkPattern.ReplaceAllString(raw, "$1")
	raw = speechCitationPattern.ReplaceAllString(raw, " ")
	raw = speechURLPattern.ReplaceAllString(raw, " ")
	raw = speechListMarkerPattern.ReplaceAllString(raw, "")

	out := make([]rune, 0, len(raw))
	space := true
	for _, r := range raw {
		switch {
		case r == '\u200d' || r == '\ufe0f' || r == '\u20e3':
			continue
		case unicode.IsSpace(r):
			if !space {
				out = append(out, ' ')
				space = true
			}
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sm, unicode.Sk):
			continue
		case strings.ContainsRune(".,!?:;", r):
			// Closing punctuation attaches to the previous word.
			if n := len(out); n > 0 && out[n-1] == ' ' {
				out = out[:n-1]
			}
			out = append(out, r)
			space = false
		case strings.ContainsRune(`'"-()`, r):
			out = append(out, r)
			space = false
		case unicode.IsPunct(r):
			if !space {
				out = append(out, ' ')
				space = true
			}
		default:
			out = append(out, r)
			space = false
		}
	}
	return strings.TrimSpace(string(out))
}
