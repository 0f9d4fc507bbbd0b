package logging

import (
	"regexp"
	"unicode/utf8"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// RedactPII masks email addresses, card numbers and phone numbers. Card numbers are
// masked first so they are not mistaken for phone numbers.
func RedactPII(input string) (string, bool) {
	out := emailPattern.ReplaceAllString(input, "[email]")
	out = cardPattern.ReplaceAllString(out, "[card]")
	out = phonePattern.ReplaceAllString(out, "[phone]")
	return out, out != input
}

// Preview is the form user text takes in log lines: PII masked, at most max runes.
func Preview(text string, max int) string {
	out, _ := RedactPII(text)
	if max <= 0 || utf8.RuneCountInString(out) <= max {
		return out
	}
	runes := []rune(out)
	return string(runes[:max]) + "..."
}
