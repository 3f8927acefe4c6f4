package xfs

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeRun = regexp.MustCompile(`[^a-zA-Z0-9-]+`)

// SanitizeFilename turns free text into an ASCII file stem.
//
// Accents are decomposed and dropped, any other non-ASCII rune is removed,
// every run of characters outside [a-zA-Z0-9_-] becomes a single underscore,
// and leading/trailing underscores are trimmed.
func SanitizeFilename(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, text)
	if err != nil {
		ascii = text
	}

	return strings.Trim(unsafeRun.ReplaceAllString(ascii, "_"), "_")
}
