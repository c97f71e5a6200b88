package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// Clean trims the string and collapses inner runs of whitespace into a single space.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Lower lowercases using polish casing rules.
func Lower(s string) string {
	// casers keep state, so they cannot be shared
	return cases.Lower(language.Polish).String(s)
}

// UcFirst lowercases the cleaned string and capitalizes only its first letter.
func UcFirst(s string) string {
	s = Lower(Clean(s))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TitleCase lowercases the cleaned string and capitalizes every word.
func TitleCase(s string) string {
	return cases.Title(language.Polish).String(Lower(Clean(s)))
}

// IsAffirmative reports whether the portal's cell holds its "yes" token.
func IsAffirmative(s string) bool {
	return Clean(s) == "Tak"
}
