package common

import (
	"strings"
	"unicode"
)

// NormalizeText lower-cases text and collapses every non-alphanumeric run
// into a single space, padding both ends so phrases can be matched on word
// boundaries.
func NormalizeText(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "rs-232", "rs232")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

// HasPhrase reports whether normalized text contains any phrase as whole
// words.
func HasPhrase(norm string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(norm, " "+p+" ") {
			return true
		}
	}
	return false
}
