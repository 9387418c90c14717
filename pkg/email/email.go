// Package email derives display values from applicant email addresses.
package email

import (
	"strings"
	"unicode"
)

// NameFromAddress guesses a first and last name from the local part of addr,
// splitting on dots, underscores, hyphens and plus signs. Missing parts come
// back empty.
func NameFromAddress(addr string) (first, last string) {
	local := strings.TrimSpace(addr)
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	words := parts[:0]
	for _, p := range parts {
		if strings.IndexFunc(p, unicode.IsLetter) >= 0 {
			words = append(words, p)
		}
	}
	switch len(words) {
	case 0:
		return "", ""
	case 1:
		return title(words[0]), ""
	default:
		return title(words[0]), title(words[len(words)-1])
	}
}

func title(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
