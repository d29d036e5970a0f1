package downloader

import (
	"strings"
	"unicode"
)

// SanitizeFilename keeps letters, digits, space, hyphen and underscore, then trims whitespace
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return -1
	}, name)
	return strings.TrimSpace(cleaned)
}
