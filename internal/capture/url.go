package capture

import (
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`^[a-zA-Z]+://`)

// NormalizeURL trims the raw input and prepends https:// when no scheme is present.
// Host and scheme validity are left to the browser.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}
	if !schemePrefix.MatchString(trimmed) {
		return "https://" + trimmed, nil
	}
	return trimmed, nil
}
