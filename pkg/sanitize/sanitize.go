package sanitize

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// DisplayName normalizes a user-supplied display name: trims whitespace,
// strips control characters and caps the length.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = controlChars.ReplaceAllString(name, "")
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

// ChatContent strips control characters from a chat message while keeping
// newlines and tabs. Content is never HTML-escaped here; clients render
// messages as text.
func ChatContent(content string) string {
	return controlChars.ReplaceAllString(content, "")
}
