package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Dr. Chen", DisplayName("  Dr. Chen  "))
	assert.Equal(t, "Alice", DisplayName("Ali\x00ce"))
	assert.Len(t, DisplayName(strings.Repeat("a", 200)), 100)
}

func TestChatContentKeepsNewlines(t *testing.T) {
	assert.Equal(t, "line one\nline two", ChatContent("line one\nline two"))
	assert.Equal(t, "clean", ChatContent("cle\x07an"))
}
