package util

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateChars(t *testing.T) {
	assert.Equal(t, "hello", TruncateChars("hello", 10))
	assert.Equal(t, "hel", TruncateChars("hello", 3))
	assert.Equal(t, "", TruncateChars("hello", 0))
	assert.Equal(t, "", TruncateChars("", 5))
}

func TestTruncateCharsMultiByte(t *testing.T) {
	s := strings.Repeat("日", 10)
	got := TruncateChars(s, 4)
	assert.Equal(t, strings.Repeat("日", 4), got)
	assert.True(t, utf8.ValidString(got))

	// A boundary that would split a rune byte-wise stays valid.
	mixed := "abc" + "é" + "def"
	got = TruncateChars(mixed, 4)
	assert.Equal(t, "abcé", got)
	assert.True(t, utf8.ValidString(got))
}
