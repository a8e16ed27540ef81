package util

// TruncateChars shortens s to at most max characters, counting runes so a
// multi-byte character is never cut in half.
func TruncateChars(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
