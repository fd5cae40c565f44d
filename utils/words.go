package utils

import "strings"

// CountWords returns the number of whitespace-separated tokens in text.
// Empty and whitespace-only input counts as zero words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
