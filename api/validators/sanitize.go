package validators

import "strings"

// maxReasonLen caps free-text reasons attached to order transitions.
const maxReasonLen = 500

// SanitizeString trims input and truncates it to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	trimmed := strings.TrimSpace(input)
	if maxLen <= 0 {
		return trimmed
	}
	runes := []rune(trimmed)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return trimmed
}

// SanitizeReason normalizes a rejection or cancellation reason.
func SanitizeReason(input string) string {
	return SanitizeString(input, maxReasonLen)
}
