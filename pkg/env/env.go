package env

import (
	"os"
	"strings"
)

// Prefix namespaces Klinic settings in the process environment.
const Prefix = "KLINIC_"

// Get reads KLINIC_<key> and then the bare key, returning fallback when both
// are blank.
func Get(key, fallback string) string {
	if v := First(Prefix+key, key); v != "" {
		return v
	}
	return fallback
}

// First returns the first non-blank value among keys, trimmed.
func First(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}
