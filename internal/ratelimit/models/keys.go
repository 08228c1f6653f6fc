package models

import "strings"

// SanitizeKeySegment escapes the key delimiter so a crafted identifier such as
// an IPv6 address or forwarded header cannot land in another bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
