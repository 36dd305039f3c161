// Package language normalizes the target-language values arriving on
// translation requests, so "EN_us", " en-US " and "en-us" all produce the
// same cache key and the same prompt label.
package language

import "strings"

// NormalizeTag lowercases a language tag and collapses separators to "-".
// Returns an empty string when the value is blank or contains characters a
// tag cannot carry; callers fall back to the raw value as a verbatim name.
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	parts := strings.Split(trimmed, "-")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !isAlphaLower(part) {
			return ""
		}
		normalized = append(normalized, part)
	}

	if len(normalized) == 0 {
		return ""
	}
	return strings.Join(normalized, "-")
}

// NormalizeCode reduces a tag to its primary subtag ("en" from "en-US"),
// the form the prompt label table and the language detector work in.
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
