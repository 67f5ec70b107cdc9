// Package latex holds the deterministic post-processing applied to model output
// before it is handed to the TeX toolchain.
package latex

import "strings"

const fence = "```"

// reserved lists the characters escaped by Escape, in the order the escaping
// is documented: & % $ # _ { }.
const reserved = "&%$#_{}"

// Normalize strips code fences, escapes reserved characters and trims the result.
func Normalize(s string) string {
	return strings.TrimSpace(Escape(StripCodeFences(s)))
}

// StripCodeFences removes Markdown code fences wrapped around the whole text.
// An opening fence may carry a language tag ("```latex"). Fences are removed
// until none are left at either end, so applying it twice changes nothing.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	for {
		stripped := s

		if strings.HasPrefix(stripped, fence) {
			stripped = stripped[len(fence):]
			// Drop the language tag: everything up to the first line break.
			if idx := strings.IndexByte(stripped, '\n'); idx != -1 {
				if tag := strings.TrimSpace(stripped[:idx]); isLanguageTag(tag) {
					stripped = stripped[idx+1:]
				}
			} else if isLanguageTag(strings.TrimSpace(stripped)) {
				stripped = ""
			}
		}

		stripped = strings.TrimSpace(stripped)
		stripped = strings.TrimSuffix(stripped, fence)
		stripped = strings.TrimSpace(stripped)

		if stripped == s {
			return s
		}
		s = stripped
	}
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '+' || r == '_') {
			return false
		}
	}
	return true
}

// Escape prefixes every reserved character with a backslash in one scan over the
// input, so an escape produced for one character is never matched again.
func Escape(s string) string {
	if !strings.ContainsAny(s, reserved) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for _, r := range s {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
