// Package jobposting holds the job description a CV is tailored to, built either
// from pasted text or by scraping a posting URL.
package jobposting

import (
	"strings"
)

// NotAvailable marks fields that could not be extracted.
const NotAvailable = "N/A"

// Posting is the job a CV is generated for.
type Posting struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

var bulletPrefixes = []string{"- ", "* ", "• ", "•"}

// FromText builds a posting from free-form text. The first non-empty line is the
// title and bullet lines are collected as requirements; the whole trimmed text
// becomes the description.
func FromText(text string) Posting {
	text = strings.TrimSpace(text)
	p := Posting{
		Title:       NotAvailable,
		Company:     NotAvailable,
		Description: text,
	}
	if text == "" {
		return p
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if p.Title == NotAvailable {
			p.Title = line
			continue
		}
		if item, ok := bullet(line); ok {
			p.Requirements = append(p.Requirements, item)
		}
	}

	return p
}

func bullet(line string) (string, bool) {
	for _, prefix := range bulletPrefixes {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			rest = strings.TrimSpace(rest)
			return rest, rest != ""
		}
	}
	return "", false
}

// Empty reports whether the posting carries no usable description.
func (p Posting) Empty() bool {
	d := strings.TrimSpace(p.Description)
	return d == "" || d == NotAvailable
}
