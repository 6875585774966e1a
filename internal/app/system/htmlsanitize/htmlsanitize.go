// Package htmlsanitize cleans text received from upstream data sources
// before it reaches templates, JSON responses or chart labels.
// It uses bluemonday to strip markup entirely; upstream fields are plain
// text and never carry formatting worth keeping.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// policy strips every element and attribute.
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes all markup from s and returns the remaining text with
// entities decoded and surrounding whitespace trimmed. Contents of script
// and style elements are dropped along with the tags.
func Text(s string) string {
	if s == "" {
		return ""
	}
	if IsPlainText(s) {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(s)))
}

// IsPlainText reports whether s contains nothing that looks like a tag.
func IsPlainText(s string) bool {
	return !strings.Contains(s, "<") || !strings.Contains(s, ">")
}
