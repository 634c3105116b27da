package analysis

import (
	"regexp"
	"strings"
)

var schemeAndWWW = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?`)

// ExtractDomain strips the scheme, a leading "www." and everything from the
// first path, query or fragment separator.
func ExtractDomain(websiteURL string) string {
	domain := schemeAndWWW.ReplaceAllString(strings.TrimSpace(websiteURL), "")
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	return domain
}
