package scrape

import (
	_ "embed"
	"strings"

	"github.com/dmatteo/changuito/internal/domain/storefront"
)

//go:embed terms/detailed.txt
var detailedTerms string

//go:embed terms/general.txt
var generalTerms string

// Terms returns the search term list for a term set name. Unknown names fall
// back to the general set.
func Terms(set storefront.TermSet) []string {
	switch set {
	case storefront.TermSetDetailed:
		return parseTerms(detailedTerms)
	default:
		return parseTerms(generalTerms)
	}
}

// parseTerms splits an embedded term file into terms: one per line, blank
// lines and #-comments skipped.
func parseTerms(raw string) []string {
	var out []string
	for line := range strings.Lines(raw) {
		term := strings.TrimSpace(line)
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		out = append(out, term)
	}
	return out
}
