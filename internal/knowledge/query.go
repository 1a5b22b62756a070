package knowledge

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IsBlankQuery reports whether query has no content once compatibility
// characters are folded with NFKC and surrounding whitespace is trimmed.
// The folded form only decides blankness; searches use the query as given.
func IsBlankQuery(query string) bool {
	return strings.TrimSpace(norm.NFKC.String(query)) == ""
}
