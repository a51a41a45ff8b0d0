// Package dedupe implements the semantic deduplication pass invoked by the
// extraction orchestrator before each draft is created: an embedding
// nearest-neighbor search intersected with a normalized-name edit-distance
// check. The tiered skip/review/create decision is pure-function code;
// the name-similarity leg uses agnivade/levenshtein.
package dedupe

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

var costAnnotationRE = regexp.MustCompile(`\(\s*[\d.,]+\s*[^\)]{0,8}\)`)
var whitespaceRE = regexp.MustCompile(`\s+`)
var trailingPunctRE = regexp.MustCompile(`[.,;:!?\-–—\s]+$`)

// NormalizeName strips cost/volume
// annotations like "(424.39₽)", lowercase, collapse whitespace, strip
// trailing punctuation. Idempotent: NormalizeName(NormalizeName(x)) ==
// NormalizeName(x).
func NormalizeName(name string) string {
	s := costAnnotationRE.ReplaceAllString(name, "")
	s = strings.ToLower(s)
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingPunctRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// NameSimilarity returns a Levenshtein ratio in [0,1] between the
// normalized forms of a and b: 1 - (edit distance / max length).
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" && nb == "" {
		return 1
	}
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(dist)/float64(maxLen)
}

// IsStrongNameMatch is the "counts as a strong match even if embedding
// similarity is marginal" rule: ratio >= 0.90.
func IsStrongNameMatch(a, b string) bool {
	return NameSimilarity(a, b) >= 0.90
}
