// Package similarity scores how alike two short strings are on a 0..1 scale.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/docmatch/internal/textnorm"
)

const (
	// SubstringRatio is returned when one string contains the other.
	SubstringRatio = 0.9
	// MinSubstringCoverage is the shortest/longest length ratio a containment must reach.
	MinSubstringCoverage = 0.6
	// MinTokenLen excludes short tokens from the overlap ratio.
	MinTokenLen = 3
)

// Similarity reports whether a and b match at threshold and the ratio that decided it.
// Empty inputs never match, at any threshold. The result is symmetric in a and b.
func Similarity(a, b string, threshold float64) (bool, float64) {
	if strings.TrimSpace(textnorm.Fold(a)) == "" || strings.TrimSpace(textnorm.Fold(b)) == "" {
		return false, 0
	}
	r := Ratio(a, b)
	return r >= threshold, r
}

// Ratio is Similarity without the threshold gate.
func Ratio(a, b string) float64 {
	a = strings.TrimSpace(textnorm.Fold(a))
	b = strings.TrimSpace(textnorm.Fold(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	shorter, longer := a, b
	ls, ll := la, lb
	if la > lb {
		shorter, longer = b, a
		ls, ll = lb, la
	}
	if strings.Contains(longer, shorter) && float64(ls)/float64(ll) >= MinSubstringCoverage {
		return SubstringRatio
	}

	best := editRatio(a, b)
	if r := editRatio(textnorm.ForFuzzy(a), textnorm.ForFuzzy(b)); r > best {
		best = r
	}
	if r := TokenOverlap(a, b); r > best {
		best = r
	}
	return best
}

// editRatio orders its arguments so the score cannot depend on call order.
func editRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return levenshtein.Similarity(a, b, nil)
}

// TokenOverlap counts shared whitespace tokens longer than two runes and divides
// by the size of the smaller token set.
func TokenOverlap(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok && utf8.RuneCountInString(tok) >= MinTokenLen {
			common++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	return float64(common) / float64(smaller)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Best returns the candidate with the highest ratio against value, ties going to the
// earlier candidate. ok is false when no candidate reaches threshold.
func Best(value string, candidates []string, threshold float64) (match string, ratio float64, ok bool) {
	for _, c := range candidates {
		hit, r := Similarity(value, c, threshold)
		if hit && r > ratio {
			match, ratio, ok = c, r, true
		}
	}
	return match, ratio, ok
}
