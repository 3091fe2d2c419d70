// Package textnorm canonicalizes page text and reference values into comparable forms.
//
// Normalize is the exact-comparison form: lower-cased, NFC-composed, stripped of anything
// that is not a letter, digit, whitespace or hyphen, with whitespace runs collapsed.
// ForFuzzy is stricter and also drops separators and diacritics; it must only feed
// fuzzy comparison.
package textnorm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Fold lower-cases s and composes it to NFC so OCR output with combining marks
// compares equal to precomposed catalog values.
func Fold(s string) string {
	if s == "" {
		return s
	}
	return lower.String(norm.NFC.String(s))
}

// Normalize converts a raw value into its exact-comparison form.
func Normalize(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return stripPunct(Fold(v))
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format("2006-01-02")
	case []byte:
		return stripPunct(Fold(string(v)))
	default:
		return Fold(fmt.Sprint(v))
	}
}

func stripPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ForFuzzy lower-cases s, removes separators (space, dot, hyphen, underscore, slash)
// and every remaining non-alphanumeric rune, and folds diacritics.
func ForFuzzy(s string) string {
	s = stripAccents(Fold(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens splits s on whitespace.
func Tokens(s string) []string {
	return strings.Fields(s)
}
