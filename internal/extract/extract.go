// Package extract pulls typed candidate values out of free page text.
//
// All patterns live in a Patterns value built once at startup and shared read-only
// between workers. Extraction never fails: text without recognizable values yields
// empty sets.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/textnorm"
)

// Patterns is the immutable pattern library used by an Extractor.
type Patterns struct {
	Dates       []*regexp.Regexp
	DateLayouts []string
	Identifiers []*regexp.Regexp // capture group 1 is the value
	Zips        []*regexp.Regexp
	Streets     []*regexp.Regexp
	City        *regexp.Regexp

	MinIdentifierLen int // values must be longer than this many runes
	MinStreetLen     int
	MinCityLen       int
	MinCountryLen    int // shorter spellings (codes like "us" or "de") are ignored in page text
}

// DefaultIdentifierLabels are the labels a delivery/reference number follows.
var DefaultIdentifierLabels = []string{
	`liefer(?:schein)?(?:nummer|[- ]?nr\.?)`,
	`delivery\s*note\s*(?:number|no\.?)`,
	`delivery\s*number`,
	`note\s*number`,
	`number`,
}

// DefaultPatterns returns the pattern library for German and English delivery notes.
func DefaultPatterns() *Patterns {
	return &Patterns{
		Dates:       DefaultDatePatterns(),
		DateLayouts: DefaultDateLayouts(),
		Identifiers: LabelPatterns(DefaultIdentifierLabels),
		Zips: []*regexp.Regexp{
			regexp.MustCompile(`\b\d{4,5}\b`),                                // DE, AT, CH, FR, US
			regexp.MustCompile(`(?i)\b[a-z]\d[a-z]\s?\d[a-z]\d\b`),           // CA
			regexp.MustCompile(`\b\d{5}[.-]\d{4}\b`),                         // US ZIP+4
			regexp.MustCompile(`(?i)\b[a-z]{1,2}\d{1,2}[a-z]?\s?\d[a-z]{2}\b`), // UK
		},
		Streets: []*regexp.Regexp{
			// hauptstr. 12, am alten markt 3a, rue de la paix
			regexp.MustCompile(`\p{L}+(?:[.\-]\p{L}+|[ \t]+\p{L}+){0,3}\.?(?:[ \t]*\d{1,4}[a-z]?)?`),
			// 221b baker street, 5th avenue
			regexp.MustCompile(`\d{1,4}(?:st|nd|rd|th|[a-z])?[ \t]+\p{L}+(?:[ \t]+\p{L}+){0,2}`),
		},
		City:             regexp.MustCompile(`\p{L}{3,}(?:[ \t\-]\p{L}{2,}){0,2}`),
		MinIdentifierLen: 1,
		MinStreetLen:     3,
		MinCityLen:       2,
		MinCountryLen:    4,
	}
}

// LabelPatterns compiles label-anchored identifier patterns; the value runs up to the next whitespace.
func LabelPatterns(labels []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(labels))
	for _, l := range labels {
		out = append(out, regexp.MustCompile(`(?:^|[^\p{L}\p{N}])`+l+`[\s:#]*([^\s]+)`))
	}
	return out
}

// Extractor applies a Patterns library to page text.
type Extractor struct {
	p *Patterns
}

// New returns an Extractor over p; a nil p uses DefaultPatterns.
func New(p *Patterns) *Extractor {
	if p == nil {
		p = DefaultPatterns()
	}
	return &Extractor{p: p}
}

// Extract returns the typed candidates found in text.
func (e *Extractor) Extract(text string) Features {
	f := NewFeatures()
	text = textnorm.Fold(text)
	if strings.TrimSpace(text) == "" {
		return f
	}
	e.dates(text, f.Dates)
	e.identifiers(text, f.Identifiers)
	e.zips(text, f.Zips)

	for _, line := range strings.Split(text, "\n") {
		e.streets(line, f.Streets)
		e.cities(line, f.Cities)
	}
	e.countries(text, f.Countries)
	return f
}

// CanonicalDate parses raw with the extractor's layouts and returns YYYY-MM-DD.
func (e *Extractor) CanonicalDate(raw string) (string, bool) {
	return canonicalDate(raw, e.p.DateLayouts)
}

func (e *Extractor) dates(text string, out Set) {
	for _, re := range e.p.Dates {
		for _, m := range re.FindAllString(text, -1) {
			if iso, ok := canonicalDate(m, e.p.DateLayouts); ok {
				out.Add(iso)
			}
		}
	}
}

func (e *Extractor) identifiers(text string, out Set) {
	for _, re := range e.p.Identifiers {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := CleanIdentifier(m[1])
			if utf8.RuneCountInString(v) > e.p.MinIdentifierLen {
				out.Add(v)
			}
		}
	}
}

// CleanIdentifier drops runes other than letters, digits, hyphen, dot and underscore,
// then trims separators from both ends.
func CleanIdentifier(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '.' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-._")
}

func (e *Extractor) zips(text string, out Set) {
	for _, re := range e.p.Zips {
		for _, m := range re.FindAllString(text, -1) {
			out.Add(strings.TrimSpace(m))
		}
	}
}

func (e *Extractor) streets(line string, out Set) {
	for _, re := range e.p.Streets {
		for _, m := range re.FindAllString(line, -1) {
			m = strings.TrimSpace(m)
			if utf8.RuneCountInString(m) <= e.p.MinStreetLen || isNumeric(m) {
				continue
			}
			out.Add(constants.CanonicalStreet(m))
		}
	}
}

func (e *Extractor) cities(line string, out Set) {
	for _, m := range e.p.City.FindAllString(line, -1) {
		m = strings.TrimSpace(m)
		if utf8.RuneCountInString(m) <= e.p.MinCityLen || isNumeric(m) {
			continue
		}
		out.Add(m)
	}
}

// countries resolves 1..n word windows through the gazetteer, longest window first.
// Windows shorter than MinCountryLen runes never resolve.
func (e *Extractor) countries(text string, out Set) {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
	maxN := constants.MaxCountryWords()
	for i := 0; i < len(words); i++ {
		for n := maxN; n >= 1; n-- {
			if i+n > len(words) {
				continue
			}
			window := strings.Join(words[i:i+n], " ")
			if utf8.RuneCountInString(window) < e.p.MinCountryLen {
				continue
			}
			if code, ok := constants.CanonicalCountry(window); ok {
				out.Add(code)
				break
			}
		}
	}
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
