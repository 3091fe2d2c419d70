package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/textnorm"
)

// ISODate is the canonical date layout.
const ISODate = "2006-01-02"

// DefaultDatePatterns finds date-shaped substrings. Order matters only for readability;
// every pattern runs and results are unioned.
func DefaultDatePatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// 06/19/2023 4:47:50 am, 19.06.2023 14:30
		regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{4}\s+\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]m)?`),
		// 2023/06/19, 2023-06-19, 2023.06.19
		regexp.MustCompile(`\b\d{4}[./-]\d{1,2}[./-]\d{1,2}\b`),
		// 19.06.2023, 06/19/2023, 19-06-2023
		regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{4}\b`),
		// 20230619
		regexp.MustCompile(`\b(?:19|20)\d{2}(?:0[1-9]|1[0-2])(?:0[1-9]|[12]\d|3[01])\b`),
		// 19 june 2023, 19. juni 2023
		regexp.MustCompile(`\b\d{1,2}\.?\s+[a-zäöü]{3,10}\.?,?\s+\d{4}\b`),
		// june 19, 2023, jun 19th 2023
		regexp.MustCompile(`\b[a-zäöü]{3,10}\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`),
	}
}

// DefaultDateLayouts is tried in order and the first successful parse wins.
// Month-first precedes day-first, so 06/07/2023 is June 7.
func DefaultDateLayouts() []string {
	return []string{
		"1/2/2006",
		"2006-1-2",
		"2006.1.2",
		"2006/1/2",
		"2.1.2006",
		"2-1-2006",
		"2/1/2006",
		"20060102",
		"2 January 2006",
		"2 Jan 2006",
		"January 2 2006",
		"Jan 2 2006",
	}
}

var (
	reOrdinal = regexp.MustCompile(`(\d)(?:st|nd|rd|th)\b`)
	reLetters = regexp.MustCompile(`\p{L}`)
)

const (
	minYear = 1900
	maxYear = 2100
)

// canonicalDate parses raw against layouts and returns YYYY-MM-DD.
func canonicalDate(raw string, layouts []string) (string, bool) {
	s := strings.TrimSpace(textnorm.Fold(raw))
	if s == "" {
		return "", false
	}
	// ISO timestamps from catalogs: keep the date part only.
	if i := strings.IndexByte(s, 't'); i == 10 && isDigit(s[0]) {
		s = s[:i]
	}
	if strings.Contains(s, ":") {
		s = strings.Fields(s)[0]
	}
	if reLetters.MatchString(s) {
		s = cleanLongForm(s)
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < minYear || t.Year() > maxYear {
			continue
		}
		return t.Format(ISODate), true
	}
	return "", false
}

// cleanLongForm strips ordinal suffixes and punctuation and translates German month names.
func cleanLongForm(s string) string {
	s = reOrdinal.ReplaceAllString(s, "$1")
	s = strings.NewReplacer(",", " ", ".", " ").Replace(s)
	fields := strings.Fields(s)
	for i, f := range fields {
		for _, m := range constants.GermanMonths {
			if f == m.Local {
				fields[i] = m.English
				break
			}
		}
	}
	return strings.Join(fields, " ")
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
