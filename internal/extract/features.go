package extract

import "sort"

// Set is an unordered collection of canonical strings.
type Set map[string]struct{}

// Add inserts v unless it is empty.
func (s Set) Add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

// Has reports whether v is in the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted returns the members in lexical order so callers iterate deterministically.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Features are the typed candidates pulled out of one page.
type Features struct {
	Dates       Set // canonical YYYY-MM-DD
	Identifiers Set
	Streets     Set
	Cities      Set
	Zips        Set
	Countries   Set // canonical country codes
}

// NewFeatures returns Features with every set allocated and empty.
func NewFeatures() Features {
	return Features{
		Dates:       Set{},
		Identifiers: Set{},
		Streets:     Set{},
		Cities:      Set{},
		Zips:        Set{},
		Countries:   Set{},
	}
}

// Empty reports whether nothing was extracted.
func (f Features) Empty() bool {
	return len(f.Dates)+len(f.Identifiers)+len(f.Streets)+len(f.Cities)+len(f.Zips)+len(f.Countries) == 0
}
