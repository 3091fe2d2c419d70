package match

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/joseph-ayodele/docmatch/internal/extract"
	"github.com/joseph-ayodele/docmatch/internal/similarity"
	"github.com/joseph-ayodele/docmatch/internal/textnorm"
)

var pageMarker = regexp.MustCompile(`(?:page|seite)\s*\d+\s*(?:of|von)\s*\d+`)

// Page is one page prepared for matching. Features are extracted once and word-level
// fuzzy lookups are memoized, so scoring the same page against many records stays cheap.
type Page struct {
	Index    int
	Text     string // folded page text
	Flat     string // Normalize form, used for substring checks
	Features extract.Features
	Marker   bool // carries a "page x of y" marker

	words []string

	mu    sync.Mutex
	fuzzy map[wordKey]wordHit
}

type wordKey struct {
	value     string
	threshold float64
	minLen    int
}

type wordHit struct {
	word  string
	ratio float64
}

// NewPage extracts features from text with ex.
func NewPage(index int, text string, ex *extract.Extractor) *Page {
	folded := textnorm.Fold(text)
	flat := textnorm.Normalize(text)
	return &Page{
		Index:    index,
		Text:     folded,
		Flat:     flat,
		Features: ex.Extract(text),
		Marker:   pageMarker.MatchString(folded),
		words:    uniqueWords(flat),
		fuzzy:    make(map[wordKey]wordHit),
	}
}

// Empty reports whether the page carries no usable text.
func (p *Page) Empty() bool {
	return p.Flat == ""
}

func uniqueWords(s string) []string {
	fields := strings.Fields(s)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// bestWord returns the page word most similar to value, memoized per page.
func (p *Page) bestWord(value string, threshold float64, minLen int) wordHit {
	key := wordKey{value: value, threshold: threshold, minLen: minLen}
	p.mu.Lock()
	hit, ok := p.fuzzy[key]
	p.mu.Unlock()
	if ok {
		return hit
	}

	candidates := make([]string, 0, len(p.words))
	for _, w := range p.words {
		if utf8.RuneCountInString(w) >= minLen {
			candidates = append(candidates, w)
		}
	}
	if w, r, ok := similarity.Best(value, candidates, threshold); ok {
		hit = wordHit{word: w, ratio: r}
	}

	p.mu.Lock()
	p.fuzzy[key] = hit
	p.mu.Unlock()
	return hit
}
