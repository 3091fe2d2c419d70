package match

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/docmatch/internal/catalog"
	"github.com/joseph-ayodele/docmatch/internal/extract"
	"github.com/joseph-ayodele/docmatch/internal/similarity"
)

// Kind says which strategy produced a field's points.
type Kind string

const (
	KindExact    Kind = "exact"
	KindFuzzy    Kind = "fuzzy"
	KindText     Kind = "text"    // value found verbatim in the page text
	KindWord     Kind = "word"    // fuzzy hit on a single page word
	KindPartial  Kind = "partial" // some of the value's tokens found
	KindNone     Kind = "none"
	KindNoValue  Kind = "empty" // the record has no value for the field
)

// FieldDetail explains one field's contribution to a record's score.
type FieldDetail struct {
	Field     string
	Kind      Kind
	Candidate string
	Ratio     float64
	Points    float64
}

func (d FieldDetail) String() string {
	switch d.Kind {
	case KindExact:
		return fmt.Sprintf("Exact match: %s", d.Candidate)
	case KindFuzzy, KindWord:
		return fmt.Sprintf("Fuzzy match: '%s' (ratio: %.3f)", d.Candidate, d.Ratio)
	case KindText:
		return fmt.Sprintf("Text found: %s", d.Candidate)
	case KindPartial:
		return fmt.Sprintf("Partial match (%s tokens)", d.Candidate)
	case KindNoValue:
		return "No value"
	default:
		return "Not matched"
	}
}

// Result is the outcome of matching one page against the catalog.
// Record is nil when no record reached the minimum score.
type Result struct {
	Score   float64
	Record  *catalog.Record
	Details []FieldDetail
	Rule    string
}

// Resolved reports whether a record was selected.
func (r Result) Resolved() bool {
	return r.Record != nil
}

// Matcher scores records against pages. It is safe for concurrent use.
type Matcher struct {
	cfg Config
	log *slog.Logger
}

// New validates cfg and returns a Matcher.
func New(cfg Config, logger *slog.Logger) (*Matcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{cfg: cfg, log: logger}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Match scores every record and returns the strictly highest scorer. Ties keep the
// record that comes first in catalog order.
func (m *Matcher) Match(p *Page, records []*catalog.Record) Result {
	var best Result
	for _, rec := range records {
		score, details, rule := m.Score(p, rec)
		if score > best.Score {
			best = Result{Score: score, Record: rec, Details: details, Rule: rule}
		}
	}
	if best.Record != nil && best.Score < m.cfg.MinScore {
		m.log.Debug("match.below_min_score", "page", p.Index, "score", best.Score,
			"identity_key", best.Record.IdentityKey, "min_score", m.cfg.MinScore)
		best.Record = nil
	}
	return best
}

// Score returns the additive score of rec against p, the per-field breakdown in field
// table order, and the name of the bonus rule that applied, if any.
func (m *Matcher) Score(p *Page, rec *catalog.Record) (float64, []FieldDetail, string) {
	details := make([]FieldDetail, 0, len(m.cfg.Fields))
	var total float64
	for _, f := range m.cfg.Fields {
		d := m.scoreField(p, f, rec.Normalized[f.Name])
		d.Field = f.Name
		total += d.Points
		details = append(details, d)
	}
	rule, bonus := m.applyRules(p, details)
	return total + bonus, details, rule
}

func (m *Matcher) scoreField(p *Page, f FieldSpec, value string) FieldDetail {
	if value == "" {
		return FieldDetail{Kind: KindNoValue}
	}
	switch f.Role {
	case RoleIdentifier:
		return m.identifier(p, f, value)
	case RoleDate:
		return m.date(p, f, value)
	case RoleStreet:
		return setMatch(p.Features.Streets, f, value)
	case RoleCity:
		return setMatch(p.Features.Cities, f, value)
	case RoleZip:
		return setMatch(p.Features.Zips, f, value)
	case RoleCountry:
		return setMatch(p.Features.Countries, f, value)
	default:
		return m.text(p, f, value)
	}
}

func (m *Matcher) identifier(p *Page, f FieldSpec, value string) FieldDetail {
	if c, r, ok := similarity.Best(value, p.Features.Identifiers.Sorted(), f.Threshold); ok {
		kind := KindFuzzy
		if r == 1 {
			kind = KindExact
		}
		return FieldDetail{Kind: kind, Candidate: c, Ratio: r, Points: f.Weight * r}
	}
	if strings.Contains(p.Flat, value) {
		return FieldDetail{Kind: KindText, Candidate: value, Ratio: m.cfg.IdentifierFallback, Points: f.Weight * m.cfg.IdentifierFallback}
	}
	return FieldDetail{Kind: KindNone}
}

func (m *Matcher) date(p *Page, f FieldSpec, value string) FieldDetail {
	if utf8.RuneCountInString(value) > len(extract.ISODate) {
		value = string([]rune(value)[:len(extract.ISODate)])
	}
	if p.Features.Dates.Has(value) {
		return FieldDetail{Kind: KindExact, Candidate: value, Ratio: 1, Points: f.Weight}
	}
	if c, r, ok := similarity.Best(value, p.Features.Dates.Sorted(), f.Threshold); ok {
		return FieldDetail{Kind: KindFuzzy, Candidate: c, Ratio: r, Points: f.Weight * r}
	}
	return FieldDetail{Kind: KindNone}
}

// setMatch compares an address component against the matching extracted set.
func setMatch(set extract.Set, f FieldSpec, value string) FieldDetail {
	if set.Has(value) {
		return FieldDetail{Kind: KindExact, Candidate: value, Ratio: 1, Points: f.Weight}
	}
	if c, r, ok := similarity.Best(value, set.Sorted(), f.Threshold); ok {
		return FieldDetail{Kind: KindFuzzy, Candidate: c, Ratio: r, Points: f.Weight * r}
	}
	return FieldDetail{Kind: KindNone}
}

func (m *Matcher) text(p *Page, f FieldSpec, value string) FieldDetail {
	if strings.Contains(p.Flat, value) {
		return FieldDetail{Kind: KindExact, Candidate: value, Ratio: 1, Points: f.Weight}
	}
	if hit := p.bestWord(value, f.Threshold, m.cfg.MinWordLen); hit.ratio > 0 {
		return FieldDetail{Kind: KindWord, Candidate: hit.word, Ratio: hit.ratio, Points: f.Weight * hit.ratio * m.cfg.WordDamping}
	}

	tokens := strings.Fields(value)
	found := 0
	for _, t := range tokens {
		if utf8.RuneCountInString(t) >= similarity.MinTokenLen && strings.Contains(p.Flat, t) {
			found++
		}
	}
	if found == 0 {
		return FieldDetail{Kind: KindNone}
	}
	frac := float64(found) / float64(len(tokens))
	return FieldDetail{
		Kind:      KindPartial,
		Candidate: fmt.Sprintf("%d/%d", found, len(tokens)),
		Ratio:     frac,
		Points:    f.Weight * frac * m.cfg.PartialDamping,
	}
}

// applyRules returns the first rule whose fields all scored, with its scaled points.
func (m *Matcher) applyRules(p *Page, details []FieldDetail) (string, float64) {
	if m.cfg.RuleScale == 0 || len(m.cfg.Rules) == 0 {
		return "", 0
	}
	scored := make(map[string]bool, len(details))
	for _, d := range details {
		scored[d.Field] = d.Points > 0
	}
	for _, r := range m.cfg.Rules {
		if r.RequirePageMarker && !p.Marker {
			continue
		}
		ok := true
		for _, name := range r.Fields {
			if !scored[name] {
				ok = false
				break
			}
		}
		if ok {
			return r.Name, r.Points * m.cfg.RuleScale
		}
	}
	return "", 0
}
