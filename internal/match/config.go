// Package match scores catalog records against one page and picks the best one.
//
// A single Matcher is parameterized by a field table: each field has a role that selects
// its comparison strategy, a weight, and a fuzzy threshold. Scores are additive over fields
// and are not normalized by the weight sum.
package match

import (
	"fmt"

	"github.com/joseph-ayodele/docmatch/internal/common"
)

// Role selects how a field is compared against a page.
type Role string

const (
	RoleIdentifier Role = "identifier"
	RoleDate       Role = "date"
	RoleStreet     Role = "street"
	RoleCity       Role = "city"
	RoleZip        Role = "zip"
	RoleCountry    Role = "country"
	RoleText       Role = "text"
)

var roles = []string{
	string(RoleIdentifier), string(RoleDate), string(RoleStreet), string(RoleCity),
	string(RoleZip), string(RoleCountry), string(RoleText),
}

// FieldSpec is one row of the field weight table.
type FieldSpec struct {
	Name      string
	Role      Role
	Weight    float64
	Threshold float64
}

// Rule awards bonus points when every named field contributed to a record's score.
// Rules are evaluated in order and only the first satisfied rule applies.
type Rule struct {
	Name              string
	Fields            []string
	RequirePageMarker bool // page must carry a "page x of y" marker
	Points            float64
}

// Config tunes a Matcher.
type Config struct {
	Fields   []FieldSpec
	MinScore float64 // best scores below this leave the page unresolved

	IdentifierFallback float64 // multiplier when the identifier is only found as raw text
	WordDamping        float64 // multiplier for fuzzy single-word hits of text fields
	PartialDamping     float64 // multiplier for partial token credit of text fields
	MinWordLen         int     // page words shorter than this are not fuzzy candidates

	Rules     []Rule
	RuleScale float64 // 0 disables rules
}

// DefaultRules is the delivery-note priority table: a record whose name, identifier and
// page marker all agree outranks one that matches on the date alone.
func DefaultRules(name, identifier, street, date string) []Rule {
	return []Rule{
		{Name: "name+identifier+marker", Fields: []string{name, identifier}, RequirePageMarker: true, Points: 20},
		{Name: "name+identifier", Fields: []string{name, identifier}, Points: 18},
		{Name: "street+identifier", Fields: []string{street, identifier}, Points: 18},
		{Name: "identifier+date", Fields: []string{identifier, date}, Points: 18},
		{Name: "date", Fields: []string{date}, Points: 12},
		{Name: "identifier", Fields: []string{identifier}, Points: 10},
		{Name: "name", Fields: []string{name}, Points: 2},
	}
}

// FromConfig converts the file/env configuration into a matcher Config.
func FromConfig(mc common.MatchingConfig) Config {
	cfg := Config{
		MinScore:           mc.MinScore,
		IdentifierFallback: mc.IdentifierFallback,
		WordDamping:        mc.WordDamping,
		PartialDamping:     mc.PartialDamping,
		MinWordLen:         mc.MinWordLen,
		RuleScale:          mc.RuleScale,
	}
	for _, f := range mc.Fields {
		cfg.Fields = append(cfg.Fields, FieldSpec{Name: f.Name, Role: Role(f.Role), Weight: f.Weight, Threshold: f.Threshold})
	}
	for _, r := range mc.Rules {
		cfg.Rules = append(cfg.Rules, Rule{Name: r.Name, Fields: r.Fields, RequirePageMarker: r.RequirePageMarker, Points: r.Points})
	}
	if len(cfg.Rules) == 0 && cfg.RuleScale > 0 {
		cfg.Rules = DefaultRules(common.FieldVendorName1, common.FieldDeliveryNote, common.FieldStreet, common.FieldDeliveryDate)
	}
	return cfg
}

// DefaultConfig is the SAP delivery note configuration.
func DefaultConfig() Config {
	return FromConfig(common.DefaultConfig().Matching)
}

// Validate checks weights, thresholds and multipliers.
func (c Config) Validate() error {
	v := common.NewValidator()
	if len(c.Fields) == 0 {
		v.Field("fields", nil, common.Required)
	}
	names := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		prefix := fmt.Sprintf("fields[%d]", i)
		v.Field(prefix+".name", f.Name, common.Required)
		v.Field(prefix+".role", string(f.Role), common.OneOf(roles...))
		v.Field(prefix+".weight", f.Weight, common.Positive)
		v.Field(prefix+".threshold", f.Threshold, common.UnitInterval)
		names[f.Name] = struct{}{}
	}
	v.Field("min_score", c.MinScore, common.NonNegative)
	v.Field("identifier_fallback", c.IdentifierFallback, common.UnitInterval)
	v.Field("word_damping", c.WordDamping, common.UnitInterval)
	v.Field("partial_damping", c.PartialDamping, common.UnitInterval)
	v.Field("min_word_len", c.MinWordLen, common.Positive)
	v.Field("rule_scale", c.RuleScale, common.NonNegative)
	for i, r := range c.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)
		v.Field(prefix+".name", r.Name, common.Required)
		v.Field(prefix+".points", r.Points, common.NonNegative)
		if len(r.Fields) == 0 {
			v.Field(prefix+".fields", nil, common.Required)
		}
		for _, name := range r.Fields {
			if _, ok := names[name]; !ok {
				v.Field(prefix+".fields", name, func(field string, value interface{}) *common.ValidationError {
					return &common.ValidationError{Field: field, Value: value, Message: "is not in the field table"}
				})
			}
		}
	}
	if v.HasErrors() {
		return common.NewAppError("CONFIG_ERROR", "matcher: "+v.ErrorMessage(), common.ErrInvalidInput)
	}
	return nil
}
