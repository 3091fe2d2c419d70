package constants

import (
	"regexp"
	"strings"
)

// StreetSuffix rewrites a whole token matching Pattern into Canonical.
// Canonical may reference capture groups ("${1}straße").
type StreetSuffix struct {
	Pattern   *regexp.Regexp
	Canonical string
}

// StreetSuffixes is applied per token in this order and the first hit wins.
// Glued German forms come first so "hauptstr." keeps its stem; German "pl" shadows English "pl".
var StreetSuffixes = []StreetSuffix{
	{regexp.MustCompile(`^(\p{L}{2,})(?:str\.?|strasse)$`), "${1}straße"},
	{regexp.MustCompile(`^(\p{L}{2,})pl\.$`), "${1}platz"},
	{regexp.MustCompile(`^str(?:\.|aße|asse)?$`), "straße"},
	{regexp.MustCompile(`^pl(?:\.|atz)?$`), "platz"},
	{regexp.MustCompile(`^allee$`), "allee"},
	{regexp.MustCompile(`^weg$`), "weg"},
	{regexp.MustCompile(`^g(?:\.|asse)?$`), "gasse"},
	{regexp.MustCompile(`^ch(?:\.|aussee)?$`), "chaussee"},
	{regexp.MustCompile(`^br(?:\.|ücke)?$`), "brücke"},
	{regexp.MustCompile(`^bruecke$`), "brücke"},
	{regexp.MustCompile(`^prom(?:\.|enade)?$`), "promenade"},
	{regexp.MustCompile(`^st(?:\.|reet)?$`), "street"},
	{regexp.MustCompile(`^ave(?:\.|nue)?$`), "avenue"},
	{regexp.MustCompile(`^rd\.?$`), "road"},
	{regexp.MustCompile(`^blvd\.?$`), "boulevard"},
	{regexp.MustCompile(`^ln\.?$`), "lane"},
	{regexp.MustCompile(`^dr\.?$`), "drive"},
	{regexp.MustCompile(`^ct\.?$`), "court"},
}

// CanonicalStreet rewrites suffix abbreviations token by token and collapses whitespace.
func CanonicalStreet(s string) string {
	tokens := strings.Fields(s)
	for i, tok := range tokens {
		core := strings.TrimRight(tok, ",;:")
		for _, rule := range StreetSuffixes {
			if rule.Pattern.MatchString(core) {
				tokens[i] = rule.Pattern.ReplaceAllString(core, rule.Canonical)
				break
			}
		}
	}
	return strings.Join(tokens, " ")
}
