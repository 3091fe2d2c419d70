package constants

import (
	"strings"
)

// Country is one gazetteer entry: a canonical code and every spelling that resolves to it.
type Country struct {
	Code     string
	Variants []string
}

// Countries is ordered; when two entries share a variant the earlier entry wins.
var Countries = []Country{
	{Code: "de", Variants: []string{"de", "deu", "germany", "deutschland", "allemagne", "alemania", "germania", "niemcy", "german", "brd"}},
	{Code: "at", Variants: []string{"at", "aut", "austria", "österreich", "oesterreich", "autriche", "oostenrijk"}},
	{Code: "ch", Variants: []string{"ch", "che", "switzerland", "schweiz", "suisse", "svizzera", "suiza", "szwajcaria"}},
	{Code: "fr", Variants: []string{"fr", "fra", "france", "frankreich", "francia", "frankrijk", "francja"}},
	{Code: "it", Variants: []string{"it", "ita", "italy", "italien", "italia", "italie", "włochy"}},
	{Code: "es", Variants: []string{"es", "esp", "spain", "spanien", "españa", "espana", "espagne", "spanje", "hiszpania"}},
	{Code: "gb", Variants: []string{"gb", "gbr", "uk", "united kingdom", "great britain", "britain", "england", "scotland", "wales", "northern ireland", "großbritannien", "grossbritannien"}},
	{Code: "us", Variants: []string{"us", "usa", "united states", "united states of america", "america", "estados unidos", "vereinigte staaten"}},
	{Code: "ca", Variants: []string{"ca", "can", "canada", "kanada"}},
	{Code: "pl", Variants: []string{"pl", "pol", "poland", "polen", "pologne", "polonia", "polska"}},
	{Code: "nl", Variants: []string{"nl", "nld", "netherlands", "niederlande", "nederland", "holland", "pays-bas"}},
	{Code: "be", Variants: []string{"be", "bel", "belgium", "belgien", "belgique", "belgië"}},
}

var countryIndex = buildCountryIndex()

// maxCountryWords is the longest variant measured in words.
var maxCountryWords = 1

func buildCountryIndex() map[string]string {
	idx := make(map[string]string)
	for _, c := range Countries {
		for _, v := range c.Variants {
			key := strings.ToLower(v)
			if _, taken := idx[key]; taken {
				continue
			}
			idx[key] = c.Code
			if n := len(strings.Fields(key)); n > maxCountryWords {
				maxCountryWords = n
			}
		}
	}
	return idx
}

// CanonicalCountry resolves a spelling (one or more words) to its canonical code.
func CanonicalCountry(input string) (string, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(input)), " ")
	if key == "" {
		return "", false
	}
	code, ok := countryIndex[key]
	return code, ok
}

// MaxCountryWords returns the word count of the longest variant, used to bound n-gram scans.
func MaxCountryWords() int {
	return maxCountryWords
}
