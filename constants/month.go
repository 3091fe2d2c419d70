package constants

// MonthName maps a localized month spelling to the English name the date layouts expect.
type MonthName struct {
	Local   string
	English string
}

// GermanMonths is ordered longest first so "februar" is replaced before "feb".
var GermanMonths = []MonthName{
	{"september", "september"},
	{"dezember", "december"},
	{"november", "november"},
	{"oktober", "october"},
	{"februar", "february"},
	{"januar", "january"},
	{"august", "august"},
	{"april", "april"},
	{"märz", "march"},
	{"maerz", "march"},
	{"juni", "june"},
	{"juli", "july"},
	{"jänner", "january"},
	{"mai", "may"},
	{"okt", "oct"},
	{"dez", "dec"},
	{"mär", "mar"},
}
