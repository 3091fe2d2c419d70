package constants

// MatchStatus is the per-page outcome reported by the pipeline.
type MatchStatus string

// Stable values (stored verbatim in the run store and reports).
const (
	StatusMatched    MatchStatus = "MATCHED"    // a record cleared the minimum score
	StatusUnresolved MatchStatus = "UNRESOLVED" // no record cleared the minimum score
	StatusFailed     MatchStatus = "FAILED"     // the page could not be processed
)

// NoneFound is the identity key reported for unresolved pages.
const NoneFound = "NONE FOUND"
