package entity

import (
	"time"

	"github.com/joseph-ayodele/docmatch/constants"
)

// FieldDetail explains how one catalog field contributed to a page's score.
type FieldDetail struct {
	Field     string  `json:"field"`
	Kind      string  `json:"kind"`
	Candidate string  `json:"candidate,omitempty"`
	Ratio     float64 `json:"ratio,omitempty"`
	Points    float64 `json:"points"`
	Note      string  `json:"note"`
}

// PageResult is the resolved identity of one page.
type PageResult struct {
	Page              int                   `json:"page"`
	Status            constants.MatchStatus `json:"status"`
	IdentityKey       string                `json:"identity_key"`
	MatchedIdentifier string                `json:"matched_identifier,omitempty"`
	Key               string                `json:"key,omitempty"`
	Year              string                `json:"year,omitempty"`
	Score             float64               `json:"score,omitempty"`
	Rule              string                `json:"rule,omitempty"`
	Details           []FieldDetail         `json:"details,omitempty"`
	Cluster           int                   `json:"cluster"`
	Error             string                `json:"error,omitempty"`
}

// Matched reports whether the page resolved to a catalog record.
func (p PageResult) Matched() bool {
	return p.Status == constants.StatusMatched
}

// Document is one reconstructed multi-page document.
type Document struct {
	Cluster     int    `json:"cluster"`
	Pages       []int  `json:"pages"`
	IdentityKey string `json:"identity_key"`
}

// DocumentStart marks a page where the resolved identity changes from the previous page.
type DocumentStart struct {
	Page        int    `json:"page"`
	IdentityKey string `json:"identity_key"`
	Key         string `json:"key,omitempty"`
	Year        string `json:"year,omitempty"`
}

// Summary aggregates page outcomes for a batch.
type Summary struct {
	Pages      int     `json:"pages"`
	Matched    int     `json:"matched"`
	Unresolved int     `json:"unresolved"`
	Failed     int     `json:"failed"`
	MatchRate  float64 `json:"match_rate"`
}

// BatchResult is everything the pipeline produces for one batch of pages.
type BatchResult struct {
	RunID     string          `json:"run_id"`
	Source    string          `json:"source,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	ElapsedMS int64           `json:"elapsed_ms"`
	Pages     []PageResult    `json:"pages"`
	Documents []Document      `json:"documents"`
	Starts    []DocumentStart `json:"document_starts"`
	Summary   Summary         `json:"summary"`
}
