package cluster

import (
	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/visual"
)

// Signals are the per-page inputs of the composite pair score.
type Signals struct {
	Identity string   // resolved identity key; empty or NONE FOUND when unresolved
	Codes    []string // identifiers printed on the page, sorted
	Visual   *visual.Fingerprint
}

// Weights weight each agreeing signal.
type Weights struct {
	Identity  float64
	Codes     float64
	Header    float64
	Footer    float64
	Histogram float64
	Structure float64
}

// Limits gate the visual signals.
type Limits struct {
	HashDistance int     // max Hamming distance of header/footer hashes
	Histogram    float64 // min histogram correlation
	SSIM         float64 // min structural similarity
}

func DefaultWeights() Weights {
	return Weights{Identity: 10, Codes: 5, Header: 2, Footer: 2, Histogram: 1, Structure: 1}
}

func DefaultLimits() Limits {
	return Limits{HashDistance: 2, Histogram: 0.9, SSIM: 0.8}
}

// Resolved reports whether the identity can vote for a merge.
func (s Signals) Resolved() bool {
	return s.Identity != "" && s.Identity != constants.NoneFound
}

// Composite returns the weighted sum of the signals two pages agree on.
// Two pages resolved to different identities always score 0, whatever else they share.
func Composite(sigs []Signals, w Weights, l Limits) PairFunc {
	return func(i, j int) float64 {
		a, b := sigs[i], sigs[j]
		if a.Resolved() && b.Resolved() && a.Identity != b.Identity {
			return 0
		}
		var score float64
		if a.Resolved() && a.Identity == b.Identity {
			score += w.Identity
		}
		if shareCode(a.Codes, b.Codes) {
			score += w.Codes
		}
		if a.Visual != nil && b.Visual != nil {
			va, vb := a.Visual, b.Visual
			if visual.Hamming(va.Header, vb.Header) <= l.HashDistance {
				score += w.Header
			}
			if visual.Hamming(va.Footer, vb.Footer) <= l.HashDistance {
				score += w.Footer
			}
			if visual.Correlation(va.Histogram, vb.Histogram) >= l.Histogram {
				score += w.Histogram
			}
			if visual.ThumbSSIM(va.Thumb, vb.Thumb) >= l.SSIM {
				score += w.Structure
			}
		}
		return score
	}
}

// shareCode reports whether two sorted code lists intersect.
func shareCode(a, b []string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

// Segments returns the positions where a new document starts in page order: the first
// page and every page whose identity differs from the page before it. NONE FOUND and
// the empty identity are the same identity, so a run of unresolved pages is one segment.
func Segments(identities []string) []int {
	var starts []int
	prev := ""
	for i, id := range identities {
		if id == "" {
			id = constants.NoneFound
		}
		if i == 0 || id != prev {
			starts = append(starts, i)
		}
		prev = id
	}
	return starts
}
