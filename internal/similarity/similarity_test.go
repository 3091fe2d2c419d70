package similarity

import (
	"math"
	"testing"
)

func TestSimilarityRules(t *testing.T) {
	tests := []struct {
		name      string
		a, b      string
		threshold float64
		wantMatch bool
		wantRatio float64 // negative means "only check the range"
		minRatio  float64
	}{
		{name: "empty left", a: "", b: "abc", threshold: 0, wantMatch: false, wantRatio: 0},
		{name: "empty both", a: "", b: "", threshold: 0, wantMatch: false, wantRatio: 0},
		{name: "case-insensitive equality", a: "Berlin", b: "BERLIN", threshold: 0.9, wantMatch: true, wantRatio: 1},
		{name: "substring long enough", a: "hauptstraße", b: "hauptstraße 1", threshold: 0.85, wantMatch: true, wantRatio: 0.9},
		{name: "substring too short", a: "ab", b: "abcdefgh", threshold: 0.85, wantMatch: false, wantRatio: -1},
		{name: "separator-stripped equality", a: "ls-2023.001", b: "ls 2023 001", threshold: 0.85, wantMatch: true, wantRatio: 1},
		{name: "token overlap", a: "firma müller hauptstraße", b: "hauptstraße", threshold: 0.6, wantMatch: true, wantRatio: 1},
		{name: "one typo", a: "4711234", b: "4711284", threshold: 0.8, wantMatch: true, wantRatio: -1, minRatio: 0.8},
		{name: "unrelated", a: "berlin", b: "zürich", threshold: 0.8, wantMatch: false, wantRatio: -1},
		{name: "zero threshold accepts disjoint inputs", a: "abc", b: "xyz", threshold: 0, wantMatch: true, wantRatio: 0},
		{name: "blank right at zero threshold", a: "abc", b: "   ", threshold: 0, wantMatch: false, wantRatio: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotMatch, gotRatio := Similarity(tt.a, tt.b, tt.threshold)
			if gotMatch != tt.wantMatch {
				t.Errorf("match = %v, want %v (ratio %.3f)", gotMatch, tt.wantMatch, gotRatio)
			}
			if tt.wantRatio >= 0 && math.Abs(gotRatio-tt.wantRatio) > 1e-9 {
				t.Errorf("ratio = %.4f, want %.4f", gotRatio, tt.wantRatio)
			}
			if gotRatio < tt.minRatio {
				t.Errorf("ratio = %.4f, want >= %.4f", gotRatio, tt.minRatio)
			}
			if gotRatio < 0 || gotRatio > 1 {
				t.Errorf("ratio %.4f out of [0,1]", gotRatio)
			}
		})
	}
}

func TestSimilarityIdentity(t *testing.T) {
	inputs := []string{"a", "4711234", "Hauptstraße 12", "ls-2023.001", "x y z"}
	thresholds := []float64{0, 0.5, 0.85, 1.0}
	for _, s := range inputs {
		for _, th := range thresholds {
			ok, r := Similarity(s, s, th)
			if !ok || r != 1.0 {
				t.Errorf("Similarity(%q, %q, %.2f) = (%v, %.3f), want (true, 1.0)", s, s, th, ok, r)
			}
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	inputs := []string{
		"", "a", "ab", "berlin", "berlln", "münchen", "munchen", "hauptstr 12",
		"hauptstraße 12", "4711234", "4711243", "ls-2023.001", "2023-06-19", "2023-06-18",
		"acme gmbh logistics", "logistics acme", "new york", "york",
	}
	for _, a := range inputs {
		for _, b := range inputs {
			m1, r1 := Similarity(a, b, 0.75)
			m2, r2 := Similarity(b, a, 0.75)
			if m1 != m2 || r1 != r2 {
				t.Errorf("asymmetric: (%q,%q) -> (%v,%.4f) vs (%v,%.4f)", a, b, m1, r1, m2, r2)
			}
		}
	}
}

func TestTokenOverlapIgnoresShortTokens(t *testing.T) {
	if got := TokenOverlap("de gb", "de gb"); got != 0 {
		t.Errorf("TokenOverlap of short tokens = %.2f, want 0", got)
	}
	if got := TokenOverlap("acme gmbh", "acme logistics gmbh"); got != 1 {
		t.Errorf("TokenOverlap = %.2f, want 1", got)
	}
}

func TestBest(t *testing.T) {
	cands := []string{"4711999", "4711234", "4711234"}
	m, r, ok := Best("4711234", cands, 0.85)
	if !ok || m != "4711234" || r != 1 {
		t.Fatalf("Best = (%q, %.2f, %v)", m, r, ok)
	}
	if _, _, ok := Best("4711234", []string{"zzz"}, 0.85); ok {
		t.Errorf("Best matched an unrelated candidate")
	}
}
