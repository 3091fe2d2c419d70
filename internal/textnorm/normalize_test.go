package textnorm

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, ""},
		{"plain string", "Hauptstraße 12", "hauptstraße 12"},
		{"punctuation stripped", "ACME GmbH & Co. KG!", "acme gmbh co kg"},
		{"hyphen kept", "LS-2023/001", "ls-2023001"},
		{"json number", json.Number("4711234"), "4711234"},
		{"integral float", float64(4711234), "4711234"},
		{"fractional float", 12.5, "12.5"},
		{"int", 2023, "2023"},
		{"time", time.Date(2023, 6, 19, 10, 0, 0, 0, time.UTC), "2023-06-19"},
		{"bool", true, "true"},
		{"decomposed umlaut", "Müller", "müller"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestForFuzzy(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LS-2023.001", "ls2023001"},
		{"a b_c/d\\e", "abcde"},
		{"Müller", "muller"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ForFuzzy(tt.input); got != tt.want {
				t.Errorf("ForFuzzy(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFoldKeepsSharpS(t *testing.T) {
	if got := Fold("STRAßE"); got != "straße" {
		t.Errorf("Fold = %q, want straße", got)
	}
}
