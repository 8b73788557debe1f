package qrcode_test

import (
	"testing"

	"qrassure/internal/qrcode"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		candidates []string
		want       bool
	}{
		{"empty set", "1234567890", nil, false},
		{"single hit", "1234567890", []string{"1234567890"}, true},
		{"single miss", "1234567890", []string{"1234567891"}, false},
		{"hit in second", "1234567890", []string{"0000000000", "1234567890"}, true},
		{"no partial match", "12345", []string{"1234567890"}, false},
		{"empty payload against empty candidate", "", []string{""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := qrcode.Matches(tt.payload, tt.candidates); got != tt.want {
				t.Fatalf("Matches(%q, %q) = %v, want %v", tt.payload, tt.candidates, got, tt.want)
			}
			reversed := make([]string, len(tt.candidates))
			for i, c := range tt.candidates {
				reversed[len(tt.candidates)-1-i] = c
			}
			if got := qrcode.Matches(tt.payload, reversed); got != tt.want {
				t.Fatalf("Matches depends on candidate order")
			}
		})
	}
}
