package generator

import (
	"strings"
	"testing"
)

// TestGenerateDefaults tests the default configuration
func TestGenerateDefaults(t *testing.T) {
	password, err := Generate(DefaultOptions())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(password) != DefaultLength {
		t.Errorf("Generate() length = %d, want %d", len(password), DefaultLength)
	}
}

// TestGenerateUniqueness tests that consecutive passwords differ
func TestGenerateUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		password, err := Generate(DefaultOptions())
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if seen[password] {
			t.Fatalf("Generate() produced duplicate password %q", password)
		}
		seen[password] = true
	}
}

// TestGenerateCharsetRestrictions tests that excluded classes never appear
func TestGenerateCharsetRestrictions(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		excluded string
	}{
		{"no symbols", Options{Length: 64, NoSymbols: true}, charsetSymbols},
		{"no numbers", Options{Length: 64, NoNumbers: true}, charsetDigits},
		{"no uppercase", Options{Length: 64, NoUppercase: true}, charsetUppercase},
		{"no lowercase", Options{Length: 64, NoLowercase: true}, charsetLowercase},
		{"exclude ambiguous", Options{Length: 64, Exclude: "0O1lI"}, "0O1lI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			password, err := Generate(tt.opts)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if strings.ContainsAny(password, tt.excluded) {
				t.Errorf("Generate() = %q contains excluded characters %q", password, tt.excluded)
			}
		})
	}
}

// TestGenerateValidation tests option validation
func TestGenerateValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"too short", Options{Length: 4}},
		{"too long", Options{Length: 1000}},
		{"empty charset", Options{Length: 24, NoSymbols: true, NoNumbers: true, NoUppercase: true, NoLowercase: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Generate(tt.opts); err == nil {
				t.Error("Generate() succeeded, want error")
			}
		})
	}
}
