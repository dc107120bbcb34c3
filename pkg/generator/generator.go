// Package generator produces cryptographically secure random passwords for
// new credentials.
package generator

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// Character set constants
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	MinLength     = 8
	MaxLength     = 256
	DefaultLength = 24
)

// Options controls the shape of generated passwords. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	Length      int
	NoSymbols   bool
	NoNumbers   bool
	NoUppercase bool
	NoLowercase bool
	Exclude     string // individual characters to drop from the set
}

// DefaultOptions returns the standard 24-character all-classes configuration.
func DefaultOptions() Options {
	return Options{Length: DefaultLength}
}

// Generate produces one random password according to opts.
func Generate(opts Options) (string, error) {
	if opts.Length < MinLength {
		return "", fmt.Errorf("generator: length must be at least %d characters", MinLength)
	}
	if opts.Length > MaxLength {
		return "", fmt.Errorf("generator: length must be at most %d characters", MaxLength)
	}

	charset, err := buildCharset(opts)
	if err != nil {
		return "", err
	}

	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, opts.Length)
	for i := range password {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("generator: failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}
	return string(password), nil
}

// buildCharset assembles the candidate character set from opts.
func buildCharset(opts Options) (string, error) {
	var charset strings.Builder

	if !opts.NoLowercase {
		charset.WriteString(charsetLowercase)
	}
	if !opts.NoUppercase {
		charset.WriteString(charsetUppercase)
	}
	if !opts.NoNumbers {
		charset.WriteString(charsetDigits)
	}
	if !opts.NoSymbols {
		charset.WriteString(charsetSymbols)
	}

	result := charset.String()
	if opts.Exclude != "" {
		result = removeChars(result, opts.Exclude)
	}
	if result == "" {
		return "", fmt.Errorf("generator: character set is empty: adjust options to include at least one character type")
	}
	return result, nil
}

// removeChars removes specified characters from a string
func removeChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}
