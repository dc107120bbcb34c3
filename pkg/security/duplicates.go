package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/credvault/credvault/pkg/vault"
)

// DuplicateGroup represents credentials sharing the same password.
type DuplicateGroup struct {
	Services []string `json:"services"`
	Count    int      `json:"count"`
}

// Issue is one finding from the weak-password scan.
type Issue struct {
	Service     string           `json:"service"`
	Username    string           `json:"username,omitempty"`
	Strength    PasswordStrength `json:"-"`
	Description string           `json:"description"`
}

// Analyzer runs health checks over decrypted records. The HMAC key used for
// duplicate comparison is generated per analyzer and never persisted, so the
// comparison hashes are worthless outside this process.
type Analyzer struct {
	hmacKey []byte
}

// NewAnalyzer creates an analyzer with a fresh session-local comparison key.
func NewAnalyzer() (*Analyzer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("security: failed to generate comparison key: %w", err)
	}
	return &Analyzer{hmacKey: key}, nil
}

// FindDuplicates groups records that reuse the same password. Passwords are
// compared through HMAC-SHA256 with the session-local key, so plaintext never
// ends up in the grouping map keys. Groups are sorted most-duplicated first.
func (a *Analyzer) FindDuplicates(records []vault.SecretRecord) []DuplicateGroup {
	byHash := make(map[string][]string)
	for _, rec := range records {
		value := strings.TrimSpace(rec.Password)
		if value == "" {
			continue
		}
		h := a.valueHash(value)
		byHash[h] = append(byHash[h], recordLabel(rec))
	}

	var groups []DuplicateGroup
	for _, services := range byHash {
		if len(services) <= 1 {
			continue
		}
		groups = append(groups, DuplicateGroup{Services: services, Count: len(services)})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Services[0] < groups[j].Services[0]
	})
	return groups
}

// FindWeakPasswords returns records whose password scores PasswordWeak.
func (a *Analyzer) FindWeakPasswords(records []vault.SecretRecord) []Issue {
	var issues []Issue
	for _, rec := range records {
		if rec.Password == "" {
			continue
		}
		strength := EvaluatePassword(rec.Password)
		if strength != PasswordWeak {
			continue
		}
		issues = append(issues, Issue{
			Service:     rec.Service,
			Username:    rec.Username,
			Strength:    strength,
			Description: fmt.Sprintf("password is only %d characters; use 14 or more", len(rec.Password)),
		})
	}
	return issues
}

// valueHash computes HMAC-SHA256 of a value with the session key.
func (a *Analyzer) valueHash(value string) string {
	h := hmac.New(sha256.New, a.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// recordLabel names a record for reporting without exposing its password.
func recordLabel(rec vault.SecretRecord) string {
	if rec.Username == "" {
		return rec.Service
	}
	return rec.Service + " (" + rec.Username + ")"
}
