// Package cli provides shared helpers for credvault CLI commands.
package cli

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MatchServices filters service names against a pattern. A pattern containing
// glob characters (*?[) is matched with filepath.Match semantics; anything
// else is an exact, case-insensitive match.
func MatchServices(pattern string, services []string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		var matches []string
		for _, svc := range services {
			if strings.EqualFold(svc, pattern) {
				matches = append(matches, svc)
			}
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no credential for service %q", pattern)
		}
		return matches, nil
	}

	var matches []string
	for _, svc := range services {
		matched, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(svc))
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, svc)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no services match pattern %q", pattern)
	}
	return matches, nil
}
