package mcp

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy controls which services the MCP tools may reveal metadata about. It
// lives next to the vault database and is loaded once at server start.
type Policy struct {
	Version         int      `yaml:"version"`
	DefaultAction   string   `yaml:"default_action"`
	DeniedServices  []string `yaml:"denied_services"`
	AllowedServices []string `yaml:"allowed_services"`
}

// PolicyFileName is the name of the policy file inside the vault directory.
const PolicyFileName = "mcp-policy.yaml"

// Policy action constants
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// Policy loading errors
var (
	ErrPolicyNotFound       = errors.New("mcp: policy file not found")
	ErrPolicyInsecure       = errors.New("mcp: policy file has insecure permissions")
	ErrPolicySymlink        = errors.New("mcp: policy file is a symlink")
	ErrPolicyNotOwnedByUser = errors.New("mcp: policy file not owned by current user")
)

// LoadPolicy loads the MCP policy from the vault directory. The file is
// opened first and all checks run against the open descriptor, so the checked
// file and the parsed file are the same inode.
func LoadPolicy(vaultDir string) (*Policy, error) {
	policyPath := filepath.Join(vaultDir, PolicyFileName)

	f, err := openPolicyFile(policyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to stat policy file: %w", err)
	}

	// Must be private to the owner
	perm := info.Mode().Perm()
	if perm != 0600 {
		return nil, fmt.Errorf("%w: %o (expected 0600)", ErrPolicyInsecure, perm)
	}
	if err := checkFileOwnership(info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to read policy file: %w", err)
	}

	var policy Policy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return nil, fmt.Errorf("mcp: failed to parse policy file: %w", err)
	}

	if policy.Version != 1 {
		return nil, fmt.Errorf("mcp: unsupported policy version: %d", policy.Version)
	}
	if policy.DefaultAction == "" {
		policy.DefaultAction = ActionDeny
	}
	if policy.DefaultAction != ActionDeny && policy.DefaultAction != ActionAllow {
		return nil, fmt.Errorf("mcp: invalid default_action: %s", policy.DefaultAction)
	}

	return &policy, nil
}

// IsServiceAllowed checks whether the policy permits revealing a service.
// Evaluation order: denied_services, then allowed_services, then
// default_action. A nil policy denies everything.
func (p *Policy) IsServiceAllowed(service string) (allowed bool, reason string) {
	if p == nil {
		return false, "no policy loaded; all services are denied"
	}

	for _, denied := range p.DeniedServices {
		if matchService(service, denied) {
			return false, fmt.Sprintf("service %q matches denied pattern %q", service, denied)
		}
	}
	for _, pattern := range p.AllowedServices {
		if matchService(service, pattern) {
			return true, ""
		}
	}
	if p.DefaultAction == ActionAllow {
		return true, ""
	}
	return false, fmt.Sprintf("service %q is not in the allowed_services list", service)
}

// matchService compares a service name to a policy pattern. Patterns are
// case-insensitive; a trailing * matches any suffix.
func matchService(service, pattern string) bool {
	service = strings.ToLower(service)
	pattern = strings.ToLower(pattern)

	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(service, pattern[:len(pattern)-1])
	}
	return service == pattern
}
