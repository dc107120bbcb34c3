package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CredentialListInput represents input for the credential_list tool.
type CredentialListInput struct {
	Service string `json:"service,omitempty"` // optional filter, prefix-* patterns allowed
}

// CredentialListOutput represents output for the credential_list tool.
type CredentialListOutput struct {
	Credentials []CredentialInfo `json:"credentials"`
}

// CredentialInfo is credential metadata with no secret material.
type CredentialInfo struct {
	ID       int64  `json:"id"`
	Service  string `json:"service"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	HasMemo  bool   `json:"has_memo"`
}

// CredentialExistsInput represents input for the credential_exists tool.
type CredentialExistsInput struct {
	Service string `json:"service"`
}

// CredentialExistsOutput represents output for the credential_exists tool.
type CredentialExistsOutput struct {
	Exists  bool   `json:"exists"`
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// CredentialGetMaskedInput represents input for the credential_get_masked tool.
type CredentialGetMaskedInput struct {
	Service  string `json:"service"`
	Username string `json:"username,omitempty"` // disambiguates multiple accounts
}

// CredentialGetMaskedOutput represents output for the credential_get_masked tool.
type CredentialGetMaskedOutput struct {
	Service        string `json:"service"`
	Username       string `json:"username,omitempty"`
	MaskedPassword string `json:"masked_password"`
	PasswordLength int    `json:"password_length"`
}

// handleCredentialList handles the credential_list tool call.
func (s *Server) handleCredentialList(_ context.Context, _ *mcp.CallToolRequest, input CredentialListInput) (*mcp.CallToolResult, CredentialListOutput, error) {
	records, err := s.session.Records()
	if err != nil {
		return nil, CredentialListOutput{}, err
	}

	output := CredentialListOutput{Credentials: []CredentialInfo{}}
	for _, rec := range records {
		if input.Service != "" && !matchService(rec.Service, input.Service) {
			continue
		}
		if allowed, _ := s.policy.IsServiceAllowed(rec.Service); !allowed {
			continue
		}
		output.Credentials = append(output.Credentials, CredentialInfo{
			ID:       rec.ID,
			Service:  rec.Service,
			Username: rec.Username,
			Email:    rec.Email,
			HasMemo:  rec.Memo != "",
		})
	}
	return nil, output, nil
}

// handleCredentialExists handles the credential_exists tool call.
func (s *Server) handleCredentialExists(_ context.Context, _ *mcp.CallToolRequest, input CredentialExistsInput) (*mcp.CallToolResult, CredentialExistsOutput, error) {
	if input.Service == "" {
		return nil, CredentialExistsOutput{}, errors.New("service is required")
	}
	if allowed, reason := s.policy.IsServiceAllowed(input.Service); !allowed {
		return nil, CredentialExistsOutput{}, errors.New(reason)
	}

	records, err := s.session.Records()
	if err != nil {
		return nil, CredentialExistsOutput{}, err
	}

	count := 0
	for _, rec := range records {
		if strings.EqualFold(rec.Service, input.Service) {
			count++
		}
	}
	return nil, CredentialExistsOutput{
		Exists:  count > 0,
		Service: input.Service,
		Count:   count,
	}, nil
}

// handleCredentialGetMasked handles the credential_get_masked tool call.
func (s *Server) handleCredentialGetMasked(_ context.Context, _ *mcp.CallToolRequest, input CredentialGetMaskedInput) (*mcp.CallToolResult, CredentialGetMaskedOutput, error) {
	if input.Service == "" {
		return nil, CredentialGetMaskedOutput{}, errors.New("service is required")
	}
	if allowed, reason := s.policy.IsServiceAllowed(input.Service); !allowed {
		return nil, CredentialGetMaskedOutput{}, errors.New(reason)
	}

	records, err := s.session.Records()
	if err != nil {
		return nil, CredentialGetMaskedOutput{}, err
	}

	for _, rec := range records {
		if !strings.EqualFold(rec.Service, input.Service) {
			continue
		}
		if input.Username != "" && !strings.EqualFold(rec.Username, input.Username) {
			continue
		}
		return nil, CredentialGetMaskedOutput{
			Service:        rec.Service,
			Username:       rec.Username,
			MaskedPassword: maskValue(rec.Password),
			PasswordLength: len(rec.Password),
		}, nil
	}
	return nil, CredentialGetMaskedOutput{}, errors.New("credential not found")
}

// maskValue masks a secret, leaving at most a short suffix visible. Short
// values are fully masked so nothing useful leaks.
func maskValue(value string) string {
	length := len(value)
	if length == 0 {
		return ""
	}

	switch {
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + value[length-2:]
	default:
		return strings.Repeat("*", length-4) + value[length-4:]
	}
}
