package mcp

import (
	"context"
	"testing"

	"github.com/credvault/credvault/pkg/store"
	"github.com/credvault/credvault/pkg/vault"
)

// newTestServer builds a Server over a throwaway unlocked vault.
func newTestServer(t *testing.T, policy *Policy) *Server {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	session := vault.NewDefault(st)
	if err := session.Login("test-passphrase"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	records := []vault.SecretRecord{
		{Service: "github", Username: "alice", Email: "alice@example.com", Password: "gh-password-1", Memo: "work"},
		{Service: "github", Username: "bob", Password: "gh-password-2"},
		{Service: "banking", Username: "alice", Password: "bank-password"},
	}
	for i, rec := range records {
		if _, err := session.Create(rec); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	return &Server{session: session, policy: policy}
}

func openPolicy() *Policy {
	return &Policy{Version: 1, DefaultAction: ActionAllow, DeniedServices: []string{"banking"}}
}

// TestHandleCredentialList tests listing with policy filtering
func TestHandleCredentialList(t *testing.T) {
	s := newTestServer(t, openPolicy())

	_, output, err := s.handleCredentialList(context.Background(), nil, CredentialListInput{})
	if err != nil {
		t.Fatalf("handleCredentialList() error = %v", err)
	}
	// banking is filtered out by the policy
	if len(output.Credentials) != 2 {
		t.Fatalf("credential_list returned %d entries, want 2", len(output.Credentials))
	}
	for _, info := range output.Credentials {
		if info.Service == "banking" {
			t.Error("credential_list leaked a denied service")
		}
	}
	if !output.Credentials[0].HasMemo {
		t.Error("first entry HasMemo = false, want true")
	}

	// Service filter
	_, output, err = s.handleCredentialList(context.Background(), nil, CredentialListInput{Service: "github"})
	if err != nil {
		t.Fatalf("handleCredentialList() error = %v", err)
	}
	if len(output.Credentials) != 2 {
		t.Errorf("filtered credential_list returned %d entries, want 2", len(output.Credentials))
	}
}

// TestHandleCredentialExists tests existence checks and policy denial
func TestHandleCredentialExists(t *testing.T) {
	s := newTestServer(t, openPolicy())

	_, output, err := s.handleCredentialExists(context.Background(), nil, CredentialExistsInput{Service: "github"})
	if err != nil {
		t.Fatalf("handleCredentialExists() error = %v", err)
	}
	if !output.Exists || output.Count != 2 {
		t.Errorf("credential_exists = %+v, want exists with count 2", output)
	}

	_, output, err = s.handleCredentialExists(context.Background(), nil, CredentialExistsInput{Service: "missing"})
	if err != nil {
		t.Fatalf("handleCredentialExists() error = %v", err)
	}
	if output.Exists {
		t.Error("credential_exists reported a missing service as present")
	}

	if _, _, err := s.handleCredentialExists(context.Background(), nil, CredentialExistsInput{Service: "banking"}); err == nil {
		t.Error("credential_exists allowed a denied service")
	}
	if _, _, err := s.handleCredentialExists(context.Background(), nil, CredentialExistsInput{}); err == nil {
		t.Error("credential_exists accepted an empty service")
	}
}

// TestHandleCredentialGetMasked tests that only masked values leave the server
func TestHandleCredentialGetMasked(t *testing.T) {
	s := newTestServer(t, openPolicy())

	_, output, err := s.handleCredentialGetMasked(context.Background(), nil, CredentialGetMaskedInput{Service: "github", Username: "alice"})
	if err != nil {
		t.Fatalf("handleCredentialGetMasked() error = %v", err)
	}
	if output.MaskedPassword != "*********rd-1" {
		t.Errorf("masked password = %q", output.MaskedPassword)
	}
	if output.PasswordLength != len("gh-password-1") {
		t.Errorf("password length = %d", output.PasswordLength)
	}

	if _, _, err := s.handleCredentialGetMasked(context.Background(), nil, CredentialGetMaskedInput{Service: "banking"}); err == nil {
		t.Error("credential_get_masked allowed a denied service")
	}
	if _, _, err := s.handleCredentialGetMasked(context.Background(), nil, CredentialGetMaskedInput{Service: "missing"}); err == nil {
		t.Error("credential_get_masked succeeded for a missing service")
	}
}

// TestMaskValue tests the masking tiers
func TestMaskValue(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", ""},
		{"ab", "**"},
		{"abcd", "****"},
		{"abcdef", "****ef"},
		{"abcdefgh", "******gh"},
		{"abcdefghi", "*****fghi"},
		{"correcthorse", "********orse"},
	}

	for _, tt := range tests {
		if got := maskValue(tt.value); got != tt.want {
			t.Errorf("maskValue(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
