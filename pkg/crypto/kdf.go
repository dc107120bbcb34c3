// Package crypto provides the cryptographic primitives for credvault.
//
// This package implements PBKDF2-SHA256 key derivation for both the login
// verifier and the record-encryption key, and an AES-256-CBC envelope for
// credential records.
//
// # Security Properties
//
//   - Deterministic key derivation: the same (passphrase, salt) pair yields
//     the same key on every platform, so a vault pulled from the remote store
//     can be opened on a different device.
//   - The verifier hash and the encryption key use independent random salts;
//     neither can be computed from the other.
//   - Fresh random 16-byte IV per encryption call.
//   - Secure memory wiping for key material.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters. These are fixed: the snapshot format carries no KDF
// configuration, so every device must derive with identical settings.
const (
	// KDFIterations is the PBKDF2 iteration count.
	KDFIterations = 100_000

	// KeyLength is the length of derived keys in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the length of generated salts in bytes.
	SaltLength = 16

	// MinPassphraseLength is the minimum accepted master passphrase length.
	MinPassphraseLength = 8
)

// ErrWeakPassphrase indicates the passphrase is shorter than MinPassphraseLength.
var ErrWeakPassphrase = errors.New("crypto: passphrase must be at least 8 characters")

// MasterCredential holds everything persisted about the master passphrase.
// The passphrase itself is never stored; VerifierHash authenticates future
// logins and EncryptionSalt re-derives the record-encryption key.
type MasterCredential struct {
	VerifierHash   []byte
	VerifierSalt   []byte
	EncryptionSalt []byte
}

// Setup creates a MasterCredential and the session encryption key for a new
// vault. It generates two independent random salts: one for the login
// verifier, one for the encryption key. The two serve different trust
// boundaries and must never be shared.
func Setup(passphrase string) (*MasterCredential, []byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, nil, ErrWeakPassphrase
	}

	verifierSalt := make([]byte, SaltLength)
	if _, err := rand.Read(verifierSalt); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate verifier salt: %w", err)
	}

	encryptionSalt := make([]byte, SaltLength)
	if _, err := rand.Read(encryptionSalt); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate encryption salt: %w", err)
	}

	cred := &MasterCredential{
		VerifierHash:   DeriveKey(passphrase, verifierSalt),
		VerifierSalt:   verifierSalt,
		EncryptionSalt: encryptionSalt,
	}

	return cred, DeriveKey(passphrase, encryptionSalt), nil
}

// DeriveKey derives a 256-bit key from a passphrase using PBKDF2-SHA256 with
// KDFIterations iterations. The output is used both as the stored login
// verifier (with the verifier salt) and as the record-encryption key (with
// the encryption salt).
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, KDFIterations, KeyLength, sha256.New)
}

// Verify recomputes the verifier hash for the given passphrase and compares
// it against the stored hash. The comparison is full-length and
// constant-time; it never short-circuits on a prefix mismatch.
func Verify(passphrase string, storedHash, storedSalt []byte) bool {
	computed := DeriveKey(passphrase, storedSalt)
	defer SecureWipe(computed)
	return subtle.ConstantTimeCompare(computed, storedHash) == 1
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation. Used to destroy the
// derived key and plaintext buffers on logout.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
