// Package vault implements the credvault session manager: login and
// first-run setup, the decrypted in-memory record set, record CRUD,
// corrupt-record quarantine, and snapshot export/import.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/credvault/credvault/pkg/crypto"
	"github.com/credvault/credvault/pkg/store"
)

// SecretRecord is one decrypted service credential.
type SecretRecord struct {
	ID       int64  `json:"id"`
	Service  string `json:"service"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Memo     string `json:"memo,omitempty"`
}

// recordPayload is the canonical serialized form of a record. The id is
// excluded: ids are store-assigned, and the ciphertext must stay independent
// of them so records survive re-numbering on import.
type recordPayload struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
	Memo     string `json:"memo,omitempty"`
}

// encryptRecord serializes and encrypts a record under key.
func encryptRecord(c Cipher, key []byte, rec SecretRecord) (ciphertext, iv []byte, err error) {
	payload, err := json.Marshal(recordPayload{
		Service:  rec.Service,
		Username: rec.Username,
		Email:    rec.Email,
		Password: rec.Password,
		Memo:     rec.Memo,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("vault: failed to marshal record: %w", err)
	}
	defer crypto.SecureWipe(payload)

	return c.Encrypt(key, payload)
}

// decryptRecord decrypts and parses one stored record. Every failure mode —
// wrong key, malformed ciphertext, bytes that do not parse as a record —
// reports crypto.ErrDecryptionFailed, the single sentinel the quarantine
// logic in LoadAll matches.
func decryptRecord(c Cipher, key []byte, r store.Record) (SecretRecord, error) {
	plaintext, err := c.Decrypt(key, r.Ciphertext, r.IV)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrInvalidIVLength) {
			return SecretRecord{}, fmt.Errorf("%w: record %d", crypto.ErrDecryptionFailed, r.ID)
		}
		return SecretRecord{}, err
	}
	defer crypto.SecureWipe(plaintext)

	var payload recordPayload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		// Decrypted fine but is not a record; treat as corrupt.
		return SecretRecord{}, fmt.Errorf("%w: record %d is not a credential", crypto.ErrDecryptionFailed, r.ID)
	}

	return SecretRecord{
		ID:       r.ID,
		Service:  payload.Service,
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Memo:     payload.Memo,
	}, nil
}
