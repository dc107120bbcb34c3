package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/credvault/credvault/pkg/crypto"
	"github.com/credvault/credvault/pkg/store"
)

// SnapshotVersion is the single supported snapshot schema version. There is
// no forward or backward migration: any other version is rejected before any
// other field is touched.
const SnapshotVersion = 1

// ErrUnsupportedVersion indicates a snapshot with a schema version other
// than SnapshotVersion.
var ErrUnsupportedVersion = errors.New("vault: unsupported snapshot version")

// Snapshot is the full-vault export/import/sync payload. Passwords are
// carried encrypted; the master credential travels with them so the vault
// can be opened on another device with the same passphrase.
type Snapshot struct {
	Version        int             `json:"version"`
	ExportDate     time.Time       `json:"exportDate"`
	MasterHash     []byte          `json:"masterHash"`
	MasterSalt     []byte          `json:"masterSalt"`
	EncryptionSalt []byte          `json:"encryptionSalt"`
	Passwords      []SnapshotEntry `json:"passwords"`
}

// SnapshotEntry is one credential inside a snapshot. Entries produced by
// ExportSnapshot always carry ciphertext and iv. Imported files may instead
// carry plaintext fields (exports from other tools); those are encrypted
// under the current session key during import.
type SnapshotEntry struct {
	ID         int64  `json:"id,omitempty"`
	Ciphertext []byte `json:"ciphertext,omitempty"`
	IV         []byte `json:"iv,omitempty"`

	// Plaintext form, accepted on import only.
	Service  string `json:"service,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	Memo     string `json:"memo,omitempty"`
}

// encrypted reports whether the entry carries ciphertext.
func (e SnapshotEntry) encrypted() bool {
	return len(e.Ciphertext) > 0 && len(e.IV) > 0
}

// ParseSnapshot decodes and version-checks a snapshot. The version is
// validated before any other field is interpreted.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("vault: snapshot is not valid JSON: %w", err)
	}
	if probe.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, probe.Version, SnapshotVersion)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("vault: failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// ExportSnapshot builds the sync/export payload from the persisted state:
// the master credential plus every encrypted record, ciphertext untouched.
// The session does not need to be unlocked; nothing is decrypted.
func (s *Session) ExportSnapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok, err := s.loadCredential()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("vault: cannot export before first-run setup")
	}

	rows, err := s.store.AllRecords()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version:        SnapshotVersion,
		ExportDate:     time.Now().UTC(),
		MasterHash:     cred.VerifierHash,
		MasterSalt:     cred.VerifierSalt,
		EncryptionSalt: cred.EncryptionSalt,
		Passwords:      make([]SnapshotEntry, 0, len(rows)),
	}
	for _, row := range rows {
		snap.Passwords = append(snap.Passwords, SnapshotEntry{
			ID:         row.ID,
			Ciphertext: row.Ciphertext,
			IV:         row.IV,
		})
	}
	return snap, nil
}

// ImportSnapshot merges a snapshot's entries into the local store.
//
// Entries that already carry ciphertext+iv are persisted as-is; they were
// presumably encrypted under this vault's key, and key compatibility is the
// caller's responsibility. Plaintext entries are encrypted under the current
// session key, which requires an unlocked session. Returns the number of
// entries imported.
//
// The snapshot version is checked before the store is touched, so a
// rejected import leaves the vault unmodified.
func (s *Session) ImportSnapshot(snap *Snapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version != SnapshotVersion {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, snap.Version, SnapshotVersion)
	}

	// Plaintext entries need the session key; reject up front rather than
	// failing halfway through the batch.
	for _, e := range snap.Passwords {
		if !e.encrypted() && s.state != Unlocked {
			return 0, ErrNotLoggedIn
		}
	}

	imported := 0
	for _, e := range snap.Passwords {
		if e.encrypted() {
			id, err := s.putEncryptedEntry(e)
			if err != nil {
				return imported, err
			}
			if err := s.refreshRecord(id, e); err != nil {
				return imported, err
			}
			imported++
			continue
		}

		rec := SecretRecord{
			Service:  e.Service,
			Username: e.Username,
			Email:    e.Email,
			Password: e.Password,
			Memo:     e.Memo,
		}
		ciphertext, iv, err := encryptRecord(s.cipher, s.key, rec)
		if err != nil {
			return imported, err
		}
		id, err := s.store.AddRecord(ciphertext, iv)
		if err != nil {
			return imported, err
		}
		rec.ID = id
		s.records[id] = rec
		imported++
	}

	return imported, nil
}

// putEncryptedEntry persists one pre-encrypted snapshot entry and returns its
// id in the store. Caller holds s.mu.
func (s *Session) putEncryptedEntry(e SnapshotEntry) (int64, error) {
	if e.ID > 0 {
		if err := s.store.PutRecord(e.ID, e.Ciphertext, e.IV); err != nil {
			return 0, err
		}
		return e.ID, nil
	}
	return s.store.AddRecord(e.Ciphertext, e.IV)
}

// refreshRecord brings the in-memory record set in line with an imported
// encrypted entry, so that Records() reflects the store without a full
// reload. Entries that do not decrypt under the session key are dropped from
// memory; the next LoadAll quarantines them. No-op when logged out. Caller
// holds s.mu.
func (s *Session) refreshRecord(id int64, e SnapshotEntry) error {
	if s.state != Unlocked {
		return nil
	}
	rec, err := decryptRecord(s.cipher, s.key, store.Record{ID: id, Ciphertext: e.Ciphertext, IV: e.IV})
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			delete(s.records, id)
			return nil
		}
		return err
	}
	s.records[id] = rec
	return nil
}

// ApplyRemoteSnapshot implements the pull-then-apply protocol: the whole
// local vault is cleared and replaced with the remote snapshot's contents,
// last writer wins. Sync settings survive the clear (see SyncSettingNames).
//
// The session is forced to LoggedOut afterwards even if it was unlocked:
// the remote ciphertexts may have been produced under a different passphrase
// history, so the local derived key cannot be trusted against them.
// Re-authentication follows, and the quarantine in LoadAll purges anything
// that still fails to decrypt.
func (s *Session) ApplyRemoteSnapshot(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, snap.Version, SnapshotVersion)
	}

	if err := s.store.ClearAll(SyncSettingNames...); err != nil {
		return err
	}

	cred := &crypto.MasterCredential{
		VerifierHash:   snap.MasterHash,
		VerifierSalt:   snap.MasterSalt,
		EncryptionSalt: snap.EncryptionSalt,
	}
	if err := s.saveCredential(cred); err != nil {
		return err
	}

	for _, e := range snap.Passwords {
		if !e.encrypted() {
			// Remote snapshots are always ciphertext; skip anything else.
			continue
		}
		if _, err := s.putEncryptedEntry(e); err != nil {
			return err
		}
	}

	s.logoutLocked()
	return nil
}
