package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/credvault/credvault/pkg/crypto"
	"github.com/credvault/credvault/pkg/store"
	"github.com/credvault/credvault/pkg/syncer"
)

// Settings names for the persisted master credential.
const (
	SettingMasterHash     = "master.hash"
	SettingVerifierSalt   = "master.verifier_salt"
	SettingEncryptionSalt = "master.encryption_salt"
)

// SyncSettingNames are the settings preserved across the destructive
// pull-then-apply clear. A pull replaces the whole vault, but discarding the
// remote configuration that made the pull possible would strand the user.
var SyncSettingNames = []string{
	syncer.SettingOwner,
	syncer.SettingRepo,
	syncer.SettingPath,
	syncer.SettingToken,
	syncer.SettingClientID,
}

// Errors
var (
	ErrNotLoggedIn       = errors.New("vault: not logged in")
	ErrAlreadyLoggedIn   = errors.New("vault: session already unlocked")
	ErrInvalidPassphrase = errors.New("vault: invalid master passphrase")
	ErrRecordNotFound    = errors.New("vault: record not found")
)

// State is the session lifecycle state.
type State int

const (
	// LoggedOut means no key material is held in memory.
	LoggedOut State = iota
	// Unlocked means the derived key and decrypted records are in memory.
	Unlocked
)

// Store is the persistence capability the session consumes: key/value
// settings plus encrypted records keyed by integer id. *store.Store is the
// production implementation.
type Store interface {
	GetSetting(name string) (string, bool, error)
	PutSetting(name, value string) error
	DeleteSetting(name string) error
	AddRecord(ciphertext, iv []byte) (int64, error)
	PutRecord(id int64, ciphertext, iv []byte) error
	UpdateRecord(id int64, ciphertext, iv []byte) error
	DeleteRecord(id int64) error
	AllRecords() ([]store.Record, error)
	ClearAll(preserve ...string) error
}

// Cipher is the cryptographic capability the session consumes. The concrete
// primitive provider is injected so tests can substitute deterministic
// fixtures. crypto.Provider is the production implementation.
type Cipher interface {
	Setup(passphrase string) (*crypto.MasterCredential, []byte, error)
	Verify(passphrase string, storedHash, storedSalt []byte) bool
	DeriveKey(passphrase string, salt []byte) []byte
	Encrypt(key, plaintext []byte) (ciphertext, iv []byte, err error)
	Decrypt(key, ciphertext, iv []byte) ([]byte, error)
}

// Session owns the decrypted in-memory record set for the lifetime of one
// login. The store owns the persisted encrypted bytes; the two are updated
// in the same call for every mutation, so callers never observe them out of
// sync within a process.
type Session struct {
	store  Store
	cipher Cipher

	mu      sync.Mutex
	state   State
	key     []byte
	records map[int64]SecretRecord
}

// New creates a logged-out session over the given store and cipher.
func New(st Store, c Cipher) *Session {
	return &Session{
		store:  st,
		cipher: c,
		state:  LoggedOut,
	}
}

// NewDefault creates a session using the production crypto provider.
func NewDefault(st Store) *Session {
	return New(st, crypto.Provider{})
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Configured reports whether a master credential exists, i.e. whether this
// vault has completed first-run setup.
func (s *Session) Configured() (bool, error) {
	_, ok, err := s.store.GetSetting(SettingMasterHash)
	return ok, err
}

// Login unlocks the session. On a fresh vault (no master credential stored)
// it performs first-time setup with the given passphrase and transitions
// directly to Unlocked. Otherwise it verifies the passphrase against the
// stored verifier and derives the encryption key.
func (s *Session) Login(passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Unlocked {
		return ErrAlreadyLoggedIn
	}

	cred, ok, err := s.loadCredential()
	if err != nil {
		return err
	}

	if !ok {
		// First run: create and persist the master credential.
		cred, key, err := s.cipher.Setup(passphrase)
		if err != nil {
			return err
		}
		if err := s.saveCredential(cred); err != nil {
			crypto.SecureWipe(key)
			return err
		}
		s.unlock(key)
		return nil
	}

	if !s.cipher.Verify(passphrase, cred.VerifierHash, cred.VerifierSalt) {
		return ErrInvalidPassphrase
	}
	s.unlock(s.cipher.DeriveKey(passphrase, cred.EncryptionSalt))
	return nil
}

// unlock transitions to Unlocked. Caller holds s.mu.
func (s *Session) unlock(key []byte) {
	s.key = key
	s.records = make(map[int64]SecretRecord)
	s.state = Unlocked
}

// Logout discards the derived key and every decrypted record from memory.
// This is the only path that clears secrets.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutLocked()
}

// logoutLocked clears session secrets. Caller holds s.mu.
func (s *Session) logoutLocked() {
	if s.key != nil {
		crypto.SecureWipe(s.key)
		s.key = nil
	}
	for id, rec := range s.records {
		rec.Password = ""
		s.records[id] = rec
	}
	s.records = nil
	s.state = LoggedOut
}

// LoadAll reads every encrypted record from the store and decrypts each one
// independently. Records that fail decryption are purged from the store
// (quarantine) rather than aborting the batch: one corrupt record must never
// block access to the rest of the vault. Returns the decrypted records
// ordered by id and the number of records purged.
func (s *Session) LoadAll() ([]SecretRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unlocked {
		return nil, 0, ErrNotLoggedIn
	}

	rows, err := s.store.AllRecords()
	if err != nil {
		return nil, 0, err
	}

	s.records = make(map[int64]SecretRecord, len(rows))
	purged := 0
	for _, row := range rows {
		rec, err := decryptRecord(s.cipher, s.key, row)
		if err != nil {
			if errors.Is(err, crypto.ErrDecryptionFailed) {
				// Quarantine: delete and continue with the remaining records.
				if delErr := s.store.DeleteRecord(row.ID); delErr != nil && !errors.Is(delErr, store.ErrRecordNotFound) {
					return nil, purged, fmt.Errorf("vault: failed to purge corrupt record %d: %w", row.ID, delErr)
				}
				purged++
				continue
			}
			return nil, purged, err
		}
		s.records[rec.ID] = rec
	}

	return s.sortedRecords(), purged, nil
}

// Records returns the decrypted records currently held in memory, ordered by
// id. It does not touch the store; call LoadAll first.
func (s *Session) Records() ([]SecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return nil, ErrNotLoggedIn
	}
	return s.sortedRecords(), nil
}

// Get returns one decrypted record by id.
func (s *Session) Get(id int64) (SecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Unlocked {
		return SecretRecord{}, ErrNotLoggedIn
	}
	rec, ok := s.records[id]
	if !ok {
		return SecretRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

// Create encrypts and persists a new record, updating the in-memory set in
// the same call. The store-assigned id is filled into the returned record.
func (s *Session) Create(rec SecretRecord) (SecretRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unlocked {
		return SecretRecord{}, ErrNotLoggedIn
	}

	ciphertext, iv, err := encryptRecord(s.cipher, s.key, rec)
	if err != nil {
		return SecretRecord{}, err
	}
	id, err := s.store.AddRecord(ciphertext, iv)
	if err != nil {
		return SecretRecord{}, err
	}

	rec.ID = id
	s.records[id] = rec
	return rec, nil
}

// Update re-encrypts an existing record under the session key.
func (s *Session) Update(id int64, rec SecretRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unlocked {
		return ErrNotLoggedIn
	}
	if _, ok := s.records[id]; !ok {
		return ErrRecordNotFound
	}

	ciphertext, iv, err := encryptRecord(s.cipher, s.key, rec)
	if err != nil {
		return err
	}
	if err := s.store.UpdateRecord(id, ciphertext, iv); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}

	rec.ID = id
	s.records[id] = rec
	return nil
}

// Delete removes a record from the store and the in-memory set.
func (s *Session) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unlocked {
		return ErrNotLoggedIn
	}
	if _, ok := s.records[id]; !ok {
		return ErrRecordNotFound
	}

	if err := s.store.DeleteRecord(id); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return err
	}
	delete(s.records, id)
	return nil
}

// sortedRecords returns the in-memory records ordered by id. Caller holds s.mu.
func (s *Session) sortedRecords() []SecretRecord {
	out := make([]SecretRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// loadCredential reads the persisted master credential. The boolean reports
// whether one exists (false on a fresh vault). Caller holds s.mu.
func (s *Session) loadCredential() (*crypto.MasterCredential, bool, error) {
	hash, ok, err := s.getSettingBytes(SettingMasterHash)
	if err != nil || !ok {
		return nil, false, err
	}
	verifierSalt, ok, err := s.getSettingBytes(SettingVerifierSalt)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errors.New("vault: master credential is incomplete: verifier salt missing")
	}
	encryptionSalt, ok, err := s.getSettingBytes(SettingEncryptionSalt)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, errors.New("vault: master credential is incomplete: encryption salt missing")
	}

	return &crypto.MasterCredential{
		VerifierHash:   hash,
		VerifierSalt:   verifierSalt,
		EncryptionSalt: encryptionSalt,
	}, true, nil
}

// saveCredential persists the master credential settings. Caller holds s.mu.
func (s *Session) saveCredential(cred *crypto.MasterCredential) error {
	if err := s.putSettingBytes(SettingMasterHash, cred.VerifierHash); err != nil {
		return err
	}
	if err := s.putSettingBytes(SettingVerifierSalt, cred.VerifierSalt); err != nil {
		return err
	}
	return s.putSettingBytes(SettingEncryptionSalt, cred.EncryptionSalt)
}

func (s *Session) getSettingBytes(name string) ([]byte, bool, error) {
	value, ok, err := s.store.GetSetting(name)
	if err != nil || !ok {
		return nil, ok, err
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, false, fmt.Errorf("vault: setting %q is not valid base64: %w", name, err)
	}
	return raw, true, nil
}

func (s *Session) putSettingBytes(name string, value []byte) error {
	return s.store.PutSetting(name, base64.StdEncoding.EncodeToString(value))
}
