package store

import (
	"bytes"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSettings tests the settings key/value operations
func TestSettings(t *testing.T) {
	s := openTestStore(t)

	// Missing setting
	_, ok, err := s.GetSetting("master.hash")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if ok {
		t.Error("GetSetting() ok = true for missing setting")
	}

	// Put and read back
	if err := s.PutSetting("master.hash", "abc123"); err != nil {
		t.Fatalf("PutSetting() error = %v", err)
	}
	value, ok, err := s.GetSetting("master.hash")
	if err != nil {
		t.Fatalf("GetSetting() error = %v", err)
	}
	if !ok || value != "abc123" {
		t.Errorf("GetSetting() = (%q, %v), want (abc123, true)", value, ok)
	}

	// Overwrite
	if err := s.PutSetting("master.hash", "def456"); err != nil {
		t.Fatalf("PutSetting() error = %v", err)
	}
	value, _, _ = s.GetSetting("master.hash")
	if value != "def456" {
		t.Errorf("GetSetting() after overwrite = %q, want def456", value)
	}

	// Delete
	if err := s.DeleteSetting("master.hash"); err != nil {
		t.Fatalf("DeleteSetting() error = %v", err)
	}
	_, ok, _ = s.GetSetting("master.hash")
	if ok {
		t.Error("GetSetting() ok = true after delete")
	}

	// Deleting a missing setting is not an error
	if err := s.DeleteSetting("never.existed"); err != nil {
		t.Errorf("DeleteSetting() on missing setting error = %v", err)
	}
}

// TestRecordCRUD tests add/update/delete/list of encrypted records
func TestRecordCRUD(t *testing.T) {
	s := openTestStore(t)

	id1, err := s.AddRecord([]byte("ct-1"), []byte("iv-1"))
	if err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}
	id2, err := s.AddRecord([]byte("ct-2"), []byte("iv-2"))
	if err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("AddRecord() returned duplicate id %d", id1)
	}

	// Update
	if err := s.UpdateRecord(id1, []byte("ct-1b"), []byte("iv-1b")); err != nil {
		t.Fatalf("UpdateRecord() error = %v", err)
	}

	records, err := s.AllRecords()
	if err != nil {
		t.Fatalf("AllRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("AllRecords() returned %d records, want 2", len(records))
	}
	if !bytes.Equal(records[0].Ciphertext, []byte("ct-1b")) {
		t.Errorf("record %d ciphertext = %q, want ct-1b", id1, records[0].Ciphertext)
	}

	// Delete
	if err := s.DeleteRecord(id2); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}
	records, _ = s.AllRecords()
	if len(records) != 1 {
		t.Errorf("AllRecords() after delete returned %d records, want 1", len(records))
	}

	// Operations on missing ids
	if err := s.UpdateRecord(999, nil, nil); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("UpdateRecord(999) error = %v, want ErrRecordNotFound", err)
	}
	if err := s.DeleteRecord(999); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("DeleteRecord(999) error = %v, want ErrRecordNotFound", err)
	}
}

// TestPutRecordExplicitID tests upsert under ids assigned elsewhere
func TestPutRecordExplicitID(t *testing.T) {
	s := openTestStore(t)

	if err := s.PutRecord(42, []byte("ct"), []byte("iv")); err != nil {
		t.Fatalf("PutRecord() error = %v", err)
	}
	if err := s.PutRecord(42, []byte("ct2"), []byte("iv2")); err != nil {
		t.Fatalf("PutRecord() upsert error = %v", err)
	}

	records, err := s.AllRecords()
	if err != nil {
		t.Fatalf("AllRecords() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != 42 {
		t.Fatalf("AllRecords() = %+v, want single record with id 42", records)
	}
	if !bytes.Equal(records[0].Ciphertext, []byte("ct2")) {
		t.Errorf("record ciphertext = %q, want ct2", records[0].Ciphertext)
	}
}

// TestClearAllPreserve tests that ClearAll keeps only the preserve list
func TestClearAllPreserve(t *testing.T) {
	s := openTestStore(t)

	settings := map[string]string{
		"master.hash": "h",
		"sync.owner":  "alice",
		"sync.repo":   "vault",
	}
	for name, value := range settings {
		if err := s.PutSetting(name, value); err != nil {
			t.Fatalf("PutSetting(%q) error = %v", name, err)
		}
	}
	if _, err := s.AddRecord([]byte("ct"), []byte("iv")); err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}

	if err := s.ClearAll("sync.owner", "sync.repo"); err != nil {
		t.Fatalf("ClearAll() error = %v", err)
	}

	records, _ := s.AllRecords()
	if len(records) != 0 {
		t.Errorf("AllRecords() after ClearAll returned %d records, want 0", len(records))
	}
	if _, ok, _ := s.GetSetting("master.hash"); ok {
		t.Error("master.hash survived ClearAll")
	}
	for _, name := range []string{"sync.owner", "sync.repo"} {
		if _, ok, _ := s.GetSetting(name); !ok {
			t.Errorf("preserved setting %q was deleted", name)
		}
	}
}
