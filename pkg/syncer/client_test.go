package syncer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeRemote is an in-memory contents-API endpoint: one file, sha versioning,
// conflict on stale sha.
type fakeRemote struct {
	t       *testing.T
	content []byte
	sha     string
	puts    int
}

func (f *fakeRemote) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
			return
		}

		switch r.Method {
		case http.MethodGet:
			if f.sha == "" {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(map[string]string{"message": "Not Found"})
				return
			}
			// Real responses wrap the base64 in newlines
			encoded := base64.StdEncoding.EncodeToString(f.content)
			wrapped := ""
			for len(encoded) > 60 {
				wrapped += encoded[:60] + "\n"
				encoded = encoded[60:]
			}
			wrapped += encoded + "\n"
			json.NewEncoder(w).Encode(map[string]string{"content": wrapped, "sha": f.sha})

		case http.MethodPut:
			var body struct {
				Message string `json:"message"`
				Content string `json:"content"`
				SHA     string `json:"sha"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				f.t.Errorf("remote received bad PUT body: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if body.SHA != f.sha {
				w.WriteHeader(http.StatusConflict)
				json.NewEncoder(w).Encode(map[string]string{"message": "sha does not match"})
				return
			}
			raw, err := base64.StdEncoding.DecodeString(body.Content)
			if err != nil {
				w.WriteHeader(http.StatusUnprocessableEntity)
				return
			}
			f.content = raw
			f.puts++
			f.sha = f.nextSHA()
			status := http.StatusOK
			if body.SHA == "" {
				status = http.StatusCreated
			}
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"sha": f.sha}})

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (f *fakeRemote) nextSHA() string {
	return "sha-" + string(rune('a'+f.puts))
}

func newTestClient(t *testing.T) (*Client, *fakeRemote) {
	t.Helper()
	remote := &fakeRemote{t: t}
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	return NewClient(&Config{
		APIBase: srv.URL,
		Owner:   "alice",
		Repo:    "vault-sync",
		Path:    "vault.json",
		Token:   "test-token",
	}), remote
}

// TestPullMissingFile tests that a nonexistent remote file is not an error
func TestPullMissingFile(t *testing.T) {
	c, _ := newTestClient(t)

	file, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if file != nil {
		t.Errorf("Pull() = %+v, want nil for missing file", file)
	}
}

// TestPushThenPull tests the create/download round trip including the
// newline-wrapped base64 the API emits
func TestPushThenPull(t *testing.T) {
	c, _ := newTestClient(t)
	snapshot := []byte(`{"version":1,"passwords":[{"id":1,"ciphertext":"abc","iv":"def"}]}`)

	version, err := c.Push(context.Background(), snapshot, "vault sync", "")
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if version == "" {
		t.Fatal("Push() returned empty version token")
	}

	file, err := c.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if file == nil {
		t.Fatal("Pull() = nil after push")
	}
	if !bytes.Equal(file.Content, snapshot) {
		t.Errorf("Pull() content = %s, want %s", file.Content, snapshot)
	}
	if file.Version != version {
		t.Errorf("Pull() version = %q, want %q", file.Version, version)
	}
}

// TestPushWithVersion tests that a push keyed to the current version succeeds
// and yields a fresh usable token
func TestPushWithVersion(t *testing.T) {
	c, _ := newTestClient(t)

	v1, err := c.Push(context.Background(), []byte("one"), "first", "")
	if err != nil {
		t.Fatalf("first Push() error = %v", err)
	}
	v2, err := c.Push(context.Background(), []byte("two"), "second", v1)
	if err != nil {
		t.Fatalf("second Push() error = %v", err)
	}
	if v2 == "" || v2 == v1 {
		t.Errorf("second Push() version = %q, want fresh token (first was %q)", v2, v1)
	}

	// The new token must itself be usable
	if _, err := c.Push(context.Background(), []byte("three"), "third", v2); err != nil {
		t.Errorf("third Push() with returned token error = %v", err)
	}
}

// TestPushConflict tests that a stale version token surfaces as a conflict
func TestPushConflict(t *testing.T) {
	c, _ := newTestClient(t)

	v1, err := c.Push(context.Background(), []byte("one"), "first", "")
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if _, err := c.Push(context.Background(), []byte("two"), "second", v1); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	// Reusing the stale token must be rejected
	_, err = c.Push(context.Background(), []byte("stale"), "stale write", v1)
	var syncErr *SyncError
	if !errors.As(err, &syncErr) {
		t.Fatalf("Push() with stale token error = %v, want *SyncError", err)
	}
	if !syncErr.IsConflict() {
		t.Errorf("SyncError.IsConflict() = false, StatusCode = %d", syncErr.StatusCode)
	}
}

// TestBadCredentials tests auth failures on both directions
func TestBadCredentials(t *testing.T) {
	c, _ := newTestClient(t)
	c.cfg.Token = "wrong"

	var syncErr *SyncError
	if _, err := c.Pull(context.Background()); !errors.As(err, &syncErr) {
		t.Errorf("Pull() error = %v, want *SyncError", err)
	} else if syncErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("Pull() status = %d, want 401", syncErr.StatusCode)
	}
	if _, err := c.Push(context.Background(), []byte("x"), "m", ""); !errors.As(err, &syncErr) {
		t.Errorf("Push() error = %v, want *SyncError", err)
	}
}
