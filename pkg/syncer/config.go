// Package syncer implements manual snapshot sync against a repository-style
// remote file store speaking the GitHub contents API. Sync is deliberately
// coarse: one JSON snapshot file, last writer wins, optimistic concurrency
// through the remote content version token.
package syncer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Setting names under which the sync configuration persists. They are all on
// the preserve list of the destructive pull-then-apply clear.
const (
	SettingOwner    = "sync.owner"
	SettingRepo     = "sync.repo"
	SettingPath     = "sync.path"
	SettingToken    = "sync.token"
	SettingClientID = "sync.client_id"
)

// Defaults
const (
	DefaultAPIBase = "https://api.github.com"
	DefaultPath    = "vault.json"
)

// ErrNotConfigured indicates sync operations were attempted before owner,
// repository and token were configured.
var ErrNotConfigured = errors.New("syncer: sync is not configured")

// SettingsStore is the slice of the vault store the sync configuration needs.
type SettingsStore interface {
	GetSetting(name string) (string, bool, error)
	PutSetting(name, value string) error
}

// Config is the remote file store configuration for one vault.
type Config struct {
	APIBase  string // override for tests; DefaultAPIBase when empty
	Owner    string
	Repo     string
	Path     string
	Token    string
	ClientID string // stable per-vault identifier, stamped into push messages
}

// Configured reports whether the mandatory fields are present.
func (c *Config) Configured() bool {
	return c.Owner != "" && c.Repo != "" && c.Token != ""
}

// LoadConfig reads the sync configuration from the store. Returns
// ErrNotConfigured if the mandatory fields are missing. A missing client id
// is generated and persisted on first load.
func LoadConfig(st SettingsStore) (*Config, error) {
	cfg := &Config{APIBase: DefaultAPIBase, Path: DefaultPath}

	reads := []struct {
		name string
		dst  *string
	}{
		{SettingOwner, &cfg.Owner},
		{SettingRepo, &cfg.Repo},
		{SettingPath, &cfg.Path},
		{SettingToken, &cfg.Token},
		{SettingClientID, &cfg.ClientID},
	}
	for _, r := range reads {
		value, ok, err := st.GetSetting(r.name)
		if err != nil {
			return nil, err
		}
		if ok && value != "" {
			*r.dst = value
		}
	}

	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
		if err := st.PutSetting(SettingClientID, cfg.ClientID); err != nil {
			return nil, fmt.Errorf("syncer: failed to persist client id: %w", err)
		}
	}
	return cfg, nil
}

// SaveConfig validates and persists the sync configuration. A client id is
// generated if the config does not carry one.
func SaveConfig(st SettingsStore, cfg *Config) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.ClientID == "" {
		cfg.ClientID = uuid.NewString()
	}

	writes := []struct {
		name  string
		value string
	}{
		{SettingOwner, cfg.Owner},
		{SettingRepo, cfg.Repo},
		{SettingPath, cfg.Path},
		{SettingToken, cfg.Token},
		{SettingClientID, cfg.ClientID},
	}
	for _, w := range writes {
		if err := st.PutSetting(w.name, w.value); err != nil {
			return fmt.Errorf("syncer: failed to save %s: %w", w.name, err)
		}
	}
	return nil
}
