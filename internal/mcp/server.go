// Package mcp implements the read-only MCP (Model Context Protocol) server
// for credvault. Agents can discover which credentials exist and verify their
// shape; plaintext passwords are never returned over this surface.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/credvault/credvault/pkg/store"
	"github.com/credvault/credvault/pkg/vault"
)

// Server wraps an unlocked vault session behind the MCP tool surface.
type Server struct {
	server   *mcp.Server
	session  *vault.Session
	store    *store.Store
	vaultDir string
	policy   *Policy
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	// VaultDir is the vault directory. Defaults to ~/.credvault.
	VaultDir string

	// Passphrase is the master passphrase. If empty, the server reads the
	// CREDVAULT_PASSPHRASE environment variable and clears it afterwards.
	Passphrase string
}

// NewServer creates the MCP server, unlocks the vault and registers tools.
func NewServer(opts *ServerOptions) (*Server, error) {
	if opts == nil {
		opts = &ServerOptions{}
	}

	vaultDir := opts.VaultDir
	if vaultDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		vaultDir = filepath.Join(home, ".credvault")
	}

	// A missing or broken policy is not fatal; the server runs with every
	// service denied.
	policy, err := LoadPolicy(vaultDir)
	if err != nil {
		log.Printf("warning: failed to load MCP policy: %v", err)
		policy = nil
	}

	passphrase := opts.Passphrase
	if passphrase == "" {
		passphrase = os.Getenv("CREDVAULT_PASSPHRASE")
		os.Unsetenv("CREDVAULT_PASSPHRASE")
	}
	if passphrase == "" {
		return nil, fmt.Errorf("no passphrase provided: set CREDVAULT_PASSPHRASE environment variable")
	}

	st, err := store.Open(vaultDir)
	if err != nil {
		return nil, err
	}

	session := vault.NewDefault(st)
	if err := session.Login(passphrase); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to unlock vault: %w", err)
	}
	if _, purged, err := session.LoadAll(); err != nil {
		session.Logout()
		st.Close()
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	} else if purged > 0 {
		log.Printf("warning: purged %d corrupt credential(s) during load", purged)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "credvault",
			Version: "0.1.0",
		},
		nil,
	)

	s := &Server{
		server:   mcpServer,
		session:  session,
		store:    st,
		vaultDir: vaultDir,
		policy:   policy,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_list",
		Description: "List stored credentials: service, username, email and memo presence. Does NOT return passwords.",
	}, s.handleCredentialList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_exists",
		Description: "Check whether a credential exists for a service. Does NOT return the password.",
	}, s.handleCredentialExists)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "credential_get_masked",
		Description: "Get a masked form of a credential's password (e.g. '****WXYZ') for format verification. Never returns the full value.",
	}, s.handleCredentialGetMasked)
}

// Run starts the MCP server on stdio and locks the vault when it stops.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close locks the vault and releases the store.
func (s *Server) Close() error {
	s.session.Logout()
	return s.store.Close()
}
