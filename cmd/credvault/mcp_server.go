package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd runs the read-only MCP server on stdio. Agents connected to it
// can discover credentials and verify password shape, never plaintext values.
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Runs the read-only MCP server on stdio",
	Long: `Runs an MCP (Model Context Protocol) server over stdio exposing
credential_list, credential_exists and credential_get_masked.

The master passphrase is read from the CREDVAULT_PASSPHRASE environment
variable, which is cleared after reading. Access is filtered by the
mcp-policy.yaml file in the vault directory; without one every service is
denied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(&mcp.ServerOptions{VaultDir: vaultDir})
		if err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		return server.Run(cmd.Context())
	},
}
