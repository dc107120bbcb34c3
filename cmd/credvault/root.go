// Package main provides the credvault CLI commands.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/credvault/credvault/pkg/security"
	"github.com/credvault/credvault/pkg/store"
	"github.com/credvault/credvault/pkg/vault"
)

var (
	vaultDir string
	st       *store.Store
	session  *vault.Session
)

var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "credvault is a passphrase-protected credential manager",
	Long: `A client-side credential manager. Service credentials are encrypted at
rest behind a master passphrase and can optionally be synced as an encrypted
snapshot to a repository-style remote file store.`,
	SilenceUsage: true,
	// PersistentPreRunE opens the vault store for every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		vaultDir, err = resolveVaultDir()
		if err != nil {
			return err
		}
		st, err = store.Open(vaultDir)
		if err != nil {
			return err
		}
		session = vault.NewDefault(st)
		return nil
	},
}

// cleanup wipes session secrets and closes the store. Called from main after
// Execute returns, so the database is closed even when a command fails. Both
// may be nil if PersistentPreRunE never ran or failed partway.
func cleanup() {
	if session != nil {
		session.Logout()
	}
	if st != nil {
		st.Close()
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// resolveVaultDir returns the vault directory: CREDVAULT_HOME if set,
// otherwise ~/.credvault.
func resolveVaultDir() (string, error) {
	if dir := os.Getenv("CREDVAULT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".credvault"), nil
}

// initCmd performs first-run setup of a new vault.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initializes a new credential vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		configured, err := session.Configured()
		if err != nil {
			return err
		}
		if configured {
			return fmt.Errorf("vault at %s is already initialized", vaultDir)
		}

		fmt.Println("Initializing new vault...")

		// 1. Prompt for master passphrase
		passphrase1, err := promptSecret("Enter master passphrase: ")
		if err != nil {
			return err
		}

		// 2. Confirm passphrase
		passphrase2, err := promptSecret("Confirm master passphrase: ")
		if err != nil {
			return err
		}
		if passphrase1 != passphrase2 {
			return fmt.Errorf("passphrases do not match")
		}

		// 3. Advisory strength feedback; hard minimum is enforced by Login
		fmt.Printf("Passphrase strength: %s\n", security.EvaluatePassword(passphrase1))

		// 4. First login performs setup and persists the master credential
		if err := session.Login(passphrase1); err != nil {
			return fmt.Errorf("failed to initialize vault: %w", err)
		}

		fmt.Printf("Vault initialized successfully at %s\n", vaultDir)
		return nil
	},
}

// ensureUnlocked prompts for the master passphrase, unlocks the session and
// loads the records. Corrupt records purged during load are reported.
func ensureUnlocked() error {
	if session.State() == vault.Unlocked {
		return nil
	}

	configured, err := session.Configured()
	if err != nil {
		return err
	}
	if !configured {
		return fmt.Errorf("vault is not initialized: run 'credvault init' first")
	}

	passphrase, err := promptSecret("Enter master passphrase: ")
	if err != nil {
		return err
	}
	if err := session.Login(passphrase); err != nil {
		return fmt.Errorf("failed to unlock vault: %w", err)
	}

	_, purged, err := session.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if purged > 0 {
		fmt.Fprintf(os.Stderr, "Warning: purged %d corrupt credential(s) that could not be decrypted\n", purged)
	}
	return nil
}

// promptSecret reads a secret line without echo when stdin is a terminal,
// falling back to a plain line read for piped input.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read passphrase: %w", err)
		}
		return string(raw), nil
	}
	return readLine()
}

// readLine reads a single line from stdin, trimming the trailing newline.
func readLine() (string, error) {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var response string
	if _, err := fmt.Scanln(&response); err != nil {
		return false
	}
	return response == "y" || response == "Y"
}
