package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Export command flags
var (
	exportOutput string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: stdout)")
}

// exportCmd writes the vault snapshot: master credential plus every record,
// ciphertext untouched. The output is safe to store remotely; nothing in it
// is decryptable without the master passphrase.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Exports the encrypted vault snapshot as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := session.ExportSnapshot()
		if err != nil {
			return fmt.Errorf("failed to export vault: %w", err)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		data = append(data, '\n')

		if exportOutput == "" {
			os.Stdout.Write(data)
			return nil
		}
		if err := os.WriteFile(exportOutput, data, 0600); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		fmt.Printf("Exported %d credential(s) to %s\n", len(snap.Passwords), exportOutput)
		return nil
	},
}
