package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/pkg/importer"
	"github.com/credvault/credvault/pkg/vault"
)

// Import command flags
var (
	importFormat string
)

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "snapshot", "Input format: snapshot, csv")
}

// importCmd merges credentials from a file into the vault.
var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Imports credentials from a snapshot or CSV export",
	Long: `Imports credentials into the vault.

Formats:
  snapshot  a credvault JSON snapshot (as written by 'credvault export')
  csv       a password-manager CSV export with service/username/password columns`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		switch importFormat {
		case "snapshot":
			return importSnapshot(data)
		case "csv":
			return importCSV(data)
		default:
			return fmt.Errorf("unknown format %q (use 'snapshot' or 'csv')", importFormat)
		}
	},
}

func importSnapshot(data []byte) error {
	snap, err := vault.ParseSnapshot(data)
	if err != nil {
		return err
	}
	n, err := session.ImportSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	fmt.Printf("Imported %d credential(s)\n", n)
	return nil
}

func importCSV(data []byte) error {
	result, err := importer.ParseCSV(data)
	if err != nil {
		return err
	}

	imported := 0
	for _, rec := range result.Records {
		if _, err := session.Create(rec); err != nil {
			return fmt.Errorf("failed to save credential for %q: %w", rec.Service, err)
		}
		imported++
	}

	fmt.Printf("Imported %d credential(s)\n", imported)
	for _, skipped := range result.Skipped {
		fmt.Fprintf(os.Stderr, "Warning: skipped line %d: %s\n", skipped.Line, skipped.Reason)
	}
	return nil
}
