package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/pkg/security"
)

func init() {
	rootCmd.AddCommand(auditCmd)
}

// auditCmd runs offline health checks over the decrypted credentials:
// weak passwords and password reuse. Nothing leaves the process.
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Checks stored credentials for weak and reused passwords",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		records, err := session.Records()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No credentials stored")
			return nil
		}

		analyzer, err := security.NewAnalyzer()
		if err != nil {
			return err
		}

		// 2. Weak passwords
		issues := analyzer.FindWeakPasswords(records)
		if len(issues) == 0 {
			fmt.Println("No weak passwords found")
		} else {
			fmt.Printf("Weak passwords (%d):\n", len(issues))
			for _, issue := range issues {
				label := issue.Service
				if issue.Username != "" {
					label += " (" + issue.Username + ")"
				}
				fmt.Printf("  %s: %s\n", label, issue.Description)
			}
		}

		// 3. Reused passwords
		groups := analyzer.FindDuplicates(records)
		if len(groups) == 0 {
			fmt.Println("No reused passwords found")
		} else {
			fmt.Printf("Reused passwords (%d group(s)):\n", len(groups))
			for _, group := range groups {
				fmt.Printf("  shared by %d: %s\n", group.Count, strings.Join(group.Services, ", "))
			}
		}

		return nil
	},
}
