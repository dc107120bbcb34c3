package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/cli"
	"github.com/credvault/credvault/pkg/generator"
	"github.com/credvault/credvault/pkg/security"
	"github.com/credvault/credvault/pkg/vault"
)

// Add command flags
var (
	addUsername string
	addEmail    string
	addMemo     string
	addGenerate bool
	addGenLen   int
)

// Get command flags
var (
	getShowPassword bool
)

// Delete command flags
var (
	deleteForce bool
)

// Update command flags
var (
	updateService  string
	updateUsername string
	updateEmail    string
	updateMemo     string
	updatePassword bool
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)

	addCmd.Flags().StringVarP(&addUsername, "username", "u", "", "Account username")
	addCmd.Flags().StringVarP(&addEmail, "email", "e", "", "Account email")
	addCmd.Flags().StringVarP(&addMemo, "memo", "m", "", "Free-form memo")
	addCmd.Flags().BoolVarP(&addGenerate, "generate", "g", false, "Generate a random password instead of prompting")
	addCmd.Flags().IntVar(&addGenLen, "length", generator.DefaultLength, "Generated password length")

	getCmd.Flags().BoolVarP(&getShowPassword, "show-password", "p", false, "Print the password in plaintext")

	updateCmd.Flags().StringVar(&updateService, "service", "", "New service name")
	updateCmd.Flags().StringVarP(&updateUsername, "username", "u", "", "New username")
	updateCmd.Flags().StringVarP(&updateEmail, "email", "e", "", "New email")
	updateCmd.Flags().StringVarP(&updateMemo, "memo", "m", "", "New memo")
	updateCmd.Flags().BoolVarP(&updatePassword, "password", "p", false, "Prompt for a new password")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

// addCmd stores a new credential.
var addCmd = &cobra.Command{
	Use:   "add [service]",
	Short: "Adds a credential for a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := args[0]

		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		// 2. Obtain the password
		var password string
		if addGenerate {
			var err error
			password, err = generator.Generate(generator.Options{Length: addGenLen})
			if err != nil {
				return err
			}
		} else {
			var err error
			password, err = promptSecret("Enter password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			if security.EvaluatePassword(password) == security.PasswordWeak {
				fmt.Fprintln(os.Stderr, "Warning: password is weak; consider 14 or more characters")
			}
		}

		// 3. Encrypt and persist
		rec, err := session.Create(vault.SecretRecord{
			Service:  service,
			Username: addUsername,
			Email:    addEmail,
			Password: password,
			Memo:     addMemo,
		})
		if err != nil {
			return fmt.Errorf("failed to save credential: %w", err)
		}

		fmt.Printf("Credential for '%s' saved (id %d)\n", service, rec.ID)
		if addGenerate {
			fmt.Printf("Generated password: %s\n", password)
		}
		return nil
	},
}

// getCmd prints credentials for a service. The pattern may be a glob.
var getCmd = &cobra.Command{
	Use:   "get [service]",
	Short: "Shows credentials for a service",
	Long: `Shows credentials for a service. The argument may be an exact service
name or a glob pattern:

  credvault get github
  credvault get "git*"

Passwords stay hidden unless --show-password is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		records, err := session.Records()
		if err != nil {
			return err
		}

		// 2. Match services against the pattern
		services := make([]string, 0, len(records))
		seen := make(map[string]bool)
		for _, rec := range records {
			if !seen[rec.Service] {
				seen[rec.Service] = true
				services = append(services, rec.Service)
			}
		}
		matched, err := cli.MatchServices(args[0], services)
		if err != nil {
			return err
		}
		match := make(map[string]bool, len(matched))
		for _, svc := range matched {
			match[svc] = true
		}

		// 3. Print matches
		for _, rec := range records {
			if !match[rec.Service] {
				continue
			}
			printRecord(rec, getShowPassword)
		}
		return nil
	},
}

// listCmd lists all stored credentials without passwords.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists all stored credentials",
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

		// 2. Tabular output, no secrets
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSERVICE\tUSERNAME\tEMAIL\tMEMO")
		for _, rec := range records {
			memo := rec.Memo
			if len(memo) > 40 {
				memo = memo[:37] + "..."
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", rec.ID, rec.Service, rec.Username, rec.Email, memo)
		}
		return w.Flush()
	},
}

// updateCmd changes fields of an existing credential.
var updateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Updates fields of a credential",
	Long: `Updates a credential by id. Only the fields named by flags change;
--password prompts for the new value without echo.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid credential id %q", args[0])
		}

		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		rec, err := session.Get(id)
		if err != nil {
			return err
		}

		// 2. Apply only the flags that were set
		if cmd.Flags().Changed("service") {
			rec.Service = updateService
		}
		if cmd.Flags().Changed("username") {
			rec.Username = updateUsername
		}
		if cmd.Flags().Changed("email") {
			rec.Email = updateEmail
		}
		if cmd.Flags().Changed("memo") {
			rec.Memo = updateMemo
		}
		if updatePassword {
			password, err := promptSecret("Enter new password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			rec.Password = password
		}

		// 3. Re-encrypt and persist
		if err := session.Update(id, rec); err != nil {
			return fmt.Errorf("failed to update credential: %w", err)
		}
		fmt.Printf("Credential %d updated\n", id)
		return nil
	},
}

// deleteCmd removes a credential.
var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Deletes a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid credential id %q", args[0])
		}

		// 1. Unlock vault
		if err := ensureUnlocked(); err != nil {
			return err
		}

		rec, err := session.Get(id)
		if err != nil {
			return err
		}

		// 2. Confirm unless forced
		if !deleteForce {
			if !confirm(fmt.Sprintf("Delete credential for '%s'?", rec.Service)) {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := session.Delete(id); err != nil {
			return fmt.Errorf("failed to delete credential: %w", err)
		}
		fmt.Printf("Credential %d deleted\n", id)
		return nil
	},
}

// printRecord prints one credential, masking the password unless asked.
func printRecord(rec vault.SecretRecord, showPassword bool) {
	fmt.Printf("[%d] %s\n", rec.ID, rec.Service)
	if rec.Username != "" {
		fmt.Printf("    Username: %s\n", rec.Username)
	}
	if rec.Email != "" {
		fmt.Printf("    Email:    %s\n", rec.Email)
	}
	if showPassword {
		fmt.Printf("    Password: %s\n", rec.Password)
	} else {
		fmt.Printf("    Password: (hidden, use --show-password)\n")
	}
	if rec.Memo != "" {
		fmt.Printf("    Memo:     %s\n", rec.Memo)
	}
}
