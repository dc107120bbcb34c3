package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/pkg/syncer"
	"github.com/credvault/credvault/pkg/vault"
)

// settingLastVersion tracks the remote version token the local vault is
// based on. It is bookkeeping, not configuration, so it does not survive the
// pull-then-apply clear and is rewritten after every pull or push.
const settingLastVersion = "sync.last_version"

const syncTimeout = 60 * time.Second

// Sync config flags
var (
	syncOwner string
	syncRepo  string
	syncPath  string
	syncToken string
)

// Sync push flags
var (
	pushMessage string
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncConfigCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncPushCmd)

	syncConfigCmd.Flags().StringVar(&syncOwner, "owner", "", "Remote repository owner")
	syncConfigCmd.Flags().StringVar(&syncRepo, "repo", "", "Remote repository name")
	syncConfigCmd.Flags().StringVar(&syncPath, "path", syncer.DefaultPath, "Snapshot file path inside the repository")
	syncConfigCmd.Flags().StringVar(&syncToken, "token", "", "Access token (prompted without echo if omitted)")

	syncPushCmd.Flags().StringVarP(&pushMessage, "message", "m", "", "Commit message for the remote write")
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync the encrypted vault snapshot with a remote file store",
	Long: `Sync the encrypted vault snapshot with a repository-style remote store.

Sync is manual and coarse: 'push' replaces the remote snapshot with the local
vault, 'pull' replaces the local vault with the remote snapshot. Last writer
wins; there is no merge.`,
}

// syncConfigCmd stores the remote configuration.
var syncConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configures the remote file store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncOwner == "" || syncRepo == "" {
			return fmt.Errorf("--owner and --repo are required")
		}

		token := syncToken
		if token == "" {
			var err error
			token, err = promptSecret("Enter access token: ")
			if err != nil {
				return err
			}
		}
		if token == "" {
			return fmt.Errorf("an access token is required")
		}

		cfg := &syncer.Config{
			Owner: syncOwner,
			Repo:  syncRepo,
			Path:  syncPath,
			Token: token,
		}
		if err := syncer.SaveConfig(st, cfg); err != nil {
			return fmt.Errorf("failed to save sync configuration: %w", err)
		}

		fmt.Printf("Sync configured: %s/%s (%s)\n", cfg.Owner, cfg.Repo, cfg.Path)
		return nil
	},
}

// syncStatusCmd reports the sync configuration and remote snapshot state.
var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows sync configuration and remote snapshot state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncer.LoadConfig(st)
		if err != nil {
			if errors.Is(err, syncer.ErrNotConfigured) {
				fmt.Println("Sync is not configured: run 'credvault sync config'")
				return nil
			}
			return err
		}

		fmt.Printf("Remote:    %s/%s\n", cfg.Owner, cfg.Repo)
		fmt.Printf("Path:      %s\n", cfg.Path)
		fmt.Printf("Client id: %s\n", cfg.ClientID)

		if version, ok, _ := st.GetSetting(settingLastVersion); ok {
			fmt.Printf("Last synced version: %s\n", version)
		} else {
			fmt.Println("Last synced version: (never synced)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
		defer cancel()

		file, err := syncer.NewClient(cfg).Pull(ctx)
		if err != nil {
			return fmt.Errorf("failed to check remote: %w", err)
		}
		if file == nil {
			fmt.Println("Remote snapshot: (not created yet)")
		} else {
			fmt.Printf("Remote snapshot: %d bytes, version %s\n", len(file.Content), file.Version)
		}
		return nil
	},
}

// syncPullCmd replaces the local vault with the remote snapshot.
var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replaces the local vault with the remote snapshot",
	Long: `Downloads the remote snapshot and replaces the entire local vault with
its contents. Local credentials that were never pushed are lost; sync
configuration is kept. The session is logged out afterwards and the master
passphrase of the pulled snapshot is required on next use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncer.LoadConfig(st)
		if err != nil {
			return err
		}

		if !confirm("This replaces the entire local vault with the remote snapshot. Continue?") {
			fmt.Println("Aborted")
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
		defer cancel()

		file, err := syncer.NewClient(cfg).Pull(ctx)
		if err != nil {
			return fmt.Errorf("pull failed: %w", err)
		}
		if file == nil {
			fmt.Println("Remote snapshot does not exist yet; nothing to pull")
			return nil
		}

		snap, err := vault.ParseSnapshot(file.Content)
		if err != nil {
			return err
		}
		if err := session.ApplyRemoteSnapshot(snap); err != nil {
			return fmt.Errorf("failed to apply remote snapshot: %w", err)
		}
		if err := st.PutSetting(settingLastVersion, file.Version); err != nil {
			return err
		}

		fmt.Printf("Pulled %d credential(s) (version %s)\n", len(snap.Passwords), file.Version)
		fmt.Println("You have been logged out; unlock with the snapshot's master passphrase")
		return nil
	},
}

// syncPushCmd replaces the remote snapshot with the local vault.
var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Replaces the remote snapshot with the local vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncer.LoadConfig(st)
		if err != nil {
			return err
		}

		snap, err := session.ExportSnapshot()
		if err != nil {
			return fmt.Errorf("failed to build snapshot: %w", err)
		}
		content, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}

		if _, ok, _ := st.GetSetting(settingLastVersion); !ok {
			fmt.Fprintln(os.Stderr, "Warning: this vault has never pulled; pushing overwrites whatever the remote holds")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
		defer cancel()
		client := syncer.NewClient(cfg)

		// Fetch the current remote version so the write is keyed to the state
		// we are replacing.
		var version string
		if file, err := client.Pull(ctx); err != nil {
			return fmt.Errorf("failed to check remote before push: %w", err)
		} else if file != nil {
			version = file.Version
		}

		message := pushMessage
		if message == "" {
			message = fmt.Sprintf("credvault sync from %s at %s", cfg.ClientID, time.Now().UTC().Format(time.RFC3339))
		}

		newVersion, err := client.Push(ctx, content, message, version)
		if err != nil {
			var syncErr *syncer.SyncError
			if errors.As(err, &syncErr) && syncErr.IsConflict() {
				return fmt.Errorf("remote changed during push; run 'credvault sync pull' and retry: %w", err)
			}
			return fmt.Errorf("push failed: %w", err)
		}
		if err := st.PutSetting(settingLastVersion, newVersion); err != nil {
			return err
		}

		fmt.Printf("Pushed %d credential(s) (version %s)\n", len(snap.Passwords), newVersion)
		return nil
	},
}
