package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Rajat083/Internship-Recommender/internal/auth/apikey"
	"github.com/Rajat083/Internship-Recommender/pkg/postgres"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage admin api keys stored in PostgreSQL",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin key and print it once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		return withKeyStore(cmd, func(ctx context.Context, store *apikey.Store) error {
			raw, info, err := store.CreateKey(ctx, name, ttl)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:   %s\nname: %s\nkey:  %s\n", info.ID, info.Name, raw)
			if info.ExpiresAt != nil {
				fmt.Fprintf(out, "expires: %s\n", info.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintln(out, "store the key now; it cannot be shown again")
			return nil
		})
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active admin keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withKeyStore(cmd, func(ctx context.Context, store *apikey.Store) error {
			keys, err := store.ListKeys(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCREATED\tEXPIRES\tLAST USED")
			for _, k := range keys {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt.Format(time.RFC3339), formatTime(k.ExpiresAt), formatTime(k.LastUsedAt))
			}
			return tw.Flush()
		})
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an admin key by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withKeyStore(cmd, func(ctx context.Context, store *apikey.Store) error {
			if err := store.RevokeKey(ctx, args[0]); err != nil {
				return fmt.Errorf("revoking key %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key %s revoked\n", args[0])
			return nil
		})
	},
}

func withKeyStore(cmd *cobra.Command, fn func(ctx context.Context, store *apikey.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	store := apikey.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return fn(ctx, store)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func init() {
	keysCreateCmd.Flags().String("name", "operator", "label for the key")
	keysCreateCmd.Flags().Duration("ttl", 0, "lifetime of the key (0 never expires)")
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)
	rootCmd.AddCommand(keysCmd)
}
