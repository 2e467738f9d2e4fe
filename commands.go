package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}
			version, err := store.SchemaVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair pairs whose mutual flags disagree",
		Long: `Scan the action ledger for split pairs, where one record is flagged
mutual and its reverse is not. Pairs where both users liked each other are
healed; all others have the stray flag cleared. No match events are sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			engine := matching.New(store, nil, nil, matching.Options{
				StorageTimeout: opts.cfg.Storage.Timeout,
				MaxRetries:     retriesOption(opts.cfg.Storage.MaxRetries),
			})
			report, err := engine.Reconcile(ctx)
			if err != nil {
				return err
			}
			logging.Info().
				Int("scanned", report.Scanned).
				Int("healed", report.Healed).
				Int("cleared", report.Cleared).
				Int("skipped", report.Skipped).
				Msg("reconciliation finished")
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newScoreCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score <userA> <userB>",
		Short: "Print the compatibility of two users",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			src, err := openProfileSource(ctx, opts.cfg, store)
			if err != nil {
				return err
			}
			c, err := matching.New(store, src, nil, matching.Options{}).Compatibility(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
