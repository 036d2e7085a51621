package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/infrastructure/history"
)

const msgNoDecisionsRecorded = "No decisions recorded yet."

// newHistoryCommand creates the history command with all subcommands
func newHistoryCommand(e *env) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the authorization audit trail",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(e),
		newHistoryStatsCommand(e),
		newHistoryClearCommand(e),
		newHistoryExportCommand(e),
	)
	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(e *env) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent decisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			records, err := container.Stores.Decisions.Records(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read decisions: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoDecisionsRecorded)
				return nil
			}
			renderRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max decisions to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the decisions as JSON")
	return cmd
}

// newHistoryStatsCommand creates the 'history stats' subcommand
func newHistoryStatsCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show allow/block counts per impact level",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := container.Stores.Decisions.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("read decision stats: %w", err)
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

// newHistoryClearCommand creates the 'history clear' subcommand
func newHistoryClearCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			if err := container.Stores.Decisions.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear decisions: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

// newHistoryExportCommand creates the 'history export' subcommand
func newHistoryExportCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: "Export decisions as JSONL (stdout when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := history.Export(cmd.Context(), container.Stores.Decisions, cmd.OutOrStdout())
				return err
			}

			file, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, domain.SecureFilePermissions)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer file.Close()
			count, err := history.Export(cmd.Context(), container.Stores.Decisions, file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d decisions to %s\n", count, args[0])
			return nil
		},
	}
}
