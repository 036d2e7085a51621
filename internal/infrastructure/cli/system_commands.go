package cli

import (
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/version"
)

// ============================================================================
// Version Command
// ============================================================================

// newVersionCommand creates the version command to display version information.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show sentry version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return displayVersionInformation(cmd.OutOrStdout())
		},
	}
}

func displayVersionInformation(out io.Writer) error {
	fmt.Fprintf(out, "sentry version %s\n", version.Version)
	if version.Commit != "" {
		fmt.Fprintf(out, "Commit: %s\n", version.Commit)
	}
	if version.BuildDate != "" {
		fmt.Fprintf(out, "Built: %s\n", version.BuildDate)
	}
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	return nil
}

// ============================================================================
// Doctor Command
// ============================================================================

// newDoctorCommand creates the doctor command to diagnose the setup.
func newDoctorCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config layers, rules, model access and history",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			report, err := container.Doctor.Run(cmd.Context())

			// Display report even if there were errors
			renderHealthReport(cmd.OutOrStdout(), report)

			if err != nil {
				return fmt.Errorf("diagnostics completed with errors: %w", err)
			}
			for _, check := range report.Checks {
				if check.Status == domain.HealthError {
					return &ExitError{Code: 1}
				}
			}
			return nil
		},
	}
}

// ============================================================================
// Cache Command
// ============================================================================

const msgNoCachedClassifications = "No cached classifications."

// newCacheCommand creates the cache command with all subcommands
func newCacheCommand(e *env) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached model classifications",
	}

	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached classifications",
			RunE: func(cmd *cobra.Command, args []string) error {
				container, err := e.get(cmd.Context())
				if err != nil {
					return err
				}
				entries := container.Cache.Entries()
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), msgNoCachedClassifications)
					return nil
				}
				sort.Slice(entries, func(i, j int) bool {
					return entries[i].CreatedAt.After(entries[j].CreatedAt)
				})
				for _, entry := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s | %-6s | %s\n",
						entry.CreatedAt.Format(domain.TimestampFormat), entry.Level, entry.Key)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d/%d entries\n", container.Cache.Len(), container.Cache.Capacity())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget every cached classification",
			RunE: func(cmd *cobra.Command, args []string) error {
				container, err := e.get(cmd.Context())
				if err != nil {
					return err
				}
				if err := container.Cache.Clear(); err != nil {
					return fmt.Errorf("clear cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			},
		},
	)
	return cacheCmd
}
