package cli

import (
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	configapp "github.com/doeshing/sentry-go/internal/application/config"
	"github.com/doeshing/sentry-go/internal/domain"
)

const (
	msgConfigurationValid       = "Configuration valid"
	msgNoDifferencesFromDefault = "No differences from default configuration."
)

// newConfigCommand creates the config command with all subcommands
func newConfigCommand(e *env) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the layered sentry configuration",
	}

	configCmd.AddCommand(
		newConfigShowCommand(e),
		newConfigPathCommand(e),
		newConfigInitCommand(e),
		newConfigValidateCommand(e),
		newConfigDiffCommand(e),
	)
	return configCmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), container.Config())
		},
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "List the config layers in merge order",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			for _, layer := range container.ConfigLoader.Layers() {
				state := "missing"
				switch {
				case layer.Err != nil:
					state = "invalid: " + layer.Err.Error()
				case layer.Exists:
					state = "loaded"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s (%s)\n", layer.Name, layer.Path, state)
			}
			return nil
		},
	}
}

// newConfigInitCommand creates the 'config init' subcommand
func newConfigInitCommand(e *env) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default global config and an example rules file",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			loader := container.ConfigLoader
			written, err := loader.InitGlobal(force)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			reportInit(cmd.OutOrStdout(), "Config", loader.GlobalPath(), written)

			written, err = loader.InitRules(force)
			if err != nil {
				return fmt.Errorf("write rules: %w", err)
			}
			reportInit(cmd.OutOrStdout(), "Rules", loader.RulesPath(), written)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// newConfigValidateCommand creates the 'config validate' subcommand
func newConfigValidateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the merged configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			for _, layer := range container.ConfigLoader.Layers() {
				if layer.Err != nil {
					return &ExitError{Code: 1, Message: fmt.Sprintf("%s layer %s: %v", layer.Name, layer.Path, layer.Err)}
				}
			}
			if err := configapp.Validate(container.Config()); err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgConfigurationValid)
			return nil
		},
	}
}

// newConfigDiffCommand creates the 'config diff' subcommand
func newConfigDiffCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show how the merged configuration differs from the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			diff := cmp.Diff(domain.DefaultConfig(), container.Config())
			if diff == "" {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoDifferencesFromDefault)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "(-default +current)")
			fmt.Fprint(cmd.OutOrStdout(), diff)
			return nil
		},
	}
}

func reportInit(out io.Writer, what, path string, written bool) {
	if !written {
		fmt.Fprintf(out, "%s already exists at %s (use --force to overwrite)\n", what, path)
		return
	}
	fmt.Fprintf(out, "Wrote %s\n", path)
}
