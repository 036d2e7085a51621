package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/sentry-go/internal/application/permission"
	"github.com/doeshing/sentry-go/internal/domain"
)

func newClassifyCommand(e *env) *cobra.Command {
	var asJSON, static bool
	cmd := &cobra.Command{
		Use:   "classify [command]",
		Short: "Classify a shell command without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			command := strings.Join(args, " ")

			var assessment domain.Assessment
			if static {
				assessment = container.Rules().ClassifyCommand(command, domain.SourceAgentBash)
			} else {
				spinner := NewSpinner(cmd.ErrOrStderr(), "classifying...")
				if container.Config().Model.Enabled() {
					spinner.Start()
				}
				call := domain.ToolCall{ToolName: "bash", Input: map[string]interface{}{"command": command}}
				assessment = container.Handler.Assess(cmd.Context(), call, container.Stores.Session)
				spinner.Stop()
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), assessment)
			}
			renderAssessment(cmd.OutOrStdout(), assessment)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the assessment as JSON")
	cmd.Flags().BoolVar(&static, "static", false, "Use the rule tables only, never the model")
	return cmd
}

func newCheckCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Authorize a tool call read as JSON from stdin",
		Long: "check reads {\"toolName\": ..., \"input\": {...}} from stdin, authorizes it " +
			"against the current level and exits 2 when it is blocked.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var call domain.ToolCall
			if err := decodeStdin(cmd.InOrStdin(), &call); err != nil {
				return fmt.Errorf("read tool call: %w", err)
			}
			if call.ToolName == "" {
				return fmt.Errorf("read tool call: toolName is required")
			}

			container, err := e.start(cmd)
			if err != nil {
				return err
			}
			outcome := container.Handler.OnToolCall(cmd.Context(), call, container.Stores.Session)
			if asJSON {
				if err := printJSON(cmd.OutOrStdout(), outcome); err != nil {
					return err
				}
			} else {
				renderAssessment(cmd.OutOrStdout(), outcome.Assessment)
				renderDecision(cmd.OutOrStdout(), outcome.Decision)
			}
			if !outcome.Decision.Allowed {
				return &ExitError{Code: 2}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the outcome as JSON")
	return cmd
}

func newBashCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "bash [command]",
		Short: "Authorize a command typed by the user",
		Long: "bash authorizes a user-typed command. Nothing is printed when it may run; " +
			"otherwise the failed execution result is printed as JSON and the exit code is 1.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.start(cmd)
			if err != nil {
				return err
			}
			event := domain.BashEvent{Command: strings.Join(args, " ")}
			result, _ := container.Handler.OnUserBash(cmd.Context(), event, container.Stores.Session)
			if result == nil {
				return nil
			}
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			return &ExitError{Code: result.ExitCode}
		},
	}
}

func newPermissionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "permission [level]",
		Short: "Show, pick or set the permission level",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.start(cmd)
			if err != nil {
				return err
			}
			if err := container.Handler.HandlePermissionCommand(cmd.Context(), strings.Join(args, " ")); err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			return nil
		},
	}
}

func newCycleCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Advance to the next permission level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.start(cmd)
			if err != nil {
				return err
			}
			level := container.Handler.Cycle(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), level)
			return nil
		},
	}
}

type statusView struct {
	Level        domain.PermissionLevel `json:"level"`
	Scheme       domain.Scheme          `json:"scheme"`
	Shortcut     string                 `json:"shortcut"`
	Widget       string                 `json:"widget"`
	SystemPrompt string                 `json:"system_prompt"`
}

func newStatusCommand(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current level, the widget text and the prompt suffix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			store := container.Store
			level := store.Init(cmd.Context(), e.opts.PermissionFlag)
			view := statusView{
				Level:        level,
				Scheme:       store.Scheme(),
				Shortcut:     store.Shortcut(),
				Widget:       permission.WidgetText(level, store.Shortcut()),
				SystemPrompt: container.Handler.SystemPromptSuffix(),
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), view)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Level: %s (%s scheme)\n", view.Level.Upper(), view.Scheme)
			fmt.Fprintf(out, "Widget: %s\n", view.Widget)
			fmt.Fprintf(out, "Prompt: %s\n", view.SystemPrompt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func newShortcutCommand(e *env) *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "shortcut [key]",
		Short: "Show or save the cycle shortcut",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.start(cmd)
			if err != nil {
				return err
			}
			line := strings.Join(args, " ")
			if reload {
				line += " --reload"
			}
			shouldReload, err := container.Handler.HandleShortcutCommand(cmd.Context(), line)
			if err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
			if shouldReload {
				return container.Reload(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "Apply the shortcut immediately")
	return cmd
}

func newMessageCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "message [text]",
		Short: "Record a user message for history escalation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := e.get(cmd.Context())
			if err != nil {
				return err
			}
			return container.Handler.RecordUserMessage(cmd.Context(), strings.Join(args, " "))
		},
	}
}

func decodeStdin(in io.Reader, value interface{}) error {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	return dec.Decode(value)
}
