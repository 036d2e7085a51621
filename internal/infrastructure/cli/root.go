package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/doeshing/sentry-go/internal/app"
	"github.com/doeshing/sentry-go/internal/domain"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// ExitError carries a process exit code. An empty message means the
// command already reported the outcome.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Message
}

// ExitCode extracts the exit code for err, defaulting to 1.
func ExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, exitErr.Message == ""
	}
	return 1, false
}

// env builds the container once, after cobra has parsed the persistent
// flags.
type env struct {
	opts     app.Options
	headless bool

	once      sync.Once
	container *app.Container
	err       error
	ui        *TerminalUI
}

func (e *env) get(ctx context.Context) (*app.Container, error) {
	e.once.Do(func() {
		e.container, e.err = app.BuildContainer(ctx, e.opts)
	})
	return e.container, e.err
}

// start builds the container, attaches a UI and restores the level.
func (e *env) start(cmd *cobra.Command) (*app.Container, error) {
	container, err := e.get(cmd.Context())
	if err != nil {
		return nil, err
	}
	if e.ui == nil {
		e.ui = NewTerminalUI(cmd.InOrStdin(), cmd.ErrOrStderr(), e.headless)
	}
	container.Store.SetUI(e.ui)
	container.Start(cmd.Context())
	return container, nil
}

func (e *env) close() {
	if e.ui != nil {
		_ = e.ui.Close()
	}
	if e.container != nil {
		_ = e.container.Close()
	}
}

// NewRootCmd wires the cobra root command.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, error) {
	e := &env{opts: app.Options{Verbose: opts.Verbose, SessionID: os.Getenv(domain.EnvSession)}}

	root := &cobra.Command{
		Use:   "sentry",
		Short: "sentry - permission gate for coding agents",
		Long: "sentry classifies shell commands and agent tool calls by impact and " +
			"authorizes them against the active permission level.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	root.SetContext(ctx)
	if opts.Stdin != nil {
		root.SetIn(opts.Stdin)
	}
	if opts.Stdout != nil {
		root.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		root.SetErr(opts.Stderr)
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.opts.PermissionFlag, "permission-level", "", "Permission level for this run (low|medium|high, or yolo with the yolo scheme)")
	flags.StringVar(&e.opts.ConfigPath, "config", "", "Global config file (default $SENTRY_CONFIG or ~/.sentry/config.json)")
	flags.StringVar(&e.opts.ProjectDir, "project", "", "Project directory holding .sentry/config.json")
	flags.StringVar(&e.opts.SessionID, "session", e.opts.SessionID, "Session id for the level and message log")
	flags.BoolVar(&e.headless, "headless", false, "Never prompt; block anything above the level")
	flags.BoolVarP(&e.opts.Verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(
		newClassifyCommand(e),
		newCheckCommand(e),
		newBashCommand(e),
		newPermissionCommand(e),
		newCycleCommand(e),
		newStatusCommand(e),
		newShortcutCommand(e),
		newMessageCommand(e),
		newHistoryCommand(e),
		newConfigCommand(e),
		newCacheCommand(e),
		newDoctorCommand(e),
		newServeCommand(e),
		newMCPCommand(e),
		newVersionCommand(),
	)
	return root, nil
}
