package cli

import (
	"github.com/spf13/cobra"

	"github.com/doeshing/sentry-go/internal/app"
	"github.com/doeshing/sentry-go/internal/infrastructure/mcpserver"
	"github.com/doeshing/sentry-go/internal/infrastructure/transport/httpapi"
	"github.com/doeshing/sentry-go/internal/infrastructure/transport/jsonl"
	"github.com/doeshing/sentry-go/internal/version"
)

// newServeCommand runs the engine for a long-lived host, over JSONL on
// stdio by default or as an HTTP API. Config edits are picked up live.
func newServeCommand(e *env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve permission decisions to a host (JSONL on stdio, or HTTP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e.ensureSession()
			container, err := e.get(ctx)
			if err != nil {
				return err
			}
			container.Start(ctx)
			if err := container.Watch(ctx); err != nil {
				container.Logger.Warn("config watcher unavailable", map[string]interface{}{"error": err.Error()})
			}

			if addr != "" {
				cfg := httpapi.DefaultConfig()
				cfg.Addr = addr
				return httpapi.New(cfg, container.Handler, container.Stores.Session, container.Logger).Run(ctx)
			}

			server := &jsonl.Server{
				Handler:      container.Handler,
				Conversation: container.Stores.Session,
				Events:       container.Events,
				Reload:       container.Reload,
				Interactive:  !e.headless,
				Logger:       container.Logger,
			}
			return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "Listen address for the HTTP API (e.g. 127.0.0.1:7878)")
	return cmd
}

// newMCPCommand serves the engine as MCP tools over stdio.
func newMCPCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve classification and authorization as MCP tools on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e.ensureSession()
			container, err := e.get(ctx)
			if err != nil {
				return err
			}
			container.Start(ctx)
			if err := container.Watch(ctx); err != nil {
				container.Logger.Warn("config watcher unavailable", map[string]interface{}{"error": err.Error()})
			}
			return mcpserver.Serve(mcpserver.NewServer(container.Handler, container.Stores.Session, version.Version))
		},
	}
}

// ensureSession gives a long-lived server its own session when none was
// named. One-shot commands share the default session so that a message
// recorded by one run is seen by the next.
func (e *env) ensureSession() {
	if e.opts.SessionID == "" {
		e.opts.SessionID = app.NewSessionID()
	}
}
