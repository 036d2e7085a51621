package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/doeshing/sentry-go/internal/domain"
	"github.com/doeshing/sentry-go/internal/infrastructure/cli"
)

func main() {
	// A missing .env is fine; real environment variables always win.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := cli.Options{Verbose: isVerbose()}

	root, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := root.ExecuteContext(ctx); err != nil {
		code, silent := cli.ExitCode(err)
		if !silent {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(code)
	}
}

func isVerbose() bool {
	value := os.Getenv(domain.EnvDebug)
	return strings.EqualFold(value, "1") || strings.EqualFold(value, "true")
}
