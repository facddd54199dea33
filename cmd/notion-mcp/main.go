package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alucardeht/notion-mcp/internal/mcp"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitConfiguration = 2
	exitTransport     = 3
	exitProtocol      = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, newApp(os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, a *app, args []string) int {
	cmd := a.rootCmd()
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case mcp.IsConfiguration(err):
		return exitConfiguration
	case mcp.IsTransport(err):
		return exitTransport
	case mcp.IsProtocol(err):
		return exitProtocol
	}
	return exitFailure
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr}
}
