package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alucardeht/notion-mcp/internal/config"
	"github.com/alucardeht/notion-mcp/internal/logger"
	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/internal/render"
)

// app carries what every subcommand needs once the root command has
// resolved configuration.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// serverCommand replaces the configured server command when set.
	serverCommand []string

	configFile string
	viper      *viper.Viper
	cfg        *config.Config
	log        *slog.Logger
	format     render.Format
	dispatcher *mcp.Dispatcher
}

func (a *app) rootCmd() *cobra.Command {
	a.viper = config.NewViper()

	cmd := &cobra.Command{
		Use:   "notion-mcp",
		Short: "Talk to a Notion workspace through the Notion MCP server",
		Long: `notion-mcp starts the Notion MCP server in a container, sends it one or more
tool calls over stdio and prints the responses.

The integration token is read from NOTION_TOKEN and handed to the server
through its environment only.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default $HOME/.notion-mcp.yaml)")
	flags.Duration("timeout", 0, "per-call timeout (default 60s)")
	flags.String("image", "", "Notion MCP server image (default mcp/notion)")
	flags.StringP("output", "o", "json", "output format: json or text")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")

	cmd.AddCommand(
		a.databasesCmd(),
		a.queryCmd(),
		a.updatePageCmd(),
		a.capabilitiesCmd(),
		a.workspaceCmd(),
		a.findPageCmd(),
	)
	return cmd
}

// setup resolves configuration and validates it before any subcommand can
// start the server.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := config.BindFlags(a.viper, cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.viper, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &mcp.ConfigurationError{Key: config.KeyLogLevel, Message: err.Error()}
	}
	format, err := logger.ParseFormat(cfg.LogFormat)
	if err != nil {
		return &mcp.ConfigurationError{Key: config.KeyLogFormat, Message: err.Error()}
	}
	logger.Init(logger.Config{Level: level, Format: format, Output: a.stderr})
	a.log = logger.With("run", cfg.RunID)
	if cfg.File != "" {
		a.log.Debug("loaded config", "file", cfg.File)
	}

	a.format, err = render.ParseFormat(cfg.Output)
	if err != nil {
		return &mcp.ConfigurationError{Key: config.KeyOutput, Message: err.Error()}
	}

	mc := cfg.MCPConfig(a.log)
	if a.serverCommand != nil {
		mc.Command = a.serverCommand
	}
	a.dispatcher, err = mcp.New(mc)
	return err
}

// withSession runs fn against a freshly started server and stops it
// afterwards.
func (a *app) withSession(ctx context.Context, fn func(*mcp.Session) error) error {
	session, err := a.dispatcher.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.log.Debug("stopping server", "error", cerr)
		}
	}()
	return fn(session)
}

func (a *app) printJSON(v interface{}) error {
	if err := render.JSON(a.stdout, v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
