package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

// Dispatcher starts a fresh server process for every session. It holds no
// state besides its configuration.
type Dispatcher struct {
	config Config
	log    *slog.Logger
}

// New fails with a *ConfigurationError when cfg cannot possibly work, so
// callers learn about a missing token before anything is spawned.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.NotionVersion == "" {
		cfg.NotionVersion = DefaultNotionVersion
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		config: cfg,
		log:    log.With("component", "dispatcher"),
	}, nil
}

func (d *Dispatcher) Config() Config {
	return d.config
}

// Dispatch runs one tool call against a server process of its own.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*protocol.CallToolResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	return session.CallTool(ctx, req)
}

// Open starts the server and completes the initialize handshake.
func (d *Dispatcher) Open(ctx context.Context) (*Session, error) {
	env := ServerEnv(os.Environ(), d.config.Token, d.config.NotionVersion)
	proc := NewProcess(d.config.Command, env, d.config.ShutdownGrace, d.config.Token, d.log)

	if err := proc.Start(ctx); err != nil {
		return nil, err
	}

	s := &Session{
		proc:   proc,
		client: NewClient(ctx, proc.Stdin(), proc.Stdout(), d.config.Timeout, d.log),
		log:    d.log,
	}

	server, err := s.client.Initialize(ctx, d.config.ClientInfo)
	if err != nil {
		err = s.annotate(err)
		s.Close()
		return nil, err
	}
	s.server = *server

	name := ""
	if server.ServerInfo != nil {
		name = server.ServerInfo.Name
	}
	d.log.Debug("connected", "server", name, "protocol", server.ProtocolVersion)

	return s, nil
}

// Session is one initialized connection to one server process.
type Session struct {
	proc   *Process
	client *Client
	server protocol.InitializeResult
	log    *slog.Logger
}

func (s *Session) Server() protocol.InitializeResult {
	return s.server
}

// CallTool invokes req. A result flagged isError is reported as a
// *ProtocolError carrying the tool's text.
func (s *Session) CallTool(ctx context.Context, req Request) (*protocol.CallToolResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result, err := s.client.CallTool(ctx, req.Params())
	if err != nil {
		return nil, s.annotate(err)
	}
	if result.IsError {
		msg := strings.TrimSpace(result.Text())
		if msg == "" {
			msg = "tool reported an error"
		}
		return result, &ProtocolError{Method: protocol.MethodToolsCall + " " + req.Tool, Message: msg}
	}
	return result, nil
}

func (s *Session) ListTools(ctx context.Context) (*protocol.ListToolsResult, error) {
	result, err := s.client.ListTools(ctx)
	return result, s.annotate(err)
}

func (s *Session) ListResources(ctx context.Context) (*protocol.ListResourcesResult, error) {
	result, err := s.client.ListResources(ctx)
	return result, s.annotate(err)
}

func (s *Session) ListPrompts(ctx context.Context) (*protocol.ListPromptsResult, error) {
	result, err := s.client.ListPrompts(ctx)
	return result, s.annotate(err)
}

// Close ends the stream and stops the server process.
func (s *Session) Close() error {
	cerr := s.client.Close()
	if errors.Is(cerr, ErrSessionClosed) {
		return nil
	}

	var result *multierror.Error
	if cerr != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close stream: %w", cerr))
	}
	if perr := s.proc.Stop(); perr != nil {
		result = multierror.Append(result, fmt.Errorf("failed to stop server: %w", perr))
	}
	return result.ErrorOrNil()
}

// annotate attaches the server's stderr to transport failures; it is
// usually the only explanation for a server that died. The session is
// unusable after such a failure, and stopping the server first lets its
// stderr drain completely.
func (s *Session) annotate(err error) error {
	var te *TransportError
	if !errors.As(err, &te) {
		return err
	}
	s.Close()
	if te.Stderr == "" {
		te.Stderr = s.proc.Stderr()
	}
	return err
}
