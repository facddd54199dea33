package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/notion-mcp/internal/logger"
	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

// Client speaks line-delimited JSON-RPC 2.0 to a server on the other end of
// a pair of pipes.
type Client struct {
	conn     *jsonrpc2.Conn
	stream   *watchedStream
	timeout  time.Duration
	nextID   uint64
	log      *slog.Logger
	closedCh chan struct{}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// watchedStream remembers the first read failure so that a connection torn
// down by undecodable output can be told apart from one that simply ended.
type watchedStream struct {
	jsonrpc2.ObjectStream

	mu      sync.Mutex
	readErr error
}

func (s *watchedStream) ReadObject(v interface{}) error {
	err := s.ObjectStream.ReadObject(v)
	if err != nil {
		s.mu.Lock()
		if s.readErr == nil {
			s.readErr = err
		}
		s.mu.Unlock()
	}
	return err
}

func (s *watchedStream) decodeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if isDecodeFailure(s.readErr) {
		return s.readErr
	}
	return nil
}

func isDecodeFailure(err error) bool {
	if err == nil {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}
	return strings.HasPrefix(err.Error(), "jsonrpc2:")
}

func NewClient(ctx context.Context, stdin io.WriteCloser, stdout io.ReadCloser, timeout time.Duration, log *slog.Logger) *Client {
	rwc := &stdioReadWriteCloser{
		reader: stdout,
		writer: stdin,
	}

	c := &Client{
		stream:   &watchedStream{ObjectStream: jsonrpc2.NewPlainObjectStream(rwc)},
		timeout:  timeout,
		log:      log,
		closedCh: make(chan struct{}),
	}
	c.conn = jsonrpc2.NewConn(ctx, c.stream, &clientHandler{log: log}, jsonrpc2.SetLogger(logger.Printf{L: log}))

	return c
}

type clientHandler struct {
	log *slog.Logger
}

func (h *clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		h.log.Debug("server notification", "method", req.Method)
		return
	}
	h.log.Debug("rejecting server request", "method", req.Method)
	conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: "method not supported by client: " + req.Method,
	})
}

func (c *Client) Initialize(ctx context.Context, info protocol.Implementation) (*protocol.InitializeResult, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.Version,
		Capabilities:    map[string]interface{}{},
		ClientInfo:      info,
	}

	var result protocol.InitializeResult
	if err := c.call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, err
	}

	if err := c.conn.Notify(ctx, protocol.MethodInitialized, struct{}{}); err != nil {
		return nil, c.classify(ctx, ctx, protocol.MethodInitialized, err)
	}

	return &result, nil
}

func (c *Client) CallTool(ctx context.Context, params protocol.CallToolParams) (*protocol.CallToolResult, error) {
	var result protocol.CallToolResult
	if err := c.call(ctx, protocol.MethodToolsCall, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListTools(ctx context.Context) (*protocol.ListToolsResult, error) {
	var result protocol.ListToolsResult
	if err := c.call(ctx, protocol.MethodToolsList, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListResources(ctx context.Context) (*protocol.ListResourcesResult, error) {
	var result protocol.ListResourcesResult
	if err := c.call(ctx, protocol.MethodResourcesList, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListPrompts(ctx context.Context) (*protocol.ListPromptsResult, error) {
	var result protocol.ListPromptsResult
	if err := c.call(ctx, protocol.MethodPromptsList, struct{}{}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	callCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	id := atomic.AddUint64(&c.nextID, 1)
	c.log.Debug("request", "id", id, "method", method)

	err := c.conn.Call(callCtx, method, params, result, jsonrpc2.PickID(jsonrpc2.ID{Num: id}))
	if err != nil {
		return c.classify(ctx, callCtx, method, err)
	}
	return nil
}

// classify maps whatever jsonrpc2 returned onto the transport/protocol split.
func (c *Client) classify(ctx, callCtx context.Context, method string, err error) error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		pe := &ProtocolError{Method: method, Code: rpcErr.Code, Message: rpcErr.Message}
		if rpcErr.Data != nil {
			pe.Data = []byte(*rpcErr.Data)
		}
		return pe
	}

	if decodeErr := c.stream.decodeErr(); decodeErr != nil {
		return &ProtocolError{Method: method, Message: "invalid JSON-RPC response: " + decodeErr.Error()}
	}

	if ctx.Err() != nil {
		return &TransportError{Op: method, Err: ctx.Err()}
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &TransportError{Op: method, Err: ErrTimeout}
	}

	if errors.Is(err, jsonrpc2.ErrClosed) {
		return &TransportError{Op: method, Err: ErrStreamClosed}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Method: method, Message: "malformed result: " + err.Error()}
	}

	return &TransportError{Op: method, Err: err}
}

func (c *Client) Close() error {
	select {
	case <-c.closedCh:
		return ErrSessionClosed
	default:
		close(c.closedCh)
	}

	err := c.conn.Close()
	if errors.Is(err, jsonrpc2.ErrClosed) {
		return nil
	}
	return err
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
