// Package mcptest runs a scripted MCP server inside a re-executed test
// binary, so dispatcher code can be tested against a real child process.
//
// A test package opts in with
//
//	func TestHelperProcess(t *testing.T) { mcptest.RunIfHelper() }
//
// and points the dispatcher at mcptest.Command("TestHelperProcess").
package mcptest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const (
	HelperEnv = "MCPTEST_HELPER"
	ModeEnv   = "MCPTEST_MODE"
	// CallLogEnv names a file that receives one JSON line per tools/call.
	CallLogEnv = "MCPTEST_CALL_LOG"

	RPCErrorMessage  = "object_not_found: Could not find page with ID: abc123."
	ToolErrorMessage = `{"object":"error","status":400,"code":"validation_error","message":"body failed validation"}`
	StderrMessage    = "docker: Error response from daemon: pull access denied for mcp/notion."
)

type Mode string

const (
	ModeCanned     Mode = "canned"
	ModeEcho       Mode = "echo"
	ModeHeaders    Mode = "headers"
	ModeRPCError   Mode = "rpc-error"
	ModeToolError  Mode = "tool-error"
	ModeSilentExit Mode = "silent-exit"
	ModeGarbage    Mode = "garbage"
	ModeHang       Mode = "hang"
	ModeNotion     Mode = "notion"
	ModeRaw        Mode = "raw"
)

// RawResult is what every tools/call returns in ModeRaw. It carries fields
// the protocol package does not model and must come back byte for byte.
const RawResult = `{"content":[{"type":"text","text":"hi","annotations":{"audience":["user"],"priority":0.5}},` +
	`{"type":"resource","resource":{"uri":"notion://page/abc123","mimeType":"text/markdown","text":"body"}}],` +
	`"structuredContent":{"object":"page","id":"abc123"},"_meta":{"requestId":"r-1"}}`

// CannedResult is what every tools/call returns in ModeCanned.
var CannedResult = protocol.CallToolResult{
	Content: []protocol.Content{
		{Type: "text", Text: `{"object":"list","results":[{"object":"database","id":"c7698cc3-bd7e-4e1a-afde-2ed85ab3d9a7"}],"has_more":false}`},
		{Type: "text", Text: "Zwei Datenbanken gefunden ✓"},
		{Type: "image", Data: "iVBORw0KGgo=", MimeType: "image/png"},
	},
}

var ServerInfo = protocol.Implementation{Name: "mock-notion-mcp", Version: "0.0.1"}

// Command re-executes the running test binary, limited to the named test.
func Command(testName string) []string {
	return []string{os.Args[0], "-test.run=^" + testName + "$", "--"}
}

// Setup switches the helper process on for the duration of t.
func Setup(t testing.TB, mode Mode) {
	t.Helper()
	t.Setenv(HelperEnv, "1")
	t.Setenv(ModeEnv, string(mode))
}

// RunIfHelper serves on stdio and exits when the process was started by
// Command; otherwise it returns immediately.
func RunIfHelper() {
	if os.Getenv(HelperEnv) != "1" {
		return
	}
	os.Exit(Serve(Mode(os.Getenv(ModeEnv)), os.Stdin, os.Stdout))
}

// Serve blocks until in is closed and returns the exit code.
func Serve(mode Mode, in io.ReadCloser, out io.WriteCloser) int {
	switch mode {
	case ModeSilentExit:
		fmt.Fprintln(os.Stderr, StderrMessage)
		return 1
	case ModeGarbage:
		fmt.Fprintln(out, "this is not json-rpc")
		io.Copy(io.Discard, in)
		return 0
	case ModeHang:
		io.Copy(io.Discard, in)
		return 0
	}

	s := &server{mode: mode, logPath: os.Getenv(CallLogEnv)}
	stream := jsonrpc2.NewPlainObjectStream(&stdio{in: in, out: out})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle).SuppressErrClosed())
	<-conn.DisconnectNotify()
	return 0
}

type stdio struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s *stdio) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s *stdio) Close() error {
	s.in.Close()
	return s.out.Close()
}

type server struct {
	mode    Mode
	logPath string
	mu      sync.Mutex
}

func (s *server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return protocol.InitializeResult{
			ProtocolVersion: protocol.Version,
			Capabilities: map[string]json.RawMessage{
				"tools": json.RawMessage(`{}`),
			},
			ServerInfo: &ServerInfo,
		}, nil

	case protocol.MethodInitialized:
		return nil, nil

	case protocol.MethodToolsList:
		return protocol.ListToolsResult{Tools: Tools}, nil

	case protocol.MethodResourcesList:
		if s.mode == ModeNotion {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not found"}
		}
		return protocol.ListResourcesResult{Resources: []protocol.Resource{}}, nil

	case protocol.MethodPromptsList:
		return protocol.ListPromptsResult{Prompts: []protocol.Prompt{}}, nil

	case protocol.MethodToolsCall:
		var params protocol.CallToolParams
		if req.Params == nil || json.Unmarshal(*req.Params, &params) != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "invalid tools/call params"}
		}
		s.record(params)
		return s.callTool(params)
	}

	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not found: " + req.Method}
}

func (s *server) callTool(params protocol.CallToolParams) (interface{}, error) {
	switch s.mode {
	case ModeCanned:
		return CannedResult, nil
	case ModeEcho:
		return EchoResult(params), nil
	case ModeHeaders:
		return TextResult(os.Getenv("OPENAPI_MCP_HEADERS")), nil
	case ModeRPCError:
		return nil, &jsonrpc2.Error{Code: -32603, Message: RPCErrorMessage}
	case ModeToolError:
		return protocol.CallToolResult{
			IsError: true,
			Content: []protocol.Content{{Type: "text", Text: ToolErrorMessage}},
		}, nil
	case ModeNotion:
		return notionTool(params)
	case ModeRaw:
		return json.RawMessage(RawResult), nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "unknown mock mode " + string(s.mode)}
}

func (s *server) record(params protocol.CallToolParams) {
	if s.logPath == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	json.NewEncoder(f).Encode(params)
}

// EchoResult is what ModeEcho answers to params.
func EchoResult(params protocol.CallToolParams) protocol.CallToolResult {
	b, _ := json.Marshal(map[string]interface{}{
		"tool":      params.Name,
		"arguments": params.Arguments,
	})
	return TextResult(string(b))
}

func TextResult(text string) protocol.CallToolResult {
	return protocol.CallToolResult{Content: []protocol.Content{{Type: "text", Text: text}}}
}

// ReadCallLog returns the tools/call parameters recorded at path, in order.
func ReadCallLog(t testing.TB, path string) []protocol.CallToolParams {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open call log: %v", err)
	}
	defer f.Close()

	var calls []protocol.CallToolParams
	dec := json.NewDecoder(f)
	for {
		var p protocol.CallToolParams
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode call log: %v", err)
		}
		calls = append(calls, p)
	}
	return calls
}
