package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/internal/mcp/mcptest"
	"github.com/alucardeht/notion-mcp/internal/notion"
	"github.com/alucardeht/notion-mcp/internal/render"
	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const testToken = "secret_0123456789abcdef"

func TestHelperProcess(t *testing.T) {
	mcptest.RunIfHelper()
}

var configEnv = []string{
	"NOTION_TOKEN",
	"NOTION_MCP_RUNTIME",
	"NOTION_MCP_IMAGE",
	"NOTION_MCP_COMMAND",
	"NOTION_MCP_TIMEOUT",
	"NOTION_VERSION",
	"NOTION_MCP_LOG_LEVEL",
	"NOTION_MCP_LOG_FORMAT",
}

type harness struct {
	app    *app
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, mode mcptest.Mode) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, env := range configEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
	t.Setenv("NOTION_TOKEN", testToken)
	t.Setenv("NOTION_MCP_TIMEOUT", "10s")
	mcptest.Setup(t, mode)

	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = newApp(h.stdout, h.stderr)
	h.app.serverCommand = mcptest.Command("TestHelperProcess")
	return h
}

func (h *harness) run(args ...string) int {
	return run(context.Background(), h.app, args)
}

var allCommands = [][]string{
	{"databases"},
	{"databases", "--inspect"},
	{"query", "--id", mcptest.TicketsDatabaseID},
	{"update-page", "--id", mcptest.CurrentTicketsID, "--title", "New Title", "--description", "New description"},
	{"capabilities"},
	{"workspace"},
	{"find-page", "--database", mcptest.TicketsDatabaseID},
}

func TestMissingTokenFailsBeforeSpawning(t *testing.T) {
	for _, args := range allCommands {
		t.Run(args[0], func(t *testing.T) {
			h := newHarness(t, mcptest.ModeNotion)
			os.Unsetenv("NOTION_TOKEN")
			// Spawning this would fail with a transport error instead.
			h.app.serverCommand = []string{filepath.Join(t.TempDir(), "no-such-server")}

			code := h.run(args...)

			assert.Equal(t, exitConfiguration, code)
			assert.Contains(t, h.stderr.String(), "NOTION_TOKEN")
			assert.Empty(t, h.stdout.String())
		})
	}
}

func TestDatabasesPrintsResponse(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("databases"), h.stderr.String())

	var result protocol.CallToolResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &result))
	page, err := notion.DecodeResults(&result)
	require.NoError(t, err)
	dbs, err := notion.DecodeDatabases(page)
	require.NoError(t, err)
	require.Len(t, dbs, 2)
	assert.Equal(t, mcptest.TicketsDatabaseID, dbs[0].ID)
}

func TestDatabasesInspectText(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("databases", "--inspect", "-o", "text"), h.stderr.String())

	out := h.stdout.String()
	assert.Contains(t, out, "1. Refined Tickets  [candidate]\n")
	assert.Contains(t, out, "   Entries: 3\n")
	assert.Contains(t, out, "2. Reading List\n")
	assert.Contains(t, out, "     - Status (status)\n")
}

func TestDatabasesInspectTranscript(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("databases", "--inspect", "--keywords", "reading"), h.stderr.String())

	var transcript render.Transcript
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &transcript))
	require.Len(t, transcript.Exchanges, 2)
	assert.Equal(t, notion.ToolSearch, transcript.Exchanges[0].Tool)
	assert.Equal(t, notion.ToolQueryDatabase, transcript.Exchanges[1].Tool)
	assert.Equal(t, mcptest.ReadingDatabaseID, transcript.Exchanges[1].Arguments["database_id"])
}

func TestQueryText(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	code := h.run("query", "--id", mcptest.TicketsDatabaseID, "--page-size", "2", "--output", "text")
	require.Equal(t, exitOK, code, h.stderr.String())

	want := "Entries: 2+\n" +
		"  Current Tickets [In progress]\n" +
		"    ID: " + mcptest.CurrentTicketsID + "\n" +
		"  Backlog [Not started]\n" +
		"    ID: " + mcptest.BacklogPageID + "\n"
	assert.Equal(t, want, h.stdout.String())
}

func TestUpdatePageSendsExpandedCalls(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)
	callLog := filepath.Join(t.TempDir(), "calls.jsonl")
	t.Setenv(mcptest.CallLogEnv, callLog)

	code := h.run("update-page", "--id", mcptest.CurrentTicketsID, "--title", "New Title", "--description", "New description")
	require.Equal(t, exitOK, code, h.stderr.String())

	want, err := notion.Expand(notion.UpdatePage(mcptest.CurrentTicketsID, "New Title", "New description"))
	require.NoError(t, err)

	calls := mcptest.ReadCallLog(t, callLog)
	require.Len(t, calls, len(want))
	for i, call := range calls {
		assert.Equal(t, want[i].Tool, call.Name)
		if diff := cmp.Diff(want[i].Arguments, call.Arguments); diff != "" {
			t.Errorf("call %d arguments mismatch (-want +got):\n%s", i, diff)
		}
	}

	var transcript render.Transcript
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &transcript))
	require.Len(t, transcript.Exchanges, 2)
	assert.False(t, transcript.Exchanges[0].Result.IsError)
}

func TestUpdatePageTitleOnly(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)
	callLog := filepath.Join(t.TempDir(), "calls.jsonl")
	t.Setenv(mcptest.CallLogEnv, callLog)

	code := h.run("update-page", "--id", mcptest.CurrentTicketsID, "--title", "Only Title", "-o", "text")
	require.Equal(t, exitOK, code, h.stderr.String())

	calls := mcptest.ReadCallLog(t, callLog)
	require.Len(t, calls, 1)
	assert.Equal(t, notion.ToolPatchPage, calls[0].Name)
	assert.Equal(t, "Title updated.\n", h.stdout.String())
}

func TestUpdatePageReportsAppliedTitle(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	code := h.run("update-page", "--id", mcptest.CurrentTicketsID, "--title", "New Title", "--description", mcptest.RejectedDescription)
	assert.Equal(t, exitProtocol, code)

	var transcript render.Transcript
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &transcript), h.stdout.String())
	require.Len(t, transcript.Exchanges, 1)
	assert.Equal(t, notion.ToolPatchPage, transcript.Exchanges[0].Tool)

	stderr := h.stderr.String()
	assert.Contains(t, stderr, "API-patch-block-children failed after API-patch-page succeeded")
	assert.Contains(t, stderr, "validation_error")
}

func TestUpdatePageReportsAppliedTitleText(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	code := h.run("update-page", "--id", mcptest.CurrentTicketsID, "--title", "New Title", "--description", mcptest.RejectedDescription, "-o", "text")
	assert.Equal(t, exitProtocol, code)
	assert.Equal(t, "Title updated.\n", h.stdout.String())
}

func TestQueryPrintsResultAsSent(t *testing.T) {
	h := newHarness(t, mcptest.ModeRaw)

	require.Equal(t, exitOK, h.run("query", "--id", mcptest.TicketsDatabaseID), h.stderr.String())
	assert.JSONEq(t, mcptest.RawResult, h.stdout.String())
}

func TestCapabilitiesText(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("capabilities", "-o", "text"), h.stderr.String())

	out := h.stdout.String()
	assert.Contains(t, out, "Server: mock-notion-mcp 0.0.1\n")
	assert.Contains(t, out, fmt.Sprintf("Tools (%d)\n", len(mcptest.Tools)))
	assert.Contains(t, out, "  Users (2)\n")
	assert.Contains(t, out, "Resources: not supported\n")
	assert.Contains(t, out, "Prompts: none\n")
}

func TestCapabilitiesFilter(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("capabilities", "--filter", "API-patch-*"), h.stderr.String())

	var report render.CapabilityReport
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &report))
	var names []string
	for _, tool := range report.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"API-patch-page", "API-patch-block-children"}, names)
	assert.NotEmpty(t, report.ResourcesError)
	assert.Empty(t, report.PromptsError)
}

func TestWorkspaceText(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("workspace", "--sample", "2", "-o", "text"), h.stderr.String())

	out := h.stdout.String()
	assert.Contains(t, out, "1. Refined Tickets  [candidate]\n")
	assert.Contains(t, out, "   Entries: 3\n"+
		"     - Current Tickets [In progress] (1f2e3d4c...)\n"+
		"     - Backlog [Not started] (28374655...)\n"+
		"     ... and 1 more\n")
	assert.Contains(t, out, "   Entries: 0\n")
	assert.Contains(t, out, "\nPages (2)\n  - Meeting Notes (9a8b7c6d...)\n")
}

func TestFindPage(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	require.Equal(t, exitOK, h.run("find-page", "--database", mcptest.TicketsDatabaseID), h.stderr.String())

	var found render.PageSummary
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &found))
	assert.Equal(t, mcptest.CurrentTicketsID, found.ID)
	assert.Equal(t, "Current Tickets", found.Title)
}

func TestFindPageNotFound(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	code := h.run("find-page", "--database", mcptest.TicketsDatabaseID, "--title", "Roadmap")

	assert.Equal(t, exitFailure, code)
	assert.Contains(t, h.stderr.String(), `no page titled "Roadmap"`)
}

func TestUnknownDatabaseIsProtocolError(t *testing.T) {
	h := newHarness(t, mcptest.ModeNotion)

	code := h.run("query", "--id", "missing")

	assert.Equal(t, exitProtocol, code)
	assert.Contains(t, h.stderr.String(), "object_not_found")
}

func TestFailureExitCodes(t *testing.T) {
	tests := []struct {
		name string
		mode mcptest.Mode
		args []string
		want int
	}{
		{"rpc error", mcptest.ModeRPCError, []string{"query", "--id", "abc123"}, exitProtocol},
		{"tool error", mcptest.ModeToolError, []string{"databases"}, exitProtocol},
		{"server exits", mcptest.ModeSilentExit, []string{"databases"}, exitTransport},
		{"bad output format", mcptest.ModeNotion, []string{"databases", "-o", "yaml"}, exitConfiguration},
		{"bad log level", mcptest.ModeNotion, []string{"databases", "--log-level", "loud"}, exitConfiguration},
		{"bad log format", mcptest.ModeNotion, []string{"databases", "--log-format", "yaml"}, exitConfiguration},
		{"missing flag", mcptest.ModeNotion, []string{"query"}, exitFailure},
		{"unknown command", mcptest.ModeNotion, []string{"frobnicate"}, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.mode)
			assert.Equal(t, tt.want, h.run(tt.args...), h.stderr.String())
		})
	}
}

func TestServerStderrIsReported(t *testing.T) {
	h := newHarness(t, mcptest.ModeSilentExit)

	require.Equal(t, exitTransport, h.run("databases"))
	assert.Contains(t, h.stderr.String(), mcptest.StderrMessage)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitConfiguration, exitCode(mcp.NewMissingTokenError()))
	assert.Equal(t, exitTransport, exitCode(fmt.Errorf("open: %w", &mcp.TransportError{Op: "read", Err: mcp.ErrTimeout})))
	assert.Equal(t, exitProtocol, exitCode(fmt.Errorf("call: %w", &mcp.ProtocolError{Message: "bad"})))
	assert.Equal(t, exitFailure, exitCode(fmt.Errorf("plain")))
}
