package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json or text)", s)
}

// JSON writes v indented by two spaces.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Exchange is one tool call and the server's answer to it.
type Exchange struct {
	Tool      string                   `json:"tool"`
	Arguments map[string]interface{}   `json:"arguments,omitempty"`
	Result    *protocol.CallToolResult `json:"result"`
}

func NewExchange(req mcp.Request, result *protocol.CallToolResult) Exchange {
	return Exchange{Tool: req.Tool, Arguments: req.Arguments, Result: result}
}

// Transcript is the JSON output of commands that make several calls.
type Transcript struct {
	Exchanges []Exchange `json:"exchanges"`
}

func (t *Transcript) Add(req mcp.Request, result *protocol.CallToolResult) {
	t.Exchanges = append(t.Exchanges, NewExchange(req, result))
}

// Tools names the tool of each exchange, in order.
func (t *Transcript) Tools() []string {
	names := make([]string, 0, len(t.Exchanges))
	for _, ex := range t.Exchanges {
		names = append(names, ex.Tool)
	}
	return names
}

// Wrap breaks text into lines of at most width columns on word boundaries.
// A single word longer than width gets a line of its own.
func Wrap(text string, width int) []string {
	var lines []string
	var cur []string
	n := 0
	for _, word := range strings.Fields(text) {
		wl := len([]rune(word))
		if len(cur) > 0 && n+1+wl > width {
			lines = append(lines, strings.Join(cur, " "))
			cur, n = nil, 0
		}
		if len(cur) > 0 {
			n++
		}
		cur = append(cur, word)
		n += wl
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	return lines
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
