package mcp

import (
	"errors"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

var ErrEmptyTool = errors.New("request has no tool name")

// Request names one tool invocation on the server.
type Request struct {
	Tool      string
	Arguments map[string]interface{}
}

func NewRequest(tool string, args map[string]interface{}) Request {
	return Request{Tool: tool, Arguments: args}
}

func (r Request) Validate() error {
	if r.Tool == "" {
		return ErrEmptyTool
	}
	return nil
}

// Params returns the tools/call parameters for r. The arguments are deep
// copied so that nothing done to the caller's map after this point can
// change what goes on the wire.
func (r Request) Params() protocol.CallToolParams {
	return protocol.CallToolParams{
		Name:      r.Tool,
		Arguments: cloneMap(r.Arguments),
	}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneMap(item)
		}
		return out
	default:
		return v
	}
}
