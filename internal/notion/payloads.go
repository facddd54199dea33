// Package notion builds Notion MCP tool requests and reads their results.
// Nothing here performs I/O.
package notion

import (
	"fmt"

	"github.com/alucardeht/notion-mcp/internal/mcp"
)

const (
	ToolSearch              = "API-post-search"
	ToolQueryDatabase       = "API-post-database-query"
	ToolPatchPage           = "API-patch-page"
	ToolAppendBlockChildren = "API-patch-block-children"

	// ToolUpdatePage is not a server tool. Expand turns it into the
	// patch-page and block-children calls that implement it.
	ToolUpdatePage = "update-page"
)

func search(objectType string, pageSize int) mcp.Request {
	args := map[string]interface{}{
		"filter": map[string]interface{}{
			"property": "object",
			"value":    objectType,
		},
	}
	if pageSize > 0 {
		args["page_size"] = pageSize
	}
	return mcp.NewRequest(ToolSearch, args)
}

// SearchDatabases lists databases shared with the integration. A pageSize
// of zero leaves the server default.
func SearchDatabases(pageSize int) mcp.Request {
	return search("database", pageSize)
}

func SearchPages(pageSize int) mcp.Request {
	return search("page", pageSize)
}

func QueryDatabase(databaseID string, pageSize int) mcp.Request {
	args := map[string]interface{}{
		"database_id": databaseID,
	}
	if pageSize > 0 {
		args["page_size"] = pageSize
	}
	return mcp.NewRequest(ToolQueryDatabase, args)
}

func UpdatePage(id, title, description string) mcp.Request {
	return mcp.NewRequest(ToolUpdatePage, map[string]interface{}{
		"id":          id,
		"title":       title,
		"description": description,
	})
}

func textRun(content string) map[string]interface{} {
	return map[string]interface{}{
		"type": "text",
		"text": map[string]interface{}{"content": content},
	}
}

func PatchPageTitle(pageID, title string) mcp.Request {
	return mcp.NewRequest(ToolPatchPage, map[string]interface{}{
		"page_id": pageID,
		"properties": map[string]interface{}{
			"title": []interface{}{textRun(title)},
		},
	})
}

// AppendParagraph adds text as a new paragraph after the existing children
// of blockID. A page ID is a valid block ID.
func AppendParagraph(blockID, text string) mcp.Request {
	return mcp.NewRequest(ToolAppendBlockChildren, map[string]interface{}{
		"block_id": blockID,
		"children": []interface{}{
			map[string]interface{}{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]interface{}{
					"rich_text": []interface{}{textRun(text)},
				},
			},
		},
	})
}

// Expand returns the server tool calls that carry out req, in order. Requests
// for real server tools come back unchanged.
func Expand(req mcp.Request) ([]mcp.Request, error) {
	if req.Tool != ToolUpdatePage {
		return []mcp.Request{req}, nil
	}

	id, err := stringArg(req, "id", true)
	if err != nil {
		return nil, err
	}
	title, err := stringArg(req, "title", true)
	if err != nil {
		return nil, err
	}
	description, err := stringArg(req, "description", false)
	if err != nil {
		return nil, err
	}

	calls := []mcp.Request{PatchPageTitle(id, title)}
	if description != "" {
		calls = append(calls, AppendParagraph(id, description))
	}
	return calls, nil
}

func stringArg(req mcp.Request, key string, required bool) (string, error) {
	v, ok := req.Arguments[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%s: missing argument %q", req.Tool, key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: argument %q must be a string, got %T", req.Tool, key, v)
	}
	if required && s == "" {
		return "", fmt.Errorf("%s: argument %q is empty", req.Tool, key)
	}
	return s, nil
}
