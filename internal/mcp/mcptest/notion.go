package mcptest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const (
	TicketsDatabaseID = "c7698cc3-bd7e-4e1a-afde-2ed85ab3d9a7"
	ReadingDatabaseID = "0b1c2d3e-4f50-6172-8394-a5b6c7d8e9f0"
	CurrentTicketsID  = "1f2e3d4c-5b6a-7980-a1b2-c3d4e5f60718"
	BacklogPageID     = "28374655-6473-8291-a0b1-c2d3e4f50617"
	NotesPageID       = "9a8b7c6d-5e4f-3a2b-1c0d-e9f8a7b6c5d4"
)

// RejectedDescription is a paragraph the block-children tool refuses with a
// validation error.
const RejectedDescription = "rejected by validation"

var Tools = []protocol.Tool{
	{Name: "API-get-user", Description: "Retrieve a user"},
	{Name: "API-get-users", Description: "List all users"},
	{Name: "API-post-search", Description: "Search by title"},
	{Name: "API-post-database-query", Description: "Query a database"},
	{Name: "API-retrieve-a-database", Description: "Retrieve a database"},
	{Name: "API-patch-page", Description: "Update page properties"},
	{Name: "API-retrieve-a-page", Description: "Retrieve a page"},
	{Name: "API-patch-block-children", Description: "Append block children to a block or page, adding the new content after any existing children of the parent"},
	{Name: "API-retrieve-a-comment", Description: "Retrieve comments"},
	{Name: "API-get-self", Description: "Retrieve your token's bot user"},
}

func richText(s string) []map[string]interface{} {
	return []map[string]interface{}{{"type": "text", "plain_text": s, "text": map[string]interface{}{"content": s}}}
}

func page(id, title, status string) map[string]interface{} {
	props := map[string]interface{}{
		"Name": map[string]interface{}{"type": "title", "title": richText(title)},
	}
	if status != "" {
		props["Status"] = map[string]interface{}{"type": "status", "status": map[string]interface{}{"name": status}}
	}
	return map[string]interface{}{"object": "page", "id": id, "properties": props}
}

func database(id, title string, props ...string) map[string]interface{} {
	schema := map[string]interface{}{}
	for i := 0; i+1 < len(props); i += 2 {
		schema[props[i]] = map[string]interface{}{"type": props[i+1]}
	}
	return map[string]interface{}{"object": "database", "id": id, "title": richText(title), "properties": schema}
}

var databasesByID = map[string][]map[string]interface{}{
	TicketsDatabaseID: {
		page(CurrentTicketsID, "Current Tickets", "In progress"),
		page(BacklogPageID, "Backlog", "Not started"),
		page("3b4c5d6e-7f80-9102-a3b4-c5d6e7f80912", "Done", "Done"),
	},
	ReadingDatabaseID: {},
}

func list(results []map[string]interface{}, pageSize int) map[string]interface{} {
	hasMore := false
	if pageSize > 0 && len(results) > pageSize {
		results = results[:pageSize]
		hasMore = true
	}
	if results == nil {
		results = []map[string]interface{}{}
	}
	return map[string]interface{}{"object": "list", "results": results, "has_more": hasMore, "next_cursor": nil}
}

func jsonResult(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return TextResult(string(b)), nil
}

func notionError(status int, code, msg string) protocol.CallToolResult {
	b, _ := json.Marshal(map[string]interface{}{"object": "error", "status": status, "code": code, "message": msg})
	r := TextResult(string(b))
	r.IsError = true
	return r
}

func paragraphText(children []interface{}) string {
	var b strings.Builder
	for _, c := range children {
		block, _ := c.(map[string]interface{})
		para, _ := block["paragraph"].(map[string]interface{})
		runs, _ := para["rich_text"].([]interface{})
		for _, r := range runs {
			run, _ := r.(map[string]interface{})
			text, _ := run["text"].(map[string]interface{})
			content, _ := text["content"].(string)
			b.WriteString(content)
		}
	}
	return b.String()
}

func intArg(args map[string]interface{}, key string) int {
	if f, ok := args[key].(float64); ok {
		return int(f)
	}
	return 0
}

func notionTool(params protocol.CallToolParams) (interface{}, error) {
	args := params.Arguments
	switch params.Name {
	case "API-post-search":
		filter, _ := args["filter"].(map[string]interface{})
		switch filter["value"] {
		case "database":
			return jsonResult(list([]map[string]interface{}{
				database(TicketsDatabaseID, "Refined Tickets", "Name", "title", "Status", "status"),
				database(ReadingDatabaseID, "Reading List", "Name", "title"),
			}, intArg(args, "page_size")))
		case "page":
			return jsonResult(list([]map[string]interface{}{
				page(NotesPageID, "Meeting Notes", ""),
				page(CurrentTicketsID, "Current Tickets", "In progress"),
			}, intArg(args, "page_size")))
		}
		return jsonResult(list(nil, 0))

	case "API-post-database-query":
		id, _ := args["database_id"].(string)
		pages, ok := databasesByID[id]
		if !ok {
			return notionError(404, "object_not_found", "Could not find database with ID: "+id+"."), nil
		}
		return jsonResult(list(pages, intArg(args, "page_size")))

	case "API-patch-page":
		id, _ := args["page_id"].(string)
		title := ""
		if props, ok := args["properties"].(map[string]interface{}); ok {
			if parts, ok := props["title"].([]interface{}); ok && len(parts) > 0 {
				if part, ok := parts[0].(map[string]interface{}); ok {
					if text, ok := part["text"].(map[string]interface{}); ok {
						title, _ = text["content"].(string)
					}
				}
			}
		}
		return jsonResult(page(id, title, ""))

	case "API-patch-block-children":
		children, _ := args["children"].([]interface{})
		if paragraphText(children) == RejectedDescription {
			return notionError(400, "validation_error", "body failed validation: children[0].paragraph.rich_text is invalid"), nil
		}
		return jsonResult(map[string]interface{}{"object": "list", "results": children, "has_more": false})
	}

	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("Unknown tool: %s", params.Name)}
}
