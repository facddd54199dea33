package notion

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const (
	UntitledDatabase = "Untitled Database"
	UntitledPage     = "Untitled"
)

var ErrNoTextContent = errors.New("tool result has no text content")

// DefaultTicketKeywords flag databases that probably hold tickets.
var DefaultTicketKeywords = []string{"refined", "ticket", "issue", "task", "bug", "feature", "story"}

type RichText struct {
	PlainText string `json:"plain_text"`
}

type Option struct {
	Name string `json:"name"`
}

type PropertySchema struct {
	Type string `json:"type"`
}

type PropertyValue struct {
	Type   string     `json:"type"`
	Title  []RichText `json:"title,omitempty"`
	Select *Option    `json:"select,omitempty"`
	Status *Option    `json:"status,omitempty"`
}

type Database struct {
	ID         string                    `json:"id"`
	Title      []RichText                `json:"title"`
	Properties map[string]PropertySchema `json:"properties"`
}

type Page struct {
	ID         string                   `json:"id"`
	Properties map[string]PropertyValue `json:"properties"`
}

// ResultPage is one page of a Notion list response.
type ResultPage struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

// CountLabel is the number of results, suffixed with "+" when the server
// holds more than it returned.
func (p *ResultPage) CountLabel() string {
	if p.HasMore {
		return fmt.Sprintf("%d+", len(p.Results))
	}
	return fmt.Sprintf("%d", len(p.Results))
}

// DecodeResults reads the first text block of result that parses as a
// Notion list object.
func DecodeResults(result *protocol.CallToolResult) (*ResultPage, error) {
	var lastErr error = ErrNoTextContent
	for _, c := range result.Content {
		if c.Type != "text" {
			continue
		}
		var page ResultPage
		if err := json.Unmarshal([]byte(c.Text), &page); err != nil {
			lastErr = fmt.Errorf("failed to parse result: %w", err)
			continue
		}
		if page.Results == nil {
			lastErr = errors.New("result is not a list object")
			continue
		}
		return &page, nil
	}
	return nil, lastErr
}

func DecodeDatabases(page *ResultPage) ([]Database, error) {
	dbs := make([]Database, 0, len(page.Results))
	for _, raw := range page.Results {
		var db Database
		if err := json.Unmarshal(raw, &db); err != nil {
			return nil, fmt.Errorf("failed to parse database: %w", err)
		}
		dbs = append(dbs, db)
	}
	return dbs, nil
}

func DecodePages(page *ResultPage) ([]Page, error) {
	pages := make([]Page, 0, len(page.Results))
	for _, raw := range page.Results {
		var p Page
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to parse page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

func plainText(parts []RichText) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.PlainText)
	}
	return b.String()
}

func DatabaseTitle(db Database) string {
	if len(db.Title) == 0 {
		return UntitledDatabase
	}
	return plainText(db.Title)
}

// PageTitle is the text of the page's title property.
func PageTitle(p Page) string {
	for _, prop := range p.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return plainText(prop.Title)
		}
	}
	return UntitledPage
}

// PageStatus is the first select or status option set on the page, or "".
func PageStatus(p Page) string {
	for _, name := range slices.Sorted(maps.Keys(p.Properties)) {
		prop := p.Properties[name]
		switch {
		case prop.Type == "status" && prop.Status != nil:
			return prop.Status.Name
		case prop.Type == "select" && prop.Select != nil:
			return prop.Select.Name
		}
	}
	return ""
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// MatchesKeywords reports whether title contains any keyword, ignoring case.
func MatchesKeywords(title string, keywords []string) bool {
	t := fold(title)
	for _, k := range keywords {
		if k = fold(k); k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}

func TitleEquals(a, b string) bool {
	return fold(a) == fold(b)
}

// FindPageByTitle returns the first page whose title equals title.
func FindPageByTitle(pages []Page, title string) (Page, bool) {
	for _, p := range pages {
		if TitleEquals(PageTitle(p), title) {
			return p, true
		}
	}
	return Page{}, false
}
