package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alucardeht/notion-mcp/internal/notion"
)

type PageSummary struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

func NewPageSummary(p notion.Page) PageSummary {
	return PageSummary{ID: p.ID, Title: notion.PageTitle(p), Status: notion.PageStatus(p)}
}

func NewPageSummaries(pages []notion.Page) []PageSummary {
	out := make([]PageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, NewPageSummary(p))
	}
	return out
}

// DatabaseSummary describes one database. Entries, Sample and More are only
// set when the database was queried. More counts the entries left out of
// Sample.
type DatabaseSummary struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Properties map[string]string `json:"properties,omitempty"`
	Candidate  bool              `json:"candidate,omitempty"`
	Entries    string            `json:"entries,omitempty"`
	Sample     []PageSummary     `json:"sample,omitempty"`
	More       string            `json:"more,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// NewDatabaseSummary marks the database a candidate when its title matches
// one of keywords.
func NewDatabaseSummary(db notion.Database, keywords []string) DatabaseSummary {
	title := notion.DatabaseTitle(db)
	s := DatabaseSummary{
		ID:        db.ID,
		Title:     title,
		Candidate: notion.MatchesKeywords(title, keywords),
	}
	if len(db.Properties) > 0 {
		s.Properties = make(map[string]string, len(db.Properties))
		for name, p := range db.Properties {
			s.Properties[name] = p.Type
		}
	}
	return s
}

func Databases(w io.Writer, dbs []DatabaseSummary) error {
	var b strings.Builder
	if len(dbs) == 0 {
		b.WriteString("No databases shared with this integration.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "Databases (%d)\n", len(dbs))
	for i, db := range dbs {
		mark := ""
		if db.Candidate {
			mark = "  [candidate]"
		}
		fmt.Fprintf(&b, "\n%d. %s%s\n", i+1, db.Title, mark)
		fmt.Fprintf(&b, "   ID: %s\n", db.ID)
		if len(db.Properties) > 0 {
			names := make([]string, 0, len(db.Properties))
			for name := range db.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			b.WriteString("   Properties:\n")
			for _, name := range names {
				fmt.Fprintf(&b, "     - %s (%s)\n", name, db.Properties[name])
			}
		}
		writeEntries(&b, db)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeEntries(b *strings.Builder, db DatabaseSummary) {
	if db.Error != "" {
		fmt.Fprintf(b, "   Query failed: %s\n", db.Error)
		return
	}
	if db.Entries == "" {
		return
	}
	fmt.Fprintf(b, "   Entries: %s\n", db.Entries)
	for _, p := range db.Sample {
		writePageLine(b, "     - ", p)
	}
	if db.More != "" {
		fmt.Fprintf(b, "     ... and %s more\n", db.More)
	}
}

func writePageLine(b *strings.Builder, indent string, p PageSummary) {
	if p.Status != "" {
		fmt.Fprintf(b, "%s%s [%s] (%s)\n", indent, p.Title, p.Status, shortID(p.ID))
		return
	}
	fmt.Fprintf(b, "%s%s (%s)\n", indent, p.Title, shortID(p.ID))
}

// Pages lists query results, one per line with the full page ID.
func Pages(w io.Writer, count string, pages []PageSummary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries: %s\n", count)
	for _, p := range pages {
		if p.Status != "" {
			fmt.Fprintf(&b, "  %s [%s]\n", p.Title, p.Status)
		} else {
			fmt.Fprintf(&b, "  %s\n", p.Title)
		}
		fmt.Fprintf(&b, "    ID: %s\n", p.ID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WorkspaceReport is the overview printed by the workspace command.
type WorkspaceReport struct {
	Databases []DatabaseSummary `json:"databases"`
	Pages     []PageSummary     `json:"pages"`
	PageCount string            `json:"page_count"`
}

func Workspace(w io.Writer, r *WorkspaceReport) error {
	if err := Databases(w, r.Databases); err != nil {
		return err
	}

	var b strings.Builder
	count := r.PageCount
	if count == "" {
		count = fmt.Sprintf("%d", len(r.Pages))
	}
	fmt.Fprintf(&b, "\nPages (%s)\n", count)
	for _, p := range r.Pages {
		writePageLine(&b, "  - ", p)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
