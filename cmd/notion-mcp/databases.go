package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/internal/notion"
	"github.com/alucardeht/notion-mcp/internal/render"
	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

// inspectPageSize is the largest page the Notion API returns.
const inspectPageSize = 100

func (a *app) databasesCmd() *cobra.Command {
	var (
		pageSize int
		inspect  bool
		keywords []string
	)

	cmd := &cobra.Command{
		Use:   "databases",
		Short: "List databases shared with the integration",
		Long: `List every database the integration can see.

With --inspect, databases whose title contains one of the keywords are
queried for their number of entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				return a.listDatabases(cmd.Context(), s, pageSize, inspect, keywords)
			})
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", 0, "maximum databases to return (server default when 0)")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "count the entries of matching databases")
	cmd.Flags().StringSliceVar(&keywords, "keywords", notion.DefaultTicketKeywords, "title keywords that mark a database for inspection")
	return cmd
}

func (a *app) listDatabases(ctx context.Context, s *mcp.Session, pageSize int, inspect bool, keywords []string) error {
	search := notion.SearchDatabases(pageSize)
	result, err := s.CallTool(ctx, search)
	if err != nil {
		return err
	}
	if !inspect && a.format == render.FormatJSON {
		return a.printJSON(result)
	}

	var transcript render.Transcript
	transcript.Add(search, result)

	page, err := notion.DecodeResults(result)
	if err != nil {
		return &mcp.ProtocolError{Method: search.Tool, Message: err.Error()}
	}
	dbs, err := notion.DecodeDatabases(page)
	if err != nil {
		return &mcp.ProtocolError{Method: search.Tool, Message: err.Error()}
	}

	summaries := make([]render.DatabaseSummary, 0, len(dbs))
	for _, db := range dbs {
		summary := render.NewDatabaseSummary(db, keywords)
		if inspect && summary.Candidate {
			query := notion.QueryDatabase(db.ID, inspectPageSize)
			qr, err := s.CallTool(ctx, query)
			transcript.Add(query, qr)
			if err := a.fillEntries(&summary, qr, err, 0); err != nil {
				return err
			}
		}
		summaries = append(summaries, summary)
	}

	if a.format == render.FormatJSON {
		return a.printJSON(transcript)
	}
	return render.Databases(a.stdout, summaries)
}

// fillEntries records a database query on its summary. A query the server
// refused is noted on the summary and the listing goes on; anything else
// aborts.
func (a *app) fillEntries(summary *render.DatabaseSummary, result *protocol.CallToolResult, err error, sample int) error {
	var pe *mcp.ProtocolError
	if errors.As(err, &pe) {
		a.log.Warn("database query failed", "database", summary.ID, "error", pe.Message)
		summary.Error = pe.Message
		return nil
	}
	if err != nil {
		return err
	}

	page, err := notion.DecodeResults(result)
	if err != nil {
		summary.Error = err.Error()
		return nil
	}
	summary.Entries = page.CountLabel()

	if sample > 0 {
		pages, err := notion.DecodePages(page)
		if err != nil {
			summary.Error = err.Error()
			return nil
		}
		if len(pages) > sample {
			summary.More = fmt.Sprintf("%d", len(pages)-sample)
			if page.HasMore {
				summary.More += "+"
			}
			pages = pages[:sample]
		}
		summary.Sample = render.NewPageSummaries(pages)
	}
	return nil
}
