package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/internal/notion"
	"github.com/alucardeht/notion-mcp/internal/render"
)

func (a *app) capabilitiesCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "Show the tools, resources and prompts the server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				report, err := capabilities(cmd.Context(), s, filter)
				if err != nil {
					return err
				}
				if a.format == render.FormatJSON {
					return a.printJSON(report)
				}
				return render.Capabilities(a.stdout, report)
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only show tools whose name matches this glob")
	return cmd
}

// capabilities collects the server's offer. Servers are free not to
// implement resources or prompts, so a protocol error there is recorded
// rather than returned.
func capabilities(ctx context.Context, s *mcp.Session, filter string) (*render.CapabilityReport, error) {
	report := &render.CapabilityReport{Server: s.Server()}

	tools, err := s.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	report.Tools, err = render.FilterTools(tools.Tools, filter)
	if err != nil {
		return nil, err
	}

	resources, err := s.ListResources(ctx)
	switch {
	case mcp.IsProtocol(err):
		report.ResourcesError = err.Error()
	case err != nil:
		return nil, err
	default:
		report.Resources = resources.Resources
	}

	prompts, err := s.ListPrompts(ctx)
	switch {
	case mcp.IsProtocol(err):
		report.PromptsError = err.Error()
	case err != nil:
		return nil, err
	default:
		report.Prompts = prompts.Prompts
	}
	return report, nil
}

func (a *app) workspaceCmd() *cobra.Command {
	var sample, pageSize int

	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Summarize the databases and pages shared with the integration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				return a.workspace(cmd.Context(), s, sample, pageSize)
			})
		},
	}

	cmd.Flags().IntVar(&sample, "sample", 3, "entries shown per database")
	cmd.Flags().IntVar(&pageSize, "page-size", 10, "maximum pages to list")
	return cmd
}

func (a *app) workspace(ctx context.Context, s *mcp.Session, sample, pageSize int) error {
	var transcript render.Transcript
	report := &render.WorkspaceReport{}

	search := notion.SearchDatabases(0)
	result, err := s.CallTool(ctx, search)
	if err != nil {
		return err
	}
	transcript.Add(search, result)

	page, err := notion.DecodeResults(result)
	if err != nil {
		return &mcp.ProtocolError{Method: search.Tool, Message: err.Error()}
	}
	dbs, err := notion.DecodeDatabases(page)
	if err != nil {
		return &mcp.ProtocolError{Method: search.Tool, Message: err.Error()}
	}

	for _, db := range dbs {
		summary := render.NewDatabaseSummary(db, notion.DefaultTicketKeywords)
		if sample > 0 {
			query := notion.QueryDatabase(db.ID, inspectPageSize)
			qr, err := s.CallTool(ctx, query)
			transcript.Add(query, qr)
			if err := a.fillEntries(&summary, qr, err, sample); err != nil {
				return err
			}
		}
		report.Databases = append(report.Databases, summary)
	}

	search = notion.SearchPages(pageSize)
	result, err = s.CallTool(ctx, search)
	if err != nil {
		return err
	}
	transcript.Add(search, result)

	if a.format == render.FormatJSON {
		return a.printJSON(transcript)
	}

	page, pages, err := decodePages(search, result)
	if err != nil {
		return err
	}
	report.PageCount = page.CountLabel()
	report.Pages = render.NewPageSummaries(pages)
	return render.Workspace(a.stdout, report)
}
