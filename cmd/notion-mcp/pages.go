package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alucardeht/notion-mcp/internal/mcp"
	"github.com/alucardeht/notion-mcp/internal/notion"
	"github.com/alucardeht/notion-mcp/internal/render"
	"github.com/alucardeht/notion-mcp/pkg/protocol"
)

const defaultPageTitle = "Current Tickets"

func (a *app) queryCmd() *cobra.Command {
	var (
		id       string
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the entries of one database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				req := notion.QueryDatabase(id, pageSize)
				result, err := s.CallTool(cmd.Context(), req)
				if err != nil {
					return err
				}
				if a.format == render.FormatJSON {
					return a.printJSON(result)
				}
				page, pages, err := decodePages(req, result)
				if err != nil {
					return err
				}
				return render.Pages(a.stdout, page.CountLabel(), render.NewPageSummaries(pages))
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "database ID")
	cmd.Flags().IntVar(&pageSize, "page-size", inspectPageSize, "maximum entries to return")
	cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) updatePageCmd() *cobra.Command {
	var id, title, description string

	cmd := &cobra.Command{
		Use:   "update-page",
		Short: "Set a page title and append a description paragraph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			calls, err := notion.Expand(notion.UpdatePage(id, title, description))
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				return a.updatePage(cmd.Context(), s, calls)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "page ID")
	cmd.Flags().StringVar(&title, "title", "", "new page title")
	cmd.Flags().StringVar(&description, "description", "", "paragraph appended to the page body")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("title")
	return cmd
}

// updatePage runs calls in order and stops at the first failure. Calls that
// already succeeded are not undone, so they are still printed and named in
// the error.
func (a *app) updatePage(ctx context.Context, s *mcp.Session, calls []mcp.Request) error {
	var transcript render.Transcript
	for _, req := range calls {
		result, err := s.CallTool(ctx, req)
		if err != nil {
			if len(transcript.Exchanges) == 0 {
				return fmt.Errorf("%s failed: %w", req.Tool, err)
			}
			if perr := a.printUpdates(transcript); perr != nil {
				a.log.Warn("printing applied updates", "error", perr)
			}
			return fmt.Errorf("%s failed after %s succeeded: %w", req.Tool, strings.Join(transcript.Tools(), ", "), err)
		}
		transcript.Add(req, result)
		a.log.Info("page updated", "tool", req.Tool)
	}
	return a.printUpdates(transcript)
}

func (a *app) printUpdates(transcript render.Transcript) error {
	if a.format == render.FormatJSON {
		return a.printJSON(transcript)
	}
	for _, ex := range transcript.Exchanges {
		switch ex.Tool {
		case notion.ToolPatchPage:
			fmt.Fprintln(a.stdout, "Title updated.")
		case notion.ToolAppendBlockChildren:
			fmt.Fprintln(a.stdout, "Description appended.")
		}
	}
	return nil
}

func (a *app) findPageCmd() *cobra.Command {
	var databaseID, title string

	cmd := &cobra.Command{
		Use:   "find-page",
		Short: "Print the ID of the database entry with a given title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *mcp.Session) error {
				req := notion.QueryDatabase(databaseID, inspectPageSize)
				result, err := s.CallTool(cmd.Context(), req)
				if err != nil {
					return err
				}
				_, pages, err := decodePages(req, result)
				if err != nil {
					return err
				}

				found, ok := notion.FindPageByTitle(pages, title)
				if !ok {
					return fmt.Errorf("no page titled %q in database %s", title, databaseID)
				}
				summary := render.NewPageSummary(found)
				if a.format == render.FormatJSON {
					return a.printJSON(summary)
				}
				fmt.Fprintf(a.stdout, "Page ID for %q: %s\n", summary.Title, summary.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&databaseID, "database", "", "database ID")
	cmd.Flags().StringVar(&title, "title", defaultPageTitle, "page title to look for")
	cmd.MarkFlagRequired("database")
	return cmd
}

func decodePages(req mcp.Request, result *protocol.CallToolResult) (*notion.ResultPage, []notion.Page, error) {
	page, err := notion.DecodeResults(result)
	if err != nil {
		return nil, nil, &mcp.ProtocolError{Method: req.Tool, Message: err.Error()}
	}
	pages, err := notion.DecodePages(page)
	if err != nil {
		return nil, nil, &mcp.ProtocolError{Method: req.Tool, Message: err.Error()}
	}
	return page, pages, nil
}
