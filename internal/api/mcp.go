package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/grindapp/grind/internal/catalog"
	"github.com/grindapp/grind/internal/schedule"
	"github.com/grindapp/grind/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store   *storage.Store
	Catalog *catalog.Cache
	Now     func() time.Time // defaults to time.Now
}

// NewMCPServer creates an MCP server with all grind tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := server.NewMCPServer(
		"grind",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("grind is a personal LeetCode practice tracker with spaced-repetition reviews."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("lookup_problem",
			mcp.WithDescription("Look up a LeetCode problem by its numeric ID and return title, difficulty, URL, and acceptance rate."),
			mcp.WithNumber("id", mcp.Description("Numeric problem ID"), mcp.Required()),
		),
		mcpLookupProblem(deps),
	)

	s.AddTool(
		mcp.NewTool("search_catalog",
			mcp.WithDescription("Search the LeetCode catalog by title."),
			mcp.WithString("query", mcp.Description("Search query, matched case-insensitively against titles"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchCatalog(deps),
	)

	s.AddTool(
		mcp.NewTool("save_problem",
			mcp.WithDescription("Save a LeetCode problem to the tracker with optional notes."),
			mcp.WithNumber("id", mcp.Description("Numeric problem ID"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Notes to attach to the saved problem")),
		),
		mcpSaveProblem(deps),
	)

	s.AddTool(
		mcp.NewTool("record_review",
			mcp.WithDescription("Record a review of a saved problem. Confidence 1-5 schedules the next review 1/3/7/14/30 days out."),
			mcp.WithNumber("problem_id", mcp.Description("Local ID of the saved problem"), mcp.Required()),
			mcp.WithNumber("confidence", mcp.Description("Self-rated recall confidence, 1 (forgot) to 5 (trivial)"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Notes about this review session")),
		),
		mcpRecordReview(deps),
	)

	s.AddTool(
		mcp.NewTool("due_problems",
			mcp.WithDescription("List saved problems whose next review date has arrived."),
		),
		mcpDueProblems(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"grind://due",
			"Due Problems",
			mcp.WithResourceDescription("Problems currently due for review, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDue(deps),
	)

	return s
}

func mcpLookupProblem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		entry, err := deps.Catalog.Resolve(ctx, strconv.Itoa(id))
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		b, err := json.Marshal(entry)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entry: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchCatalog(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		entries, err := deps.Catalog.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(entries) > limit {
			entries = entries[:limit]
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveProblem(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		notes := req.GetString("notes", "")

		entry, err := deps.Catalog.Resolve(ctx, strconv.Itoa(id))
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		now := deps.Now()
		next := now.AddDate(0, 0, schedule.DefaultIntervalDays)
		saved, err := deps.Store.SaveProblem(storage.Problem{
			ExternalID: entry.ID,
			Title:      entry.Title,
			Difficulty: entry.Difficulty,
			URL:        entry.URL,
			Notes:      notes,
			DateAdded:  now,
			NextReview: &next,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save problem: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Saved %q (#%d) as problem %d, first review %s",
			saved.Title, saved.ExternalID, saved.ID, saved.NextReview.Format("2006-01-02"))), nil
	}
}

func mcpRecordReview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		problemID, err := req.RequireInt("problem_id")
		if err != nil {
			return mcpError("problem_id is required"), nil
		}
		confidence, err := req.RequireInt("confidence")
		if err != nil {
			return mcpError("confidence is required"), nil
		}
		notes := req.GetString("notes", "")

		next := schedule.NextReview(deps.Now(), confidence)
		review, problem, err := deps.Store.RecordReview(int64(problemID), confidence, notes, next)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to record review: %v", err)), nil
		}

		b, err := json.Marshal(recordReviewResponse{Review: review, Problem: problem})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDueProblems(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		problems, err := deps.Store.ListDueProblems(deps.Now())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list due problems: %v", err)), nil
		}
		if problems == nil {
			problems = []storage.Problem{}
		}

		b, err := json.Marshal(problems)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal problems: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceDue(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		problems, err := deps.Store.ListDueProblems(deps.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to list due problems: %w", err)
		}
		if problems == nil {
			problems = []storage.Problem{}
		}

		b, err := json.Marshal(problems)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal problems: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
