package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tripwire24/tw-experiment-engine/internal/model"
	"github.com/tripwire24/tw-experiment-engine/internal/store"
	"github.com/tripwire24/tw-experiment-engine/internal/views"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *store.Store
}

// NewMCPServer creates an MCP server exposing the experiment board to
// agent clients over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"growthops",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("growthops — growth experiment board: pipeline tracking, ICE scoring, and outcome analytics."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_experiments",
			mcp.WithDescription("List experiments, optionally restricted to one board or one pipeline status."),
			mcp.WithString("board", mcp.Description("Board id to filter by")),
			mcp.WithString("status", mcp.Description("Pipeline status to filter by (idea, hypothesis, running, complete, learnings)")),
		),
		mcpListExperiments(deps),
	)

	s.AddTool(
		mcp.NewTool("add_experiment",
			mcp.WithDescription("Create a new growth experiment on a board."),
			mcp.WithString("board", mcp.Description("Board id"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Experiment title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("What the experiment tests")),
			mcp.WithNumber("impact", mcp.Description("ICE impact rating 1-10")),
			mcp.WithNumber("confidence", mcp.Description("ICE confidence rating 1-10")),
			mcp.WithNumber("ease", mcp.Description("ICE ease rating 1-10")),
			mcp.WithString("market", mcp.Description("Target market code (US, UK, CA, AU, NZ, SG)")),
			mcp.WithString("type", mcp.Description("Experiment type (Acquisition, Retention, Monetization, Product)")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpAddExperiment(deps),
	)

	s.AddTool(
		mcp.NewTool("move_experiment",
			mcp.WithDescription("Move an experiment to another pipeline status."),
			mcp.WithString("id", mcp.Description("Experiment id"), mcp.Required()),
			mcp.WithString("status", mcp.Description("Target status (idea, hypothesis, running, complete, learnings)"), mcp.Required()),
		),
		mcpMoveExperiment(deps),
	)

	s.AddTool(
		mcp.NewTool("board_analytics",
			mcp.WithDescription("Aggregate statistics for a board: active and completed counts, average ICE score, and per-type/market/status breakdowns."),
			mcp.WithString("board", mcp.Description("Board id; omit for all boards")),
		),
		mcpBoardAnalytics(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"growthops://boards",
			"Boards",
			mcp.WithResourceDescription("All boards as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceBoards(deps),
	)

	return s
}

func mcpListExperiments(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		experiments := deps.Store.Experiments()

		if board := req.GetString("board", ""); board != "" {
			experiments = views.ForBoard(experiments, board)
		}
		if status := req.GetString("status", ""); status != "" {
			if !model.ValidStatus(model.Status(status)) {
				return mcpError(fmt.Sprintf("unknown status %q", status)), nil
			}
			filter := views.VaultFilter{Status: status}
			experiments = filter.Apply(experiments)
		}

		type experimentSummary struct {
			ID     string `json:"id"`
			Title  string `json:"title"`
			Status string `json:"status"`
			ICE    string `json:"ice"`
			Result string `json:"result,omitempty"`
			Board  string `json:"board"`
		}
		summaries := make([]experimentSummary, len(experiments))
		for i, e := range experiments {
			summaries[i] = experimentSummary{
				ID:     e.ID,
				Title:  e.Title,
				Status: string(e.Status),
				ICE:    e.ICEScoreString(),
				Result: string(e.Result),
				Board:  e.BoardID,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal experiments: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAddExperiment(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		board, err := req.RequireString("board")
		if err != nil {
			return mcpError("board is required"), nil
		}
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}

		exp, err := deps.Store.AddExperiment(store.Draft{
			BoardID:       board,
			Title:         title,
			Description:   req.GetString("description", ""),
			ICEImpact:     req.GetInt("impact", 5),
			ICEConfidence: req.GetInt("confidence", 5),
			ICEEase:       req.GetInt("ease", 5),
			Market:        req.GetString("market", ""),
			Type:          req.GetString("type", ""),
			Tags:          req.GetStringSlice("tags", nil),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add experiment: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Created experiment %s (%q, ICE %s)", exp.ID, exp.Title, exp.ICEScoreString())), nil
	}
}

func mcpMoveExperiment(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		status, err := req.RequireString("status")
		if err != nil {
			return mcpError("status is required"), nil
		}

		if err := deps.Store.UpdateStatus(id, model.Status(status)); err != nil {
			return mcpError(fmt.Sprintf("failed to move experiment: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Moved %s to %s", id, status)), nil
	}
}

func mcpBoardAnalytics(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		experiments := deps.Store.Experiments()
		if board := req.GetString("board", ""); board != "" {
			experiments = views.ForBoard(experiments, board)
		}

		b, err := json.Marshal(views.Compute(experiments))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal analytics: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceBoards(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Store.Boards())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal boards: %w", err)
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
