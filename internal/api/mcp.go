package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/pipeline"
	"github.com/gridviz/gridviz/internal/storage"
)

// MCPRecents abstracts recent-activity reads for the MCP layer.
type MCPRecents interface {
	ListRecentVisualizations(limit int) ([]storage.Visualization, error)
}

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Runner  Runner
	Recents MCPRecents
	Catalog *catalog.Catalog
}

// NewMCPServer creates an MCP server exposing the visualization
// pipeline as tools and recent activity as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"gridviz",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("gridviz turns plain-English questions about ERCOT market data into provisioned Grafana dashboards."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("create_visualization",
			mcp.WithDescription("Create a Grafana dashboard from a plain-English description of the desired ERCOT market chart."),
			mcp.WithNumber("user_id", mcp.Description("Numeric id of the requesting user"), mcp.Required()),
			mcp.WithString("request", mcp.Description("What to visualize, e.g. 'west hub prices for the last day'"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Visualization kind (default: chart)")),
		),
		mcpCreateVisualization(deps),
	)

	s.AddTool(
		mcp.NewTool("list_data_sources",
			mcp.WithDescription("List the queryable ERCOT market tables with their columns."),
		),
		mcpListDataSources(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"gridviz://recent",
			"Recent Visualizations",
			mcp.WithResourceDescription("Last 10 visualization requests across all users"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpCreateVisualization(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireInt("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		text, err := req.RequireString("request")
		if err != nil {
			return mcpError("request is required"), nil
		}
		kind := req.GetString("type", "chart")

		state := deps.Runner.Run(ctx, pipeline.Request{
			UserID: int64(userID),
			Text:   text,
			Kind:   kind,
		})

		b, err := json.Marshal(state)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		if !state.Succeeded() {
			return mcpError(string(b)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListDataSources(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Catalog.Sources())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal data sources: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		vizzes, err := deps.Recents.ListRecentVisualizations(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list recent visualizations: %w", err)
		}

		b, err := json.Marshal(vizzes)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal visualizations: %w", err)
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
