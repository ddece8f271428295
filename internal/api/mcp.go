package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service ChatService
}

// NewMCPServer creates an MCP server exposing the parts assistant as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"partserve",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("partserve answers questions about refrigerator and dishwasher parts using a grounded knowledge base."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("ask_parts",
			mcp.WithDescription("Ask a question about refrigerator or dishwasher parts. Returns a grounded answer and, when applicable, the matching part record."),
			mcp.WithString("query", mcp.Description("The customer question"), mcp.Required()),
		),
		mcpAskParts(deps),
	)

	s.AddTool(
		mcp.NewTool("search_parts",
			mcp.WithDescription("Semantically search the parts knowledge base and return matching QA entries with scores."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
		),
		mcpSearchParts(deps),
	)

	s.AddTool(
		mcp.NewTool("get_part",
			mcp.WithDescription("Look up a part record by its id."),
			mcp.WithString("part_id", mcp.Description("The part id"), mcp.Required()),
		),
		mcpGetPart(deps),
	)

	return s
}

func mcpAskParts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		res, err := deps.Service.Chat(ctx, query, nil)
		if err != nil {
			return mcpError(fmt.Sprintf("chat failed: %v", err)), nil
		}

		out := ChatResponse{Response: res.Response}
		if res.Part != nil {
			out.PartInfo = partView(*res.Part)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal response: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSearchParts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		matches, err := deps.Service.Search(ctx, query)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(matches) == 0 {
			return mcpText("[]"), nil
		}

		results := make([]SearchResult, len(matches))
		for i, m := range matches {
			results[i] = SearchResult{
				PartID:    m.Entry.PartID,
				Appliance: m.Entry.Appliance,
				Question:  m.Entry.Question,
				Answer:    m.Entry.Answer,
				Score:     m.Score,
			}
		}
		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetPart(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		partID, err := req.RequireString("part_id")
		if err != nil {
			return mcpError("part_id is required"), nil
		}

		rec, ok := deps.Service.Part(partID)
		if !ok {
			return mcpError(fmt.Sprintf("part %q not found", partID)), nil
		}

		b, err := json.Marshal(partView(rec))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal part: %v", err)), nil
		}
		return mcpText(string(b)), nil
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
