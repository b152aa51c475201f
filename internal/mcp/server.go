package mcpserver

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"comicdb/internal/service"
)

// Server is the MCP server for comicdb.
// It exposes the load and query operations as tools so AI agents can
// drive dataset imports and explore the character collections.
type Server struct {
	mcp    *server.MCPServer
	loads  *service.LoadService
	querys *service.QueryService
}

// Deps holds the dependencies passed to the MCP server.
type Deps struct {
	Loads   *service.LoadService
	Queries *service.QueryService
}

// New creates and configures a new MCP server with all tools.
func New(deps Deps) *Server {
	s := &Server{
		loads:  deps.Loads,
		querys: deps.Queries,
	}

	s.mcp = server.NewMCPServer(
		"comicdb-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerLoadTools()
	s.registerQueryTools()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
