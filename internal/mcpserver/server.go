// Package mcpserver exposes internal/engine's add/remove/index_all/lookup
// surface as Model Context Protocol tools, so an LLM client can drive the
// indexer the same way it would drive any other editor tool.
//
// Grounded on the teacher's internal/mcp/server.go: same
// mcp.NewServer/AddTool/Run(ctx, &mcp.StdioTransport{}) shape, same
// "MCP stdio must stay clean" discipline, pared down from sixty files of
// search/semantic/git tooling to the handful of tools this engine
// actually supports.
package mcpserver

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/engine"
)

// Server wraps one Engine and exposes it over MCP. It holds no indexing
// state of its own; every tool handler is a thin adapter onto Engine's
// already-synchronized methods.
type Server struct {
	eng    *engine.Engine
	server *mcp.Server
}

// NewServer builds a Server around eng. Tools are registered immediately;
// Start begins serving them over stdio.
func NewServer(eng *engine.Engine) *Server {
	debug.SetMCPMode(true)

	s := &Server{
		eng: eng,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "hctxindex-mcp-server",
			Version: "0.1.0",
		}, nil),
	}

	s.registerTools()
	return s
}

// Start serves the registered tools over stdio until ctx is cancelled or
// the transport closes.
func (s *Server) Start(ctx context.Context) error {
	debug.LogMCP("starting MCP server on stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "info",
		Description: "List available tools and what they do.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_add",
		Description: "Schedule one source file for indexing. A no-op if the file has no compile command.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file"},
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "Absolute path to a translation unit"},
			},
		},
	}, s.handleIndexAdd)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_remove",
		Description: "Drop one translation unit and release any header contexts it alone held.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file"},
			Properties: map[string]*jsonschema.Schema{
				"file": {Type: "string", Description: "Absolute path to a translation unit previously added"},
			},
		},
	}, s.handleIndexRemove)

	s.server.AddTool(&mcp.Tool{
		Name:        "index_all",
		Description: "Schedule every file in the compilation database for indexing and wait for completion.",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}, s.handleIndexAll)

	s.server.AddTool(&mcp.Tool{
		Name:        "lookup",
		Description: "Resolve every known reference to the symbol at file:offset, restricted by relation kinds.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"file", "offset"},
			Properties: map[string]*jsonschema.Schema{
				"file":   {Type: "string", Description: "File containing the symbol, as seen by a header context"},
				"offset": {Type: "integer", Description: "Byte offset of the symbol within file"},
				"relations": {
					Type:        "array",
					Description: "Relation kinds to include (default: all). See info for the valid names.",
					Items:       &jsonschema.Schema{Type: "string"},
				},
			},
		},
	}, s.handleLookup)

	s.server.AddTool(&mcp.Tool{
		Name:        "header_contexts",
		Description: "List the header contexts recorded for a header path.",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"path"},
			Properties: map[string]*jsonschema.Schema{
				"path": {Type: "string", Description: "Header file path"},
			},
		},
	}, s.handleHeaderContexts)
}
