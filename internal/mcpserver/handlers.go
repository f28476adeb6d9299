package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/idx"
)

// relationKindsByName mirrors idx.RelationKind's String() table in
// reverse, so lookup's "relations" parameter can name kinds the way a
// client would read them back from another tool's output.
var relationKindsByName = map[string]idx.RelationKind{
	"declaration":     idx.RelationDeclaration,
	"definition":      idx.RelationDefinition,
	"reference":       idx.RelationReference,
	"read":            idx.RelationRead,
	"write":           idx.RelationWrite,
	"interface":       idx.RelationInterface,
	"implementation":  idx.RelationImplementation,
	"type_definition": idx.RelationTypeDefinition,
	"base":            idx.RelationBase,
	"derived":         idx.RelationDerived,
	"constructor":     idx.RelationConstructor,
	"destructor":      idx.RelationDestructor,
	"caller":          idx.RelationCaller,
	"callee":          idx.RelationCallee,
}

func parseRelationMask(names []string) (idx.RelationKind, error) {
	if len(names) == 0 {
		return idx.AllRelationKinds, nil
	}
	var mask idx.RelationKind
	for _, name := range names {
		kind, ok := relationKindsByName[name]
		if !ok {
			return 0, fmt.Errorf("unknown relation kind %q", name)
		}
		mask |= kind
	}
	return mask, nil
}

func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return createJSONResponse(map[string]interface{}{
		"tools": []map[string]string{
			{"name": "index_add", "description": "schedule a file for indexing"},
			{"name": "index_remove", "description": "drop a translation unit"},
			{"name": "index_all", "description": "index the whole compilation database"},
			{"name": "lookup", "description": "resolve references to the symbol at file:offset"},
			{"name": "header_contexts", "description": "list header contexts recorded for a header"},
		},
		"relation_kinds": relationKindNames(),
	})
}

func relationKindNames() []string {
	names := make([]string, 0, len(relationKindsByName))
	for name := range relationKindsByName {
		names = append(names, name)
	}
	return names
}

// IndexAddParams names the file to schedule for indexing.
type IndexAddParams struct {
	File string `json:"file"`
}

func (s *Server) handleIndexAdd(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexAddParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("index_add", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.File == "" {
		return createErrorResponse("index_add", fmt.Errorf("file is required"))
	}

	debug.LogMCP("index_add %s", params.File)
	s.eng.Add(params.File)

	return createJSONResponse(map[string]interface{}{"success": true, "file": params.File})
}

// IndexRemoveParams names the file to drop.
type IndexRemoveParams struct {
	File string `json:"file"`
}

func (s *Server) handleIndexRemove(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params IndexRemoveParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("index_remove", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.File == "" {
		return createErrorResponse("index_remove", fmt.Errorf("file is required"))
	}

	debug.LogMCP("index_remove %s", params.File)
	s.eng.Remove(params.File)

	return createJSONResponse(map[string]interface{}{"success": true, "file": params.File})
}

func (s *Server) handleIndexAll(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	debug.LogMCP("index_all: scheduling full compilation database")
	s.eng.IndexAll()
	s.eng.Wait()

	return createJSONResponse(map[string]interface{}{"success": true})
}

// LookupParams locates the symbol to resolve and the relation kinds to
// include in the response.
type LookupParams struct {
	File      string   `json:"file"`
	Offset    uint32   `json:"offset"`
	Relations []string `json:"relations,omitempty"`
}

// LookupResponse mirrors lookup.Location in a plain JSON shape.
type LookupResponse struct {
	Locations []LookupLocation `json:"locations"`
}

// LookupLocation is one resolved reference.
type LookupLocation struct {
	Path  string `json:"path"`
	Begin uint32 `json:"begin"`
	End   uint32 `json:"end"`
}

func (s *Server) handleLookup(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params LookupParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("lookup", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.File == "" {
		return createErrorResponse("lookup", fmt.Errorf("file is required"))
	}

	mask, err := parseRelationMask(params.Relations)
	if err != nil {
		return createErrorResponse("lookup", err)
	}

	debug.LogMCP("lookup %s:%d mask=%v", params.File, params.Offset, mask)
	locations, err := s.eng.Lookup(params.File, params.Offset, mask)
	if err != nil {
		return createErrorResponse("lookup", err)
	}

	resp := LookupResponse{Locations: make([]LookupLocation, 0, len(locations))}
	for _, loc := range locations {
		resp.Locations = append(resp.Locations, LookupLocation{
			Path:  loc.Path,
			Begin: loc.Range.Begin,
			End:   loc.Range.End,
		})
	}

	return createJSONResponse(resp)
}

// HeaderContextsParams names the header whose contexts are requested.
type HeaderContextsParams struct {
	Path string `json:"path"`
}

// HeaderContextsResponse lists the header contexts recorded for a path.
type HeaderContextsResponse struct {
	Path     string            `json:"path"`
	Contexts []HeaderContextOut `json:"contexts"`
}

// HeaderContextOut mirrors headerindex.HeaderContext in a plain JSON shape.
type HeaderContextOut struct {
	Include uint32 `json:"include"`
	HctxID  uint32 `json:"hctx_id"`
	CctxID  uint32 `json:"cctx_id"`
}

func (s *Server) handleHeaderContexts(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params HeaderContextsParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return createErrorResponse("header_contexts", fmt.Errorf("invalid parameters: %w", err))
	}
	if params.Path == "" {
		return createErrorResponse("header_contexts", fmt.Errorf("path is required"))
	}

	contexts := s.eng.ContextsOf(params.Path)
	resp := HeaderContextsResponse{Path: params.Path, Contexts: make([]HeaderContextOut, 0, len(contexts))}
	for _, c := range contexts {
		resp.Contexts = append(resp.Contexts, HeaderContextOut{Include: c.Include, HctxID: c.HctxID, CctxID: c.CctxID})
	}

	return createJSONResponse(resp)
}
