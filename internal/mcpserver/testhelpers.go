package mcpserver

// CallTool dispatches directly to a tool's handler, bypassing the stdio
// transport. Grounded on the teacher's internal/mcp/test_helpers.go
// CallTool: exported (not _test.go) so it still compiles for callers
// outside this package's own test files, e.g. a future cmd/hctxindex
// integration test.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// CallTool invokes toolName's handler with params marshaled to JSON and
// returns the result's text content.
func (s *Server) CallTool(toolName string, params map[string]interface{}) (string, error) {
	ctx := context.Background()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      toolName,
			Arguments: paramsJSON,
		},
	}

	var result *mcp.CallToolResult
	switch toolName {
	case "info":
		result, err = s.handleInfo(ctx, req)
	case "index_add":
		result, err = s.handleIndexAdd(ctx, req)
	case "index_remove":
		result, err = s.handleIndexRemove(ctx, req)
	case "index_all":
		result, err = s.handleIndexAll(ctx, req)
	case "lookup":
		result, err = s.handleLookup(ctx, req)
	case "header_contexts":
		result, err = s.handleHeaderContexts(ctx, req)
	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
	if err != nil {
		return "", err
	}

	if len(result.Content) == 0 {
		return "", nil
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		return "", fmt.Errorf("tool %s returned non-text content", toolName)
	}
	return text.Text, nil
}
