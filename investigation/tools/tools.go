// Package tools implements ports.ToolInvoker (§6.4) by dispatching OSINT/
// threat-intel tool calls to an MCP server over the official SDK, fanning
// requested tools out concurrently with a shared deadline via errgroup.
// Grounded on the MCP server wiring in the retrieved tareqmamari-cloud-logs-mcp
// repo (internal/server/server.go's mcp.NewServer/mcp.Implementation
// construction); the pack carries no MCP *client* example, so the client-side
// Connect/CallTool sequence follows the SDK's documented client API directly.
package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/olorin-ai/hybrid-investigator/internal/errors"
	"github.com/olorin-ai/hybrid-investigator/investigation/ports"
	"github.com/olorin-ai/hybrid-investigator/investigation/state"
)

// Transport abstracts the MCP SDK's mcp.Transport so tests can substitute an
// in-memory pipe instead of spawning a real tool server.
type Transport = mcpsdk.Transport

// Options configures the MCP-backed invoker.
type Options struct {
	ClientName    string
	ClientVersion string
}

// MCPToolInvoker is the ports.ToolInvoker implementation backed by a single
// MCP server session exposing the OSINT/threat-intel tool set by name.
// It satisfies ports.ToolInvoker once Connect has established a session.
type MCPToolInvoker struct {
	client  *mcpsdk.Client
	session *mcpsdk.ClientSession
	logger  logrus.FieldLogger
}

// New builds an MCPToolInvoker. Connect must be called before InvokeTools.
func New(opts Options, logger logrus.FieldLogger) *MCPToolInvoker {
	if opts.ClientName == "" {
		opts.ClientName = "hybrid-investigator"
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    opts.ClientName,
		Version: opts.ClientVersion,
	}, nil)
	return &MCPToolInvoker{client: client, logger: logger}
}

// Connect establishes the MCP session over the given transport (typically a
// stdio transport wrapping a spawned tool-server process, or an SSE client
// transport for a remote one) and retains it for subsequent InvokeTools
// calls.
func (i *MCPToolInvoker) Connect(ctx context.Context, transport Transport) error {
	session, err := i.client.Connect(ctx, transport, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeTool, "mcp client connect failed")
	}
	i.session = session
	return nil
}

// Close releases the underlying MCP session, if one is open.
func (i *MCPToolInvoker) Close() error {
	if i.session == nil {
		return nil
	}
	return i.session.Close()
}

// InvokeTools satisfies ports.ToolInvoker: each requested tool is called
// concurrently against the connected session, bounded by deadline. A single
// tool's failure is recorded as a skipped entry and does not fail the others
// (§6.4); the call only returns an error if every requested tool failed, or
// if no session has been established.
func (i *MCPToolInvoker) InvokeTools(ctx context.Context, requested []string, snapshot state.InvestigationState, deadline time.Time) (ports.ToolResult, error) {
	if len(requested) == 0 {
		return ports.ToolResult{}, nil
	}
	if i.session == nil {
		return ports.ToolResult{}, apperrors.New(apperrors.ErrorTypeTool, "mcp tool invoker has no active session")
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	results := make(map[string]interface{}, len(requested))
	used := make([]string, 0, len(requested))
	failures := make([]string, 0)

	args := toolArguments(snapshot)

	for _, toolName := range requested {
		toolName := toolName
		group.Go(func() error {
			result, callErr := i.session.CallTool(groupCtx, &mcpsdk.CallToolParams{
				Name:      toolName,
				Arguments: args,
			})

			if callErr == nil && result != nil && result.IsError {
				callErr = fmt.Errorf("tool %s reported an error", toolName)
			}

			mu.Lock()
			defer mu.Unlock()
			if callErr != nil {
				failures = append(failures, toolName)
				i.logger.WithError(callErr).WithField("tool", toolName).Warn("mcp tool call failed")
				return nil
			}
			results[toolName] = extractContent(result)
			used = append(used, toolName)
			return nil
		})
	}

	// group.Wait only returns an error if a Go func itself returned one;
	// individual tool failures are swallowed above so partial results
	// still make it back to the caller.
	_ = group.Wait()

	if len(used) == 0 && len(failures) > 0 {
		return ports.ToolResult{}, apperrors.New(apperrors.ErrorTypeTool, fmt.Sprintf("all requested tools failed: %v", failures))
	}

	return ports.ToolResult{ToolResults: results, ToolsUsed: used}, nil
}

// toolArguments projects the state snapshot fields every tool needs
// (entity identity plus whatever snowflake data has accumulated so far).
func toolArguments(snapshot state.InvestigationState) map[string]interface{} {
	return map[string]interface{}{
		"investigation_id": snapshot.InvestigationID,
		"entity_id":        snapshot.EntityID,
		"entity_type":      string(snapshot.EntityType),
		"snowflake_data":   snapshot.SnowflakeData,
	}
}

// extractContent flattens an MCP CallToolResult's content blocks into a
// plain value usable as a ToolResult entry.
func extractContent(result *mcpsdk.CallToolResult) interface{} {
	if result == nil {
		return nil
	}
	if result.StructuredContent != nil {
		return result.StructuredContent
	}
	texts := make([]string, 0, len(result.Content))
	for _, block := range result.Content {
		if text, ok := block.(*mcpsdk.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	if len(texts) == 1 {
		return texts[0]
	}
	return texts
}
