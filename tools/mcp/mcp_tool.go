// Package mcp exposes tools served by external Model Context Protocol servers
// so they can be registered next to the built-in tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/m4xw311/they/config"
	"github.com/m4xw311/they/errors"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const clientVersion = "v1.0.0"

// MCPClient manages the connection to a single MCP server.
type MCPClient struct {
	Name    string
	session *mcpsdk.ClientSession
	tools   []*MCPTool
}

// StartAll launches every configured server over stdio. Servers that fail to
// start are logged and skipped.
func StartAll(ctx context.Context, servers []config.MCPServer, logger *zap.Logger) []*MCPClient {
	var clients []*MCPClient
	for _, s := range servers {
		c, err := NewMCPClient(ctx, s.Name, s.Command, s.Args)
		if err != nil {
			logger.Warn("mcp server unavailable", zap.String("server", s.Name), zap.Error(err))
			continue
		}
		logger.Info("mcp server started", zap.String("server", s.Name), zap.Int("tools", len(c.tools)))
		clients = append(clients, c)
	}
	return clients
}

// NewMCPClient starts the MCP server subprocess and discovers its tools.
func NewMCPClient(ctx context.Context, name, command string, args []string) (*MCPClient, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	return Connect(ctx, name, &mcpsdk.CommandTransport{Command: cmd, TerminateDuration: 2 * time.Second})
}

// Connect opens a session over transport and lists the server's tools,
// following pagination cursors.
func Connect(ctx context.Context, name string, transport mcpsdk.Transport) (*MCPClient, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "they", Version: clientVersion}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to MCP server '%s'", name)
	}

	c := &MCPClient{Name: name, session: session}
	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := session.ListTools(ctx, params)
		if err != nil {
			session.Close()
			return nil, errors.Wrapf(err, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			c.tools = append(c.tools, &MCPTool{
				toolName:    t.Name,
				description: t.Description,
				schema:      inputSchema(t.InputSchema),
				client:      c,
			})
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}
	return c, nil
}

// Tools returns the tools this server provides.
func (c *MCPClient) Tools() []*MCPTool {
	return c.tools
}

// Stop closes the session, which terminates a stdio server subprocess.
func (c *MCPClient) Stop() error {
	if c.session == nil {
		return nil
	}
	return c.session.Close()
}

func inputSchema(s any) json.RawMessage {
	if s == nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return data
}

// MCPTool represents a tool available from an external MCP server.
type MCPTool struct {
	toolName    string
	description string
	schema      json.RawMessage
	client      *MCPClient
}

// Name returns the tool name as the server reports it. Provider APIs reject
// separators such as ':' in tool names, so the server name is not prefixed.
func (t *MCPTool) Name() string {
	return t.toolName
}

// Description returns the tool's description, provided by the MCP server.
func (t *MCPTool) Description() string {
	if t.description == "" {
		return fmt.Sprintf("Tool %s provided by MCP server %s.", t.toolName, t.client.Name)
	}
	return t.description
}

func (t *MCPTool) Schema() json.RawMessage {
	return t.schema
}

// Execute sends the arguments to the MCP server and returns the text content
// of the result.
func (t *MCPTool) Execute(ctx context.Context, args json.RawMessage) string {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := t.client.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return fmt.Sprintf("Error: %v", errors.Wrapf(err, "failed to call tool '%s'", t.toolName))
	}

	var b strings.Builder
	for _, c := range result.Content {
		switch c := c.(type) {
		case *mcpsdk.TextContent:
			b.WriteString(c.Text)
		default:
			fmt.Fprintf(&b, "[%T content omitted]", c)
		}
	}
	out := b.String()
	if result.IsError {
		return "Error: " + out
	}
	if out == "" {
		return "(no output)"
	}
	return out
}
