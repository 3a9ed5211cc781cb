// Package tools implements the local capabilities the model can invoke:
// reading, writing and editing files and running shell commands. Every file
// operation passes the path Guard first.
//
// Tools never return Go errors to the caller. Failures are reported in the
// result string, prefixed "Error:" for operational failures and "Skipped:"
// for policy denials.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/m4xw311/they/config"
	"go.uber.org/zap"
)

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON Schema of the argument object.
	Schema() json.RawMessage
	// Execute runs the tool. The result is never empty.
	Execute(ctx context.Context, args json.RawMessage) string
}

// ToolRegistry holds all available tools in registration order.
type ToolRegistry struct {
	tools  map[string]Tool
	order  []string
	logger *zap.Logger
}

// Option configures a ToolRegistry.
type Option func(*ToolRegistry)

// WithLogger sets the logger used to trace tool executions.
func WithLogger(l *zap.Logger) Option {
	return func(r *ToolRegistry) { r.logger = l }
}

// NewToolRegistry registers the built-in tools configured by cfg.
func NewToolRegistry(cfg *config.Config, opts ...Option) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	guard := Guard{Hidden: cfg.FilesystemAccess.Hidden}
	r.Register(&ReadFileTool{guard: guard})
	r.Register(&WriteFileTool{guard: guard})
	r.Register(&EditFileTool{guard: guard})
	r.Register(&ExecuteCommandTool{
		allowedCommands: cfg.AllowedCommands,
		defaultTimeout:  cfg.CommandTimeoutDuration(),
		logger:          r.logger,
	})
	return r
}

// Register adds t, replacing any tool with the same name.
func (r *ToolRegistry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// GetTool looks up a registered tool by name.
func (r *ToolRegistry) GetTool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns the registered tools in registration order.
func (r *ToolRegistry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Execute runs the named tool with args. Unknown tools, arguments that do not
// match the tool's schema and panics inside the tool all become "Error:" results.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (result string) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			result = fmt.Sprintf("Error: tool %s failed: %v", name, p)
		}
		if result == "" {
			result = "(no output)"
		}
		r.logger.Debug("tool executed",
			zap.String("tool", name),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("outcome", outcome(result)))
	}()

	t, ok := r.GetTool(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}
	if err := validateArgs(t.Schema(), args); err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
	}
	return t.Execute(ctx, args)
}

func outcome(result string) string {
	switch {
	case strings.HasPrefix(result, "Error:"):
		return "error"
	case strings.HasPrefix(result, "Skipped:"):
		return "skipped"
	}
	return "ok"
}

// decodeArgs unmarshals tool arguments into v, treating empty input as {}.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return json.Unmarshal(args, v)
}

// isCommandAllowed checks if a command is in the allowlist (with regex support).
// An empty allowlist allows everything.
func isCommandAllowed(command string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if len(strings.Fields(command)) == 0 {
		return false
	}
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Fall back to a literal comparison for patterns that are not valid regexps.
			if command == pattern {
				return true
			}
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}
