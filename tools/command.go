package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxCommandOutput caps each captured stream, in characters.
	MaxCommandOutput = 30000

	truncationMarker = "\n... (truncated)"
	noOutput         = "(no output)"

	// Grace period for pipes to drain after the process group is killed.
	waitDelay = 2 * time.Second
)

type commandArgs struct {
	Command string `json:"command" jsonschema:"minLength=1,description=The shell command to execute"`
	Timeout int    `json:"timeout,omitempty" jsonschema:"minimum=0,description=Maximum execution time in seconds (default 120)"`
}

// ExecuteCommandTool implements the tool for running shell commands.
type ExecuteCommandTool struct {
	allowedCommands []string
	defaultTimeout  time.Duration
	logger          *zap.Logger
}

func (t *ExecuteCommandTool) Name() string { return "execute_command" }
func (t *ExecuteCommandTool) Description() string {
	desc := "Execute a shell command and return its standard output and standard error."
	if len(t.allowedCommands) == 0 {
		return desc
	}
	var b strings.Builder
	b.WriteString(desc)
	b.WriteString("\nAllowed command patterns:\n")
	for _, cmd := range t.allowedCommands {
		fmt.Fprintf(&b, "- %s\n", cmd)
	}
	return b.String()
}
func (t *ExecuteCommandTool) Schema() json.RawMessage { return SchemaFor(&commandArgs{}) }

func (t *ExecuteCommandTool) Execute(ctx context.Context, raw json.RawMessage) string {
	var args commandArgs
	if err := decodeArgs(raw, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "Error: command must not be empty"
	}
	if !isCommandAllowed(args.Command, t.allowedCommands) {
		return fmt.Sprintf("Skipped: command '%s' is not in the list of allowed commands.", args.Command)
	}

	timeout := t.defaultTimeout
	if args.Timeout > 0 {
		timeout = time.Duration(args.Timeout) * time.Second
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := shellCommand(runCtx, args.Command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	err := cmd.Run()

	if ctx.Err() != nil {
		return "Error: command cancelled"
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		if t.logger != nil {
			t.logger.Info("command timed out", zap.String("command", args.Command), zap.Duration("timeout", timeout))
		}
		return fmt.Sprintf("Error: command timed out after %ss", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64))
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil:
			// The shell exited but a background child still holds its output.
			exitCode = cmd.ProcessState.ExitCode()
		default:
			return fmt.Sprintf("Error: %v", err)
		}
	}
	return formatCommandOutput(stdout.String(), stderr.String(), exitCode)
}

func formatCommandOutput(stdout, stderr string, exitCode int) string {
	var parts []string
	if stdout != "" {
		parts = append(parts, truncate(stdout, MaxCommandOutput))
	}
	if stderr != "" {
		parts = append(parts, "[stderr]\n"+truncate(stderr, MaxCommandOutput))
	}
	if exitCode != 0 {
		parts = append(parts, fmt.Sprintf("[exit code: %d]", exitCode))
	}
	if len(parts) == 0 {
		return noOutput
	}
	return strings.Join(parts, "\n")
}

// truncate keeps the first max characters of s, marking the cut. Invalid
// UTF-8 is replaced first so the cut never splits a character.
func truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "�")
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + truncationMarker
}
