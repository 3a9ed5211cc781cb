package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type readArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Absolute or relative path to the file"`
	Offset   int    `json:"offset,omitempty" jsonschema:"minimum=0,description=First line to read (1-based). 0 reads from the beginning"`
	Limit    int    `json:"limit,omitempty" jsonschema:"minimum=0,description=Maximum number of lines to read. 0 reads to the end"`
}

// ReadFileTool implements the tool for reading a file with line numbers.
type ReadFileTool struct {
	guard Guard
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read a file and return its contents with line numbers. Use offset and limit to select a line range."
}
func (t *ReadFileTool) Schema() json.RawMessage { return SchemaFor(&readArgs{}) }

func (t *ReadFileTool) Execute(ctx context.Context, raw json.RawMessage) string {
	var args readArgs
	if err := decodeArgs(raw, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if v := t.guard.Check(args.FilePath); !v.Allowed {
		return v.Reason
	}

	info, err := os.Stat(args.FilePath)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: file not found: %s", args.FilePath)
	}
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: not a file: %s", args.FilePath)
	}

	data, err := os.ReadFile(args.FilePath)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return formatLines(filepath.Base(args.FilePath), splitLines(string(data)), args.Offset, args.Limit)
}

// splitLines splits content into lines with their terminators removed. A
// trailing newline does not start an extra empty line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r\n")
	}
	return lines
}

func formatLines(name string, lines []string, offset, limit int) string {
	total := len(lines)
	start := 0
	if offset > 0 {
		start = offset - 1
	}
	if start > total {
		start = total
	}
	end := total
	if limit > 0 && start+limit < total {
		end = start + limit
	}
	selected := lines[start:end]
	if len(selected) == 0 {
		return fmt.Sprintf("[%s] no lines in range (file has %d lines)", name, total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] lines %d-%d of %d", name, start+1, start+len(selected), total)
	for i, line := range selected {
		fmt.Fprintf(&b, "\n%6d\t%s", start+i+1, line)
	}
	return b.String()
}

type writeArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Absolute or relative path to the file"`
	Content  string `json:"content" jsonschema:"description=The full content to write"`
}

// WriteFileTool implements the tool for writing to a file.
type WriteFileTool struct {
	guard Guard
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file, replacing it entirely. Parent directories are created automatically."
}
func (t *WriteFileTool) Schema() json.RawMessage { return SchemaFor(&writeArgs{}) }

func (t *WriteFileTool) Execute(ctx context.Context, raw json.RawMessage) string {
	var args writeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if v := t.guard.Check(args.FilePath); !v.Allowed {
		return v.Reason
	}

	if err := os.MkdirAll(filepath.Dir(args.FilePath), 0o755); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if err := writeFileAtomic(args.FilePath, []byte(args.Content)); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(args.Content), args.FilePath)
}

// writeFileAtomic replaces path with data through a temporary file in the
// same directory. Existing permission bits are kept.
func writeFileAtomic(path string, data []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type editArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path to the file to edit"`
	OldText  string `json:"old_text" jsonschema:"minLength=1,description=The exact text to find (first match only)"`
	NewText  string `json:"new_text" jsonschema:"description=The replacement text"`
}

// EditFileTool replaces the first occurrence of a literal string in a file.
type EditFileTool struct {
	guard Guard
}

func (t *EditFileTool) Name() string { return "edit_file" }
func (t *EditFileTool) Description() string {
	return "Replace the first occurrence of old_text with new_text in a file. old_text must match exactly."
}
func (t *EditFileTool) Schema() json.RawMessage { return SchemaFor(&editArgs{}) }

func (t *EditFileTool) Execute(ctx context.Context, raw json.RawMessage) string {
	var args editArgs
	if err := decodeArgs(raw, &args); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if v := t.guard.Check(args.FilePath); !v.Allowed {
		return v.Reason
	}

	data, err := os.ReadFile(args.FilePath)
	if os.IsNotExist(err) {
		return fmt.Sprintf("Error: file not found: %s", args.FilePath)
	}
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	content := string(data)
	if args.OldText == "" || !strings.Contains(content, args.OldText) {
		return fmt.Sprintf("Error: old_text not found in %s. Use read_file to verify the current file contents.", args.FilePath)
	}
	updated := strings.Replace(content, args.OldText, args.NewText, 1)
	if err := writeFileAtomic(args.FilePath, []byte(updated)); err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Replaced 1 occurrence in %s", args.FilePath)
}
