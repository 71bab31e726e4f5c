package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clewhq/clew/internal/tool"
)

// resolvePath joins a user-supplied path with the configured root and
// rejects escapes. An empty root means the process working directory.
func resolvePath(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	// Anchor the root first so a relative root and the joined path agree.
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(rootAbs, path)
	}
	abs = filepath.Clean(abs)
	if abs != rootAbs && !strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", path)
	}
	return abs, nil
}

// ReadFileTool reads a file under the workspace root.
type ReadFileTool struct {
	root string
}

// NewReadFileTool creates the read_file builtin.
func NewReadFileTool(root string) *ReadFileTool { return &ReadFileTool{root: root} }

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) DisplayName() string { return "ReadFile" }
func (t *ReadFileTool) Description() string {
	return "Reads and returns the content of a file inside the workspace."
}

func (t *ReadFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, absolute or relative to the workspace root"}
		},
		"required": ["path"]
	}`)
}

// ShouldConfirmExecute pre-approves reads; they cannot change state.
func (t *ReadFileTool) ShouldConfirmExecute(context.Context, json.RawMessage) (*tool.Confirmation, error) {
	return nil, nil
}

func (t *ReadFileTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, fmt.Errorf("read_file: decode arguments: %w", err)
	}

	path, err := resolvePath(t.root, params.Path)
	if err != nil {
		return tool.Result{Err: err.Error()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("read %s: %v", params.Path, err)}, nil
	}

	content := truncate(string(data))
	return tool.Result{
		LLMContent:    content,
		ReturnDisplay: fmt.Sprintf("Read %d bytes from %s", len(data), params.Path),
	}, nil
}

// WriteFileTool writes a file under the workspace root.
type WriteFileTool struct {
	root string
}

// NewWriteFileTool creates the write_file builtin.
func NewWriteFileTool(root string) *WriteFileTool { return &WriteFileTool{root: root} }

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) DisplayName() string { return "WriteFile" }
func (t *WriteFileTool) Description() string {
	return "Writes content to a file inside the workspace, creating parent directories as needed."
}

func (t *WriteFileTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, absolute or relative to the workspace root"},
			"content": {"type": "string", "description": "Full content to write"}
		},
		"required": ["path", "content"]
	}`)
}

// ShouldConfirmExecute always asks: a write mutates the workspace.
func (t *WriteFileTool) ShouldConfirmExecute(_ context.Context, args json.RawMessage) (*tool.Confirmation, error) {
	var params struct {
		Path string `json:"path"`
	}
	_ = json.Unmarshal(args, &params)

	return &tool.Confirmation{
		Kind:      tool.ConfirmEdit,
		Title:     fmt.Sprintf("Write file %s?", params.Path),
		ToolName:  t.Name(),
		OnConfirm: func(tool.Outcome) {},
	}, nil
}

func (t *WriteFileTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, fmt.Errorf("write_file: decode arguments: %w", err)
	}

	path, err := resolvePath(t.root, params.Path)
	if err != nil {
		return tool.Result{Err: err.Error()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return tool.Result{Err: fmt.Sprintf("write %s: %v", params.Path, err)}, nil
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return tool.Result{Err: fmt.Sprintf("write %s: %v", params.Path, err)}, nil
	}

	msg := fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path)
	return tool.Result{LLMContent: msg, ReturnDisplay: msg}, nil
}

// ListDirectoryTool lists a directory under the workspace root.
type ListDirectoryTool struct {
	root string
}

// NewListDirectoryTool creates the list_directory builtin.
func NewListDirectoryTool(root string) *ListDirectoryTool { return &ListDirectoryTool{root: root} }

func (t *ListDirectoryTool) Name() string        { return "list_directory" }
func (t *ListDirectoryTool) DisplayName() string { return "ListDirectory" }
func (t *ListDirectoryTool) Description() string {
	return "Lists the entries of a directory inside the workspace."
}

func (t *ListDirectoryTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Directory path, absolute or relative to the workspace root"}
		},
		"required": ["path"]
	}`)
}

func (t *ListDirectoryTool) ShouldConfirmExecute(context.Context, json.RawMessage) (*tool.Confirmation, error) {
	return nil, nil
}

func (t *ListDirectoryTool) Execute(_ context.Context, args json.RawMessage) (tool.Result, error) {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return tool.Result{}, fmt.Errorf("list_directory: decode arguments: %w", err)
	}

	path, err := resolvePath(t.root, params.Path)
	if err != nil {
		return tool.Result{Err: err.Error()}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return tool.Result{Err: fmt.Sprintf("list %s: %v", params.Path, err)}, nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	content := truncate(strings.Join(names, "\n"))
	return tool.Result{
		LLMContent:    content,
		ReturnDisplay: fmt.Sprintf("Listed %d entries in %s", len(entries), params.Path),
	}, nil
}

var (
	_ tool.Tool = (*ReadFileTool)(nil)
	_ tool.Tool = (*WriteFileTool)(nil)
	_ tool.Tool = (*ListDirectoryTool)(nil)
)
