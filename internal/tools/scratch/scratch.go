// Package scratch exposes the sandboxed working filesystem to the model.
package scratch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/steward/internal/agent"
	"github.com/haasonsaas/steward/internal/scratch"
)

// WriteTool stores text files in the scratch space.
type WriteTool struct {
	space *scratch.Space
}

func NewWriteTool(space *scratch.Space) *WriteTool {
	return &WriteTool{space: space}
}

type writeArgs struct {
	Path    string `json:"path" jsonschema:"description=Relative path of the file to write"`
	Content string `json:"content" jsonschema:"description=Full file contents; replaces any existing file"`
}

func (t *WriteTool) Name() string     { return "write_file" }
func (t *WriteTool) Category() string { return "files" }

func (t *WriteTool) Description() string {
	return "Write a file in the scratch space, replacing it if it exists."
}

func (t *WriteTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&writeArgs{})
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in writeArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}
	if err := t.space.Write(in.Path, []byte(in.Content)); err != nil {
		return agent.ErrorResult("%v", err)
	}
	return agent.DataResult(map[string]any{
		"path":  in.Path,
		"bytes": len(in.Content),
	})
}

// ReadTool returns a file's contents.
type ReadTool struct {
	space *scratch.Space
}

func NewReadTool(space *scratch.Space) *ReadTool {
	return &ReadTool{space: space}
}

type readArgs struct {
	Path string `json:"path" jsonschema:"description=Relative path of the file to read"`
}

func (t *ReadTool) Name() string        { return "read_file" }
func (t *ReadTool) Category() string    { return "files" }
func (t *ReadTool) Description() string { return "Read a file from the scratch space." }

func (t *ReadTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&readArgs{})
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in readArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}
	data, err := t.space.Read(in.Path)
	if err != nil {
		return agent.ErrorResult("%v", err)
	}
	return agent.DataResult(map[string]any{
		"path":    in.Path,
		"content": string(data),
	})
}

// ListTool enumerates scratch files.
type ListTool struct {
	space *scratch.Space
}

func NewListTool(space *scratch.Space) *ListTool {
	return &ListTool{space: space}
}

type listArgs struct{}

func (t *ListTool) Name() string        { return "list_files" }
func (t *ListTool) Category() string    { return "files" }
func (t *ListTool) Description() string { return "List every file in the scratch space." }

func (t *ListTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&listArgs{})
}

func (t *ListTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	entries, err := t.space.List()
	if err != nil {
		return agent.ErrorResult("%v", err)
	}
	files := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		files = append(files, map[string]any{
			"name":      e.Name,
			"size":      e.Size,
			"modified":  e.Modified.Format("2006-01-02T15:04:05Z07:00"),
			"age_hours": fmt.Sprintf("%.1f", e.AgeHours),
		})
	}
	return agent.DataResult(map[string]any{"files": files, "count": len(files)})
}

// DeleteTool removes a file.
type DeleteTool struct {
	space *scratch.Space
}

func NewDeleteTool(space *scratch.Space) *DeleteTool {
	return &DeleteTool{space: space}
}

type deleteArgs struct {
	Path string `json:"path" jsonschema:"description=Relative path of the file to delete"`
}

func (t *DeleteTool) Name() string        { return "delete_file" }
func (t *DeleteTool) Category() string    { return "files" }
func (t *DeleteTool) Description() string { return "Delete a file from the scratch space." }

func (t *DeleteTool) Schema() json.RawMessage {
	return agent.MustSchemaFor(&deleteArgs{})
}

func (t *DeleteTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	var in deleteArgs
	if err := decodeArgs(args, &in); err != nil {
		return agent.ErrorResult("invalid arguments: %v", err)
	}
	if err := t.space.Delete(in.Path); err != nil {
		return agent.ErrorResult("%v", err)
	}
	return agent.DataResult(map[string]any{"deleted": in.Path})
}

func decodeArgs(args map[string]any, out any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
