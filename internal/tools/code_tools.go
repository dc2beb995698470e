package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Code editing tool names.
const (
	ToolWriteCode   = "write_code"
	ToolInsertCode  = "insert_code"
	ToolReplaceCode = "replace_code"
	ToolDeleteCode  = "delete_code"
)

// CodeSpecs declares the file editing tools.
func CodeSpecs() []Spec {
	return []Spec{
		{
			Name:        ToolWriteCode,
			Description: "Write code to a file, replacing any existing content. Parent directories are created.",
			Params: []Param{
				stringParam("path", "File path relative to the workspace root."),
				stringParam("code", "The complete file content."),
			},
		},
		{
			Name:        ToolInsertCode,
			Description: "Insert new code immediately before the first occurrence of a target snippet in a file.",
			Params: []Param{
				stringParam("path", "File path relative to the workspace root."),
				stringParam("target", "Existing code snippet before which the new code is inserted."),
				stringParam("new_code", "The code to insert."),
			},
		},
		{
			Name:        ToolReplaceCode,
			Description: "Replace every occurrence of a code snippet in a file.",
			Params: []Param{
				stringParam("path", "File path relative to the workspace root."),
				stringParam("old_code", "The code to replace."),
				stringParam("new_code", "The replacement code."),
			},
		},
		{
			Name:        ToolDeleteCode,
			Description: "Delete every occurrence of a code snippet from a file.",
			Params: []Param{
				stringParam("path", "File path relative to the workspace root."),
				stringParam("target", "The code to delete."),
			},
		},
	}
}

// CodeEditor implements the file editing tools.
type CodeEditor struct {
	ws *Workspace
}

// NewCodeEditor creates an editor confined to ws.
func NewCodeEditor(ws *Workspace) *CodeEditor {
	return &CodeEditor{ws: ws}
}

// Register binds the code editing tools.
func (e *CodeEditor) Register(d *Dispatcher) error {
	return errors.Join(
		d.Register(ToolWriteCode, Typed(ToolWriteCode, e.write)),
		d.Register(ToolInsertCode, Typed(ToolInsertCode, e.insert)),
		d.Register(ToolReplaceCode, Typed(ToolReplaceCode, e.replace)),
		d.Register(ToolDeleteCode, Typed(ToolDeleteCode, e.delete)),
	)
}

type writeArgs struct {
	Path string `json:"path"`
	Code string `json:"code"`
}

type insertArgs struct {
	Path    string `json:"path"`
	Target  string `json:"target"`
	NewCode string `json:"new_code"`
}

type replaceArgs struct {
	Path    string `json:"path"`
	OldCode string `json:"old_code"`
	NewCode string `json:"new_code"`
}

type deleteArgs struct {
	Path   string `json:"path"`
	Target string `json:"target"`
}

func (e *CodeEditor) write(_ context.Context, args writeArgs) Result {
	path, err := e.ws.Resolve(args.Path)
	if err != nil {
		return Failure(ToolWriteCode, "You tried to write code to "+args.Path+" but it failed", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Failure(ToolWriteCode, "You tried to write code to "+args.Path+" but it failed", err)
	}
	if err := os.WriteFile(path, []byte(args.Code), 0o644); err != nil {
		return Failure(ToolWriteCode, "You tried to write code to "+args.Path+" but it failed", err)
	}
	return Success(ToolWriteCode, "You wrote code to "+args.Path, "You wrote this code:\n"+args.Code)
}

func (e *CodeEditor) insert(_ context.Context, args insertArgs) Result {
	path, content, err := e.load(args.Path)
	if err != nil {
		return Failure(ToolInsertCode, "You tried to insert code in "+args.Path+" but it failed", err)
	}
	if content == "" {
		return Failure(ToolInsertCode, "You tried to insert code in "+args.Path+" but it failed", errors.New("no code found in the file"))
	}
	i := strings.Index(content, args.Target)
	if args.Target == "" || i < 0 {
		return Failure(ToolInsertCode, "You tried to insert code before "+args.Target+" but it failed", errors.New("target code not found"))
	}
	updated := content[:i] + args.NewCode + content[i:]
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return Failure(ToolInsertCode, "You tried to insert code in "+args.Path+" but it failed", err)
	}
	return Success(ToolInsertCode, "You inserted code in "+args.Path, "Inserted code before "+args.Target)
}

func (e *CodeEditor) replace(_ context.Context, args replaceArgs) Result {
	path, content, err := e.load(args.Path)
	if err != nil {
		return Failure(ToolReplaceCode, "You tried to replace code in "+args.Path+" but it failed", err)
	}
	if content == "" {
		return Failure(ToolReplaceCode, "You tried to replace code in "+args.Path+" but it failed", errors.New("no code found in the file"))
	}
	if args.OldCode == "" || !strings.Contains(content, args.OldCode) {
		return Failure(ToolReplaceCode, "You tried to replace code in "+args.Path+" but it failed", errors.New("code to replace not found"))
	}
	n := strings.Count(content, args.OldCode)
	updated := strings.ReplaceAll(content, args.OldCode, args.NewCode)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return Failure(ToolReplaceCode, "You tried to replace code in "+args.Path+" but it failed", err)
	}
	return Success(ToolReplaceCode, "You replaced code in "+args.Path,
		fmt.Sprintf("This code %s was replaced with %s (%d occurrences)", args.OldCode, args.NewCode, n))
}

func (e *CodeEditor) delete(_ context.Context, args deleteArgs) Result {
	path, content, err := e.load(args.Path)
	if err != nil {
		return Failure(ToolDeleteCode, "You tried to delete "+args.Target+" but it failed", err)
	}
	if content == "" {
		return Failure(ToolDeleteCode, "You tried to delete "+args.Target+" but it failed", errors.New("no code found in the file"))
	}
	if args.Target == "" || !strings.Contains(content, args.Target) {
		return Failure(ToolDeleteCode, "You tried to delete "+args.Target+" but it failed", errors.New("target code not found"))
	}
	updated := strings.ReplaceAll(content, args.Target, "")
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return Failure(ToolDeleteCode, "You tried to delete "+args.Target+" but it failed", err)
	}
	return Success(ToolDeleteCode, "You deleted code in "+args.Path, "This code "+args.Target+" was deleted")
}

// load reads a file, creating it empty when it does not exist.
func (e *CodeEditor) load(rel string) (string, string, error) {
	path, err := e.ws.Resolve(rel)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", "", err
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return "", "", err
		}
		return path, "", nil
	}
	if err != nil {
		return "", "", err
	}
	return path, string(data), nil
}
