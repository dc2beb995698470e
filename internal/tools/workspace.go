package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ScratchpadFile is created in every run directory.
const ScratchpadFile = "scratchpad.txt"

// scratchpadHeader is the first line of a new scratchpad.
const scratchpadHeader = "This is a scratchpad file for you to write notes on your task."

// Workspace confines file operations to a root directory. Each run
// works in a subdirectory named after its run ID.
type Workspace struct {
	root string
}

// NewWorkspace resolves root to an absolute path and creates it.
func NewWorkspace(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", abs, err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// RunDir returns the absolute directory for a run.
func (w *Workspace) RunDir(runID int64) string {
	return filepath.Join(w.root, strconv.FormatInt(runID, 10))
}

// PrepareRun creates the run directory and its scratchpad. An existing
// scratchpad is left as it is.
func (w *Workspace) PrepareRun(runID int64) (string, error) {
	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	pad := filepath.Join(dir, ScratchpadFile)
	f, err := os.OpenFile(pad, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case err == nil:
		defer f.Close()
		if _, err := f.WriteString(scratchpadHeader + "\n"); err != nil {
			return "", fmt.Errorf("write scratchpad: %w", err)
		}
	case !os.IsExist(err):
		return "", fmt.Errorf("create scratchpad: %w", err)
	}
	return dir, nil
}

// Resolve maps a model-supplied path to an absolute path inside the
// workspace. Relative paths are taken from the root.
func (w *Workspace) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(w.root, path)
	}
	if abs != w.root && !strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return abs, nil
}
