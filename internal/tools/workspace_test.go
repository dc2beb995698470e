package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWorkspacePrepareRun(t *testing.T) {
	ws, err := NewWorkspace(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatal(err)
	}

	dir, err := ws.PrepareRun(1234)
	if err != nil {
		t.Fatalf("PrepareRun: %v", err)
	}
	if dir != filepath.Join(ws.Root(), "1234") {
		t.Errorf("dir = %q", dir)
	}
	pad := filepath.Join(dir, ScratchpadFile)
	if got := readFile(t, pad); got != scratchpadHeader+"\n" {
		t.Errorf("scratchpad = %q", got)
	}

	if err := os.WriteFile(pad, []byte("my notes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.PrepareRun(1234); err != nil {
		t.Fatalf("second PrepareRun: %v", err)
	}
	if got := readFile(t, pad); got != "my notes\n" {
		t.Errorf("existing scratchpad overwritten: %q", got)
	}
}

func TestWorkspaceResolve(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root := ws.Root()

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{path: "1/a.py", want: filepath.Join(root, "1", "a.py")},
		{path: "./1/../2/b.py", want: filepath.Join(root, "2", "b.py")},
		{path: filepath.Join(root, "c.txt"), want: filepath.Join(root, "c.txt")},
		{path: "../escape.txt", wantErr: true},
		{path: "/etc/passwd", wantErr: true},
		{path: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ws.Resolve(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("Resolve(%q) err = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
