package tools

import (
	"context"
	"fmt"
	"os"
)

// Process tool names.
const (
	ToolRunBash   = "run_bash"
	ToolRunPython = "run_python"
)

// ProcessSpecs declares the tools that execute processes.
func ProcessSpecs() []Spec {
	return []Spec{
		{
			Name:        ToolRunPython,
			Description: "Run a Python file on the server with unbuffered output. The script must print whatever you want to see.",
			Params: []Param{
				stringParam("filepath", "Path to the Python file, relative to the workspace root (for example <run_id>/train.py)."),
			},
			Process: true,
		},
		{
			Name:        ToolRunBash,
			Description: "Run a bash script on the server from the workspace root. Interactive commands are not supported.",
			Params: []Param{
				stringParam("script", "The bash script to run."),
			},
			Process: true,
		},
	}
}

type bashArgs struct {
	Script string `json:"script"`
}

type pythonArgs struct {
	Filepath string `json:"filepath"`
}

// Register binds run_bash and run_python.
func (r *Runner) Register(d *Dispatcher) error {
	if err := d.Register(ToolRunBash, Typed(ToolRunBash, r.runBash)); err != nil {
		return err
	}
	return d.Register(ToolRunPython, Typed(ToolRunPython, r.runPython))
}

func (r *Runner) runBash(ctx context.Context, args bashArgs) Result {
	if pattern, blocked := r.Blocked(args.Script); blocked {
		return Failure(ToolRunBash, args.Script, fmt.Errorf("command blocked by security policy: matches denied pattern %q", pattern))
	}
	res, err := r.Run(ctx, r.cfg.Shell, "-c", args.Script)
	if err != nil {
		return Failure(ToolRunBash, args.Script, err)
	}
	return r.processResult(ToolRunBash, args.Script, res)
}

func (r *Runner) runPython(ctx context.Context, args pythonArgs) Result {
	path, err := r.ws.Resolve(args.Filepath)
	if err != nil {
		return Failure(ToolRunPython, args.Filepath, err)
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return Failure(ToolRunPython, args.Filepath, fmt.Errorf("file not found: %s", args.Filepath))
	}
	res, err := r.Run(ctx, r.cfg.Python, "-u", path)
	if err != nil {
		return Failure(ToolRunPython, args.Filepath, err)
	}
	return r.processResult(ToolRunPython, args.Filepath, res)
}

func (r *Runner) processResult(tool, attempt string, res *ProcessResult) Result {
	code := res.ExitCode
	out := Result{
		Tool:       tool,
		Status:     StatusSuccess,
		Attempt:    attempt,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ReturnCode: &code,
	}
	switch {
	case res.TimedOut:
		out.Status = StatusFailure
		out.Stderr = joinNonEmpty(out.Stderr, fmt.Sprintf("Command timed out after %s", r.cfg.Timeout))
	case res.ExitCode != 0:
		out.Status = StatusFailure
	}
	return out
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}
