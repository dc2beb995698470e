// Savant is an autonomous research agent. Given a task it asks a model
// for a plan, then works through it one tool call at a time (shell,
// code editing, literature search, GitHub, the web) until the model
// submits a result.
//
// Usage:
//
//	savant run -prompt <task>   Plan and execute a task
//	savant history <run_id>     Print the persisted turns of a run
//	savant tools                List the tool catalog in match order
//	savant usage [-days N]      Summarize token usage and cost
//	savant init [dir]           Write a starter config.yaml
//	savant version              Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nugget/savant/internal/buildinfo"
)

// main constructs the OS-level environment and delegates to [run] so
// the whole command can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// globals are the flags accepted before the command name.
type globals struct {
	configPath string
	outputFmt  string
	help       bool
}

// parseArgs splits args into global flags, the command and its
// arguments. Flags after the command belong to the command.
func parseArgs(args []string) (g globals, command string, rest []string, err error) {
	g.outputFmt = "text"
	for i := 0; i < len(args); i++ {
		a := args[i]
		if command != "" {
			rest = append(rest, a)
			continue
		}
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch {
		case a == "-config":
			g.configPath = next()
		case strings.HasPrefix(a, "-config="):
			g.configPath = strings.TrimPrefix(a, "-config=")
		case a == "-o" || a == "--output":
			g.outputFmt = next()
		case strings.HasPrefix(a, "-o=") || strings.HasPrefix(a, "--output="):
			g.outputFmt = a[strings.IndexByte(a, '=')+1:]
		case a == "-h" || a == "-help" || a == "--help":
			g.help = true
		case strings.HasPrefix(a, "-"):
			return g, "", nil, fmt.Errorf("unknown flag: %s", a)
		default:
			command = a
		}
	}
	if g.outputFmt != "text" && g.outputFmt != "json" {
		return g, "", nil, fmt.Errorf("unknown output format: %q (expected text or json)", g.outputFmt)
	}
	return g, command, rest, nil
}

// run is the real entry point. Results go to stdout; logs go to stderr.
// Arguments are parsed by hand so run can be called concurrently from
// tests without the flag package's global state.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	g, command, cmdArgs, err := parseArgs(args)
	if err != nil {
		return err
	}
	if g.help {
		return printUsage(stdout)
	}
	configPath, outputFmt := g.configPath, g.outputFmt

	switch command {
	case "run":
		opts, err := parseRunArgs(cmdArgs)
		if err != nil {
			return err
		}
		return runTask(ctx, stdout, stderr, configPath, outputFmt, opts)
	case "history":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: savant history <run_id>")
		}
		return runHistory(ctx, stdout, stderr, configPath, outputFmt, cmdArgs[0])
	case "tools":
		return runTools(stdout, outputFmt)
	case "usage":
		return runUsage(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		return writeJSON(w, info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Savant - Autonomous Research Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: savant [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run          Plan and execute a task")
	fmt.Fprintln(w, "               -prompt <task>  -provider openai|anthropic  -run-id <n>")
	fmt.Fprintln(w, "  history      Print the turns of a run: history <run_id>")
	fmt.Fprintln(w, "  tools        List the tool catalog in match order")
	fmt.Fprintln(w, "  usage        Summarize token usage: usage [-days N]")
	fmt.Fprintln(w, "  init [dir]   Write a starter config.yaml (default: .)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/savant/config.yaml, /etc/savant/config.yaml")
	return nil
}
