package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunnerConfig configures process execution for run_bash and run_python.
type RunnerConfig struct {
	Shell  string
	Python string
	// Timeout is the hard wall-clock limit per process.
	Timeout time.Duration
	// WaitDelay bounds how long output is still read after the timeout
	// kill. Descendants that left the process group can hold the pipes
	// open; they are closed once it elapses.
	WaitDelay time.Duration
	// DeniedPatterns blocks scripts containing any of these substrings.
	DeniedPatterns []string
	// MaxOutputBytes caps captured stdout and stderr each.
	MaxOutputBytes int
	// Echo, when set, receives process output live.
	Echo io.Writer
}

// DefaultDeniedPatterns blocks commands that would damage the host.
func DefaultDeniedPatterns() []string {
	return []string{
		"rm -rf /",
		"rm -rf /*",
		"mkfs",
		"dd if=/dev/zero of=/dev/",
		"> /dev/sd",
		"chmod -R 777 /",
		":(){ :|:& };:",
	}
}

// ProcessResult is the outcome of one process run.
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Runner executes processes in the workspace root.
type Runner struct {
	cfg    RunnerConfig
	ws     *Workspace
	logger *slog.Logger
}

// NewRunner creates a process runner.
func NewRunner(cfg RunnerConfig, ws *Workspace, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Shell == "" {
		cfg.Shell = "bash"
	}
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Hour
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = 5 * time.Second
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = 100 * 1024
	}
	return &Runner{cfg: cfg, ws: ws, logger: logger.With("component", "runner")}
}

// Blocked returns the denied pattern script contains, if any.
func (r *Runner) Blocked(script string) (string, bool) {
	lower := strings.ToLower(script)
	for _, p := range r.cfg.DeniedPatterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

// Run starts name with args, streams stdout and stderr concurrently,
// and waits for exit. A process still running at the timeout is killed
// along with its children. Only failures to start are returned as errors.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.ws.Root()
	cmd.WaitDelay = r.cfg.WaitDelay
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	r.logger.Debug("process started", "name", name, "pid", cmd.Process.Pid)

	outBuf := &cappedBuffer{max: r.cfg.MaxOutputBytes}
	errBuf := &cappedBuffer{max: r.cfg.MaxOutputBytes}

	var g errgroup.Group
	g.Go(func() error { return r.drain(stdout, outBuf) })
	g.Go(func() error { return r.drain(stderr, errBuf) })
	done := make(chan struct{})
	go r.closeAfterTimeout(ctx, done, stdout, stderr)
	readErr := g.Wait()
	close(done)
	waitErr := cmd.Wait()

	res := &ProcessResult{}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
	} else if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
			errBuf.WriteString("\n" + waitErr.Error())
		}
	}
	if readErr != nil && !res.TimedOut {
		errBuf.WriteString("\nread output: " + readErr.Error())
	}
	res.Stdout = outBuf.String()
	res.Stderr = errBuf.String()

	r.logger.Debug("process finished",
		"name", name,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

// closeAfterTimeout closes the output pipes WaitDelay after ctx ends
// unless the readers finish first.
func (r *Runner) closeAfterTimeout(ctx context.Context, done <-chan struct{}, pipes ...io.Closer) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}
	timer := time.NewTimer(r.cfg.WaitDelay)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		r.logger.Warn("output still open after kill, closing pipes", "wait_delay", r.cfg.WaitDelay)
		for _, p := range pipes {
			p.Close()
		}
	}
}

func (r *Runner) drain(src io.Reader, dst *cappedBuffer) error {
	var w io.Writer = dst
	if r.cfg.Echo != nil {
		w = io.MultiWriter(dst, r.cfg.Echo)
	}
	_, err := io.Copy(w, src)
	if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}

// cappedBuffer keeps the first max bytes written and notes truncation.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) WriteString(s string) {
	b.buf.WriteString(s)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n\n[... output truncated ...]"
	}
	return b.buf.String()
}
