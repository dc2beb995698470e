package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/savant/internal/config"
	"github.com/nugget/savant/internal/llm"
	"github.com/nugget/savant/internal/memory"
	"github.com/nugget/savant/internal/prompts"
	"github.com/nugget/savant/internal/tools"
	"github.com/nugget/savant/internal/usage"
)

// Sentinel values for turns that did not come from a tool.
const (
	ToolStarting    = "starting"
	StatusStarting  = "started"
	startingAttempt = "You are starting the task"
	startingOutput  = "This is your first attempt"
	invalidResponse = "Invalid response"
	useToolNudge    = "You must now use a tool to complete the task"
)

// ErrTurnLimit is returned alongside a partial result when a run
// reaches its configured maximum number of model calls.
var ErrTurnLimit = errors.New("turn limit reached")

// Config tunes the worker loop.
type Config struct {
	TaskDuration    time.Duration
	ShortTermTurns  int
	MaxTurns        int
	TerminationTool string
	// SubstringTermination also ends a run when an attempt text
	// contains TerminationTool.
	SubstringTermination bool
}

// ConfigFrom maps the loaded worker configuration.
func ConfigFrom(c config.WorkerConfig) Config {
	return Config{
		TaskDuration:         c.TaskDuration,
		ShortTermTurns:       c.ShortTermTurns,
		MaxTurns:             c.MaxTurns,
		TerminationTool:      c.TerminationTool,
		SubstringTermination: c.SubstringTermination == nil || *c.SubstringTermination,
	}
}

// Worker runs the subtask loop. A Worker holds no per-run state and may
// serve concurrent runs with distinct run IDs.
type Worker struct {
	gateway    *llm.Gateway
	dispatcher *tools.Dispatcher
	store      memory.Store
	workspace  *tools.Workspace
	usage      *usage.Recorder
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewWorker creates a worker. usage may be nil.
func NewWorker(gw *llm.Gateway, d *tools.Dispatcher, store memory.Store, ws *tools.Workspace, rec *usage.Recorder, cfg Config, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShortTermTurns <= 0 {
		cfg.ShortTermTurns = 5
	}
	if cfg.TerminationTool == "" {
		cfg.TerminationTool = tools.ToolReturnFn
	}
	return &Worker{
		gateway:    gw,
		dispatcher: d,
		store:      store,
		workspace:  ws,
		usage:      rec,
		cfg:        cfg,
		logger:     logger.With("component", "worker"),
		now:        time.Now,
	}
}

// Run executes the loop for run until the termination tool succeeds.
// Per-turn failures are recorded as turns and the loop continues. A
// *memory.StorageError, cancellation of ctx, or ErrTurnLimit stops the
// run; the result so far is returned with the error.
func (w *Worker) Run(ctx context.Context, run Run) (*Result, error) {
	dir, err := w.workspace.PrepareRun(run.ID)
	if err != nil {
		return nil, err
	}
	ctx = tools.WithRunID(ctx, run.ID)

	st := &runState{
		run:     run,
		workDir: strconv.FormatInt(run.ID, 10),
		start:   w.now(),
		prev:    previous{attempt: startingAttempt, stdout: startingOutput},
	}
	log := w.logger.With("run_id", run.ID)
	log.Info("run started", "work_dir", dir, "provider", w.gateway.Provider(), "model", w.gateway.Model())

	gw := w.gateway.WithSystemPrompt(prompts.WorkerSystem(st.workDir, w.toolNames(), w.cfg.TerminationTool))

	// Turns are written even when ctx is cancelled mid-turn; the loop
	// checks for cancellation between turns.
	persist := context.WithoutCancel(ctx)
	if err := w.store.Append(persist, memory.Turn{
		RunID:   run.ID,
		UserID:  run.UserID,
		Seq:     0,
		Tool:    ToolStarting,
		Status:  StatusStarting,
		Attempt: startingAttempt,
		Stdout:  startingOutput,
	}); err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Info("run cancelled", "turns", st.seq+1)
			return st.result(false), err
		}
		if w.cfg.MaxTurns > 0 && st.calls >= w.cfg.MaxTurns {
			log.Warn("turn limit reached", "max_turns", w.cfg.MaxTurns)
			return st.result(false), ErrTurnLimit
		}

		turnStart := w.now()
		res, u, err := w.turn(ctx, gw, st)
		if err != nil {
			return st.result(false), err
		}

		st.seq++
		turn := memory.Turn{
			RunID:          run.ID,
			UserID:         run.UserID,
			Seq:            st.seq,
			Tool:           res.Tool,
			Status:         res.Status,
			Attempt:        res.Attempt,
			Stdout:         res.Stdout,
			Stderr:         res.Stderr,
			TotalTokens:    u.Total,
			PromptTokens:   u.Prompt,
			ResponseTokens: u.Response,
			Terminal:       w.terminal(res),
		}
		if err := w.store.Append(persist, turn); err != nil {
			st.seq--
			return st.result(false), err
		}
		st.prev = previous{attempt: res.Attempt, stdout: res.Stdout, stderr: res.Stderr}

		log.Info("turn complete",
			"turn", st.seq,
			"tool", res.Tool,
			"status", res.Status,
			"total_tokens", u.Total,
			"prompt_tokens", u.Prompt,
			"response_tokens", u.Response,
			"run_tokens", st.totalTokens(),
			"elapsed", w.now().Sub(turnStart).Round(time.Millisecond),
		)

		if turn.Terminal {
			log.Info("run complete", "turns", st.seq+1, "total_tokens", st.totalTokens())
			return st.result(true), nil
		}
	}
}

// turn performs one model call and its dispatch. Failures inside the
// turn become a result; only storage and cancellation errors are
// returned.
func (w *Worker) turn(ctx context.Context, gw *llm.Gateway, st *runState) (res tools.Result, u llm.Usage, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("turn panicked", "run_id", st.run.ID, "panic", r)
			res, u, err = thoughtFailure(fmt.Errorf("panic: %v", r)), llm.Usage{}, nil
		}
	}()

	recent, err := w.store.RecentTurns(ctx, st.run.ID, w.cfg.ShortTermTurns)
	if err != nil {
		return tools.Result{}, llm.Usage{}, err
	}

	elapsed := w.now().Sub(st.start)
	prompt := prompts.WorkerTurn(prompts.WorkerInput{
		Goal:            st.run.Goal,
		WorkDir:         st.workDir,
		Elapsed:         elapsed,
		Remaining:       w.cfg.TaskDuration - elapsed,
		Plan:            st.run.Plan,
		Memory:          memory.Render(recent, w.cfg.ShortTermTurns),
		PrevAttempt:     st.prev.attempt,
		PrevStdout:      st.prev.stdout,
		PrevStderr:      st.prev.stderr,
		TerminationTool: w.cfg.TerminationTool,
	})

	st.calls++
	action, u, err := gw.GenerateResponse(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tools.Result{}, llm.Usage{}, ctxErr
		}
		w.logger.Warn("model call failed", "run_id", st.run.ID, "error", err)
		return thoughtFailure(err), llm.Usage{}, nil
	}

	st.tokens = append(st.tokens, u.Total)
	w.recordUsage(ctx, st.run.ID, u)

	switch {
	case action == nil:
		return tools.Result{Tool: tools.ToolNone, Status: tools.StatusFailure, Attempt: invalidResponse}, u, nil
	case action.IsText():
		return tools.Result{
			Tool:    tools.ToolThought,
			Status:  tools.StatusSuccess,
			Attempt: action.Text,
			Stdout:  useToolNudge,
		}, u, nil
	default:
		return w.dispatcher.Dispatch(ctx, action.Name, action.Params), u, nil
	}
}

// terminal reports whether res ends the run. A rejected call to the
// termination tool never does.
func (w *Worker) terminal(res tools.Result) bool {
	if res.Terminal {
		return true
	}
	if res.Tool == w.cfg.TerminationTool && res.Status == tools.StatusFailure {
		return false
	}
	return w.cfg.SubstringTermination && strings.Contains(res.Attempt, w.cfg.TerminationTool)
}

func (w *Worker) recordUsage(ctx context.Context, runID int64, u llm.Usage) {
	err := w.usage.Observe(ctx, runID, usage.RoleWorker, w.gateway.Provider(), u.Model, u.ProviderInput, u.ProviderOutput)
	if err != nil {
		w.logger.Warn("usage not recorded", "run_id", runID, "error", err)
	}
}

func (w *Worker) toolNames() []string {
	specs := w.dispatcher.Catalog().AllSpecs()
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// thoughtFailure records a failed turn as a thought carrying the error.
func thoughtFailure(err error) tools.Result {
	return tools.Result{
		Tool:    tools.ToolThought,
		Status:  tools.StatusFailure,
		Attempt: "You had an error: " + err.Error(),
		Stdout:  useToolNudge,
	}
}
