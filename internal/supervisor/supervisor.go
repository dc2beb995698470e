package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nugget/savant/internal/agent"
	"github.com/nugget/savant/internal/prompts"
)

// ErrNoTask is returned when Run is called with an empty task.
var ErrNoTask = errors.New("no task given")

// Worker runs a planned task.
type Worker interface {
	Run(ctx context.Context, run agent.Run) (*agent.Result, error)
}

// Supervisor plans a task and runs the worker on it.
type Supervisor struct {
	planner *Planner
	worker  Worker
	userID  int
	logger  *slog.Logger
}

// New creates a supervisor.
func New(planner *Planner, worker Worker, userID int, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		planner: planner,
		worker:  worker,
		userID:  userID,
		logger:  logger.With("component", "supervisor"),
	}
}

// Run plans task and executes it as run runID. A zero runID picks a
// random one. The worker's partial result is returned alongside any
// worker error.
func (s *Supervisor) Run(ctx context.Context, task string, runID int64) (*agent.Result, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, ErrNoTask
	}
	if runID == 0 {
		runID = agent.NewRunID()
	}
	log := s.logger.With("run_id", runID)

	log.Info("planning task")
	steps, err := s.planner.Plan(ctx, runID, task)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	plan := prompts.PlanText(steps)
	log.Info("plan ready", "steps", len(steps))
	log.Debug("plan", "text", plan)

	return s.worker.Run(ctx, agent.Run{
		ID:     runID,
		UserID: s.userID,
		Goal:   task,
		Plan:   plan,
	})
}
