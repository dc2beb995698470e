// Package memory persists the turns of agent runs and renders recent
// turns as short-term memory for the next prompt.
//
// Turns are append-only. Within a run they are totally ordered by
// creation time and then by sequence number, so reads are repeatable
// and replaying a run's turns reproduces the same rendered memory.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Turn is one persisted step of a run.
type Turn struct {
	ID     string `json:"id"`
	RunID  int64  `json:"run_id"`
	UserID int    `json:"user_id"`
	// Seq is the position of the turn within its run, starting at 0 for
	// the synthetic starting turn.
	Seq            int       `json:"seq"`
	Tool           string    `json:"tool"`
	Status         string    `json:"status"`
	Attempt        string    `json:"attempt"`
	Stdout         string    `json:"stdout"`
	Stderr         string    `json:"stderr"`
	TotalTokens    int       `json:"total_tokens"`
	PromptTokens   int       `json:"prompt_tokens"`
	ResponseTokens int       `json:"response_tokens"`
	Terminal       bool      `json:"terminal,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the turn log. Implementations must allow concurrent use by
// different runs.
type Store interface {
	// Append persists a turn. An empty ID is filled with a UUIDv7 and a
	// zero CreatedAt with the current time.
	Append(ctx context.Context, turn Turn) error
	// RecentTurns returns up to limit of the run's latest turns,
	// oldest first.
	RecentTurns(ctx context.Context, runID int64, limit int) ([]Turn, error)
	// Turns returns every turn of a run, oldest first.
	Turns(ctx context.Context, runID int64) ([]Turn, error)
	Close() error
}

// StorageError reports a failed read or write of the turn log. The
// worker treats it as unrecoverable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("memory %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// separator delimits steps in rendered memory.
var separator = strings.Repeat("-", 100)

// Render formats turns as the short-term memory block of a prompt.
// limit is only used in the heading.
func Render(turns []Turn, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Short-term Memory (Last %d steps)\n%s\n", limit, separator)
	for i, t := range turns {
		fmt.Fprintf(&b, "Step %d\n", i+1)
		for _, kv := range [][2]string{
			{"tool", t.Tool},
			{"status", t.Status},
			{"attempt", t.Attempt},
			{"stdout", t.Stdout},
			{"stderr", t.Stderr},
			{"total_tokens", strconv.Itoa(t.TotalTokens)},
			{"prompt_tokens", strconv.Itoa(t.PromptTokens)},
			{"response_tokens", strconv.Itoa(t.ResponseTokens)},
		} {
			b.WriteString(kv[0] + ": " + kv[1] + "\n")
		}
		b.WriteString(separator + "\n")
	}
	return b.String()
}
