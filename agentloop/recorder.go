package agentloop

import (
	"context"
	"time"

	"github.com/victorhg/ralph/unifiedllm"
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	RunID         string
	Provider      string
	Model         string
	WorkingDir    string
	MaxIterations int
	StartedAt     time.Time
}

// IterationRecord summarizes one iteration of the loop.
type IterationRecord struct {
	RunID      string
	Iteration  int
	StartedAt  time.Time
	Duration   time.Duration
	Reads      int
	Writes     int
	Committed  bool
	Completed  bool
	ReplyChars int
	Usage      unifiedllm.Usage
	// Errors holds the output of every failed directive.
	Errors []string
}

// IterationRecorder persists a run's progress. Recorder failures are logged
// and never stop the loop.
type IterationRecorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	RecordIteration(ctx context.Context, rec IterationRecord) error
	FinishRun(ctx context.Context, result RunResult) error
}

// newIterationRecord summarizes the directive results of one iteration.
func newIterationRecord(runID string, iteration int, started time.Time, reply string, usage unifiedllm.Usage, results []DirectiveResult, completed bool) IterationRecord {
	rec := IterationRecord{
		RunID:      runID,
		Iteration:  iteration,
		StartedAt:  started,
		Duration:   time.Since(started),
		Completed:  completed,
		ReplyChars: len(reply),
		Usage:      usage,
	}
	for _, r := range results {
		switch r.Directive.Kind() {
		case DirectiveRead:
			rec.Reads++
		case DirectiveWrite:
			rec.Writes++
		case DirectiveCommit:
			rec.Committed = r.Committed
		}
		if r.IsError {
			rec.Errors = append(rec.Errors, r.Output)
		}
	}
	return rec
}
