package agentloop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/victorhg/ralph/unifiedllm"
)

// SessionState represents the current lifecycle state of a session.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateBuilding  SessionState = "building"
	StateWaiting   SessionState = "waiting"
	StateParsing   SessionState = "parsing"
	StateExecuting SessionState = "executing"
	StateDone      SessionState = "done"
	StateAborted   SessionState = "aborted"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted       Outcome = "completed"
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
	OutcomeInterrupted     Outcome = "interrupted"
	OutcomeFailed          Outcome = "failed"
)

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      string           `json:"run_id"`
	Outcome    Outcome          `json:"outcome"`
	Iterations int              `json:"iterations"`
	FinalText  string           `json:"final_text"`
	Usage      unifiedllm.Usage `json:"usage"`
	StartedAt  time.Time        `json:"started_at"`
	Duration   time.Duration    `json:"duration"`
}

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	MaxIterations int      `json:"max_iterations"` // 0 = unlimited
	Model         string   `json:"model"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	MaxTokens     int      `json:"max_tokens"`
	Temperature   *float64 `json:"temperature,omitempty"`

	RequestTimeout time.Duration          `json:"request_timeout"`
	Retry          unifiedllm.RetryPolicy `json:"-"`

	TasksFile      string `json:"tasks_file"`
	ProgressFile   string `json:"progress_file"`
	HeuristicsFile string `json:"heuristics_file"`

	ReadCharLimit       int  `json:"read_char_limit"`
	SnapshotLineLimit   int  `json:"snapshot_line_limit"`
	EnableLoopDetection bool `json:"enable_loop_detection"`
	LoopDetectionWindow int  `json:"loop_detection_window"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxIterations:       10,
		MaxTokens:           4096,
		RequestTimeout:      10 * time.Minute,
		Retry:               unifiedllm.DefaultRetryPolicy(),
		TasksFile:           "TASKS.md",
		ProgressFile:        "progress.txt",
		HeuristicsFile:      "HEURISTICS.md",
		ReadCharLimit:       DefaultReadCharLimit,
		SnapshotLineLimit:   DefaultSnapshotLineLimit,
		EnableLoopDetection: true,
		LoopDetectionWindow: 3,
	}
}

// Session drives one run of the loop: build the user turn, stream the reply,
// apply its directives, feed the results back, until the model signals
// completion, the iteration budget runs out or the context is cancelled.
type Session struct {
	id         string
	adapter    unifiedllm.ProviderAdapter
	env        ExecutionEnvironment
	history    []Turn
	signatures []string
	emitter    *EventEmitter
	config     SessionConfig
	state      SessionState
	recorder   IterationRecorder
	log        *logrus.Entry
	mu         sync.Mutex
}

// NewSession creates a session for the given adapter and execution
// environment. A nil config uses DefaultSessionConfig.
func NewSession(adapter unifiedllm.ProviderAdapter, env ExecutionEnvironment, config *SessionConfig) *Session {
	runID := uuid.New().String()

	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}

	return &Session{
		id:      runID,
		adapter: adapter,
		env:     env,
		history: make([]Turn, 0),
		emitter: NewEventEmitter(runID),
		config:  cfg,
		state:   StateIdle,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
}

// SetLogger sets the logger used by the session and its executor.
func (s *Session) SetLogger(log *logrus.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if log != nil {
		s.log = log
	}
}

// SetRecorder attaches an IterationRecorder.
func (s *Session) SetRecorder(r IterationRecorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// On registers an event handler. Handlers run synchronously on the loop's
// goroutine.
func (s *Session) On(h EventHandler) {
	s.emitter.On(h)
}

// ID returns the run identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]Turn, len(s.history))
	copy(h, s.history)
	return h
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) appendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, t)
}

// Run executes the loop. Reaching the iteration budget is not an error; a
// provider error that survives retries is. Cancelling ctx ends the run with
// OutcomeInterrupted and a nil error.
func (s *Session) Run(ctx context.Context) (*RunResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, fmt.Errorf("session %s has already run", s.id)
	}
	s.state = StateBuilding
	log := s.log.WithFields(logrus.Fields{"run_id": s.id, "component": "session"})
	recorder := s.recorder
	s.mu.Unlock()

	if err := s.env.Initialize(); err != nil {
		s.setState(StateAborted)
		return nil, fmt.Errorf("initialize project directory: %w", err)
	}

	result := &RunResult{RunID: s.id, StartedAt: time.Now()}
	executor := NewExecutor(s.env, log)
	builder := &ContextBuilder{
		env:               s.env,
		TasksFile:         s.config.TasksFile,
		ProgressFile:      s.config.ProgressFile,
		HeuristicsFile:    s.config.HeuristicsFile,
		SnapshotLineLimit: s.config.SnapshotLineLimit,
	}

	base := s.config.SystemPrompt
	if base == "" {
		base = DefaultSystemPrompt
	}
	systemPrompt := BuildSystemPrompt(ctx, base, s.env, s.config.Model)

	if recorder != nil {
		info := RunInfo{
			RunID:         s.id,
			Provider:      s.adapter.Name(),
			Model:         s.config.Model,
			WorkingDir:    s.env.WorkingDirectory(),
			MaxIterations: s.config.MaxIterations,
			StartedAt:     result.StartedAt,
		}
		if err := recorder.StartRun(ctx, info); err != nil {
			log.WithError(err).Warn("history: could not record run start")
		}
	}

	s.emitter.Emit(EventSessionStart, 0, map[string]any{
		"provider":       s.adapter.Name(),
		"model":          s.config.Model,
		"working_dir":    s.env.WorkingDirectory(),
		"max_iterations": s.config.MaxIterations,
	})
	log.WithFields(logrus.Fields{
		"provider":       s.adapter.Name(),
		"model":          s.config.Model,
		"max_iterations": s.config.MaxIterations,
	}).Info("run started")

	var runErr error
	observation := ""
	for {
		iteration := result.Iterations + 1
		if s.config.MaxIterations > 0 && iteration > s.config.MaxIterations {
			result.Outcome = OutcomeBudgetExhausted
			s.emitter.Emit(EventTurnLimit, result.Iterations, map[string]any{
				"max_iterations": s.config.MaxIterations,
			})
			log.WithField("iterations", result.Iterations).Warn("iteration budget exhausted")
			break
		}
		if ctx.Err() != nil {
			result.Outcome = OutcomeInterrupted
			break
		}

		out, err := s.iterate(ctx, iteration, systemPrompt, observation, builder, executor, recorder, log)
		if err != nil {
			if ctx.Err() != nil {
				result.Outcome = OutcomeInterrupted
				break
			}
			result.Outcome = OutcomeFailed
			s.emitter.Emit(EventError, iteration, map[string]any{"error": err.Error()})
			runErr = fmt.Errorf("iteration %d: %w", iteration, err)
			break
		}

		result.Iterations = iteration
		result.FinalText = out.reply
		result.Usage = result.Usage.Add(out.usage)
		observation = out.observation

		if out.completed {
			result.Outcome = OutcomeCompleted
			s.emitter.Emit(EventCompletion, iteration, nil)
			log.WithField("iterations", iteration).Info("completion signal received")
			break
		}
	}

	result.Duration = time.Since(result.StartedAt)
	if result.Outcome == OutcomeInterrupted {
		log.Warn("run interrupted")
	}

	if recorder != nil {
		if err := recorder.FinishRun(context.WithoutCancel(ctx), *result); err != nil {
			log.WithError(err).Warn("history: could not record run end")
		}
	}

	switch result.Outcome {
	case OutcomeCompleted, OutcomeBudgetExhausted:
		s.setState(StateDone)
	default:
		s.setState(StateAborted)
	}

	s.emitter.Emit(EventSessionEnd, result.Iterations, map[string]any{
		"outcome":    string(result.Outcome),
		"iterations": result.Iterations,
		"duration":   result.Duration.String(),
	})
	s.emitter.Close()

	return result, runErr
}

type iterationOutput struct {
	reply       string
	observation string
	usage       unifiedllm.Usage
	completed   bool
}

// iterate runs one build, wait, parse, execute cycle.
func (s *Session) iterate(ctx context.Context, iteration int, systemPrompt, observation string,
	builder *ContextBuilder, executor *Executor, recorder IterationRecorder, log *logrus.Entry,
) (*iterationOutput, error) {
	started := time.Now()
	log = log.WithField("iteration", iteration)

	s.setState(StateBuilding)
	var userText string
	var err error
	if iteration == 1 {
		userText, err = builder.BuildInitial(ctx)
	} else {
		userText, err = builder.BuildFollowup(ctx, observation)
	}
	if err != nil {
		return nil, err
	}
	s.appendTurn(NewUserTurn(iteration, userText))
	s.emitter.Emit(EventIterationStart, iteration, map[string]any{
		"max_iterations": s.config.MaxIterations,
	})
	log.Debug("iteration started")

	s.setState(StateWaiting)
	acc, err := s.complete(ctx, iteration, systemPrompt, log)
	if err != nil {
		return nil, err
	}
	reply := acc.Text()
	s.appendTurn(NewAssistantTurn(iteration, reply, acc.Usage()))
	s.emitter.Emit(EventAssistantTextEnd, iteration, map[string]any{
		"text":          reply,
		"finish_reason": acc.FinishReason().Reason,
		"usage":         acc.Usage(),
	})

	s.setState(StateParsing)
	batch := ParseDirectives(reply)
	completed := strings.Contains(reply, CompletionMarker)

	s.setState(StateExecuting)
	results := executor.Execute(ctx, batch)
	for _, r := range results {
		s.emitter.Emit(EventDirectiveResult, iteration, map[string]any{
			"kind":      string(r.Directive.Kind()),
			"directive": r.Directive.Describe(),
			"output":    r.Output,
			"is_error":  r.IsError,
		})
	}

	s.signatures = append(s.signatures, batch.Signature())
	if s.config.EnableLoopDetection && DetectLoop(s.signatures, s.config.LoopDetectionWindow) {
		warning := loopWarning(s.config.LoopDetectionWindow)
		s.appendTurn(NewSteeringTurn(iteration, warning))
		s.emitter.Emit(EventLoopDetection, iteration, map[string]any{"message": warning})
		log.Warn("repeating directive pattern detected")
	}

	rec := newIterationRecord(s.id, iteration, started, reply, acc.Usage(), results, completed)
	log.WithFields(logrus.Fields{
		"writes":    rec.Writes,
		"reads":     rec.Reads,
		"committed": rec.Committed,
		"errors":    len(rec.Errors),
		"duration":  rec.Duration.Round(time.Millisecond).String(),
	}).Info("iteration finished")
	if recorder != nil {
		if err := recorder.RecordIteration(context.WithoutCancel(ctx), rec); err != nil {
			log.WithError(err).Warn("history: could not record iteration")
		}
	}

	return &iterationOutput{
		reply:       reply,
		observation: RenderObservation(results, s.config.ReadCharLimit),
		usage:       acc.Usage(),
		completed:   completed,
	}, nil
}

// complete streams one reply, retrying retryable failures. Each attempt is
// bounded by RequestTimeout.
func (s *Session) complete(ctx context.Context, iteration int, systemPrompt string, log *logrus.Entry) (*unifiedllm.StreamAccumulator, error) {
	req := unifiedllm.Request{
		Model:       s.config.Model,
		System:      systemPrompt,
		Messages:    ConvertHistoryToMessages(s.History()),
		Temperature: s.config.Temperature,
	}
	if s.config.MaxTokens > 0 {
		maxTokens := s.config.MaxTokens
		req.MaxTokens = &maxTokens
	}

	policy := s.config.Retry
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.Round(time.Millisecond).String(),
		}).Warn("provider call failed, retrying")
		s.emitter.Emit(EventRetry, iteration, map[string]any{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
	}

	policy.AttemptTimeout = s.config.RequestTimeout

	return unifiedllm.Retry(ctx, policy, func(reqCtx context.Context) (*unifiedllm.StreamAccumulator, error) {
		events, err := s.adapter.Stream(reqCtx, req)
		if err != nil {
			return nil, err
		}
		acc, err := unifiedllm.Collect(events, func(delta string) {
			s.emitter.Emit(EventAssistantTextDelta, iteration, map[string]any{"delta": delta})
		})
		if err == nil {
			err = unifiedllm.ContextError(reqCtx, s.adapter.Name()+" stream")
		}
		if err != nil {
			return nil, err
		}
		return acc, nil
	})
}
