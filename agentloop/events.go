package agentloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventSessionStart       EventKind = "session_start"
	EventSessionEnd         EventKind = "session_end"
	EventIterationStart     EventKind = "iteration_start"
	EventAssistantTextDelta EventKind = "assistant_text_delta"
	EventAssistantTextEnd   EventKind = "assistant_text_end"
	EventDirectiveResult    EventKind = "directive_result"
	EventLoopDetection      EventKind = "loop_detection"
	EventRetry              EventKind = "retry"
	EventCompletion         EventKind = "completion"
	EventTurnLimit          EventKind = "turn_limit"
	EventError              EventKind = "error"
)

// SessionEvent is a typed event emitted by the agent loop.
type SessionEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Iteration int            `json:"iteration,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventHandler receives session events.
type EventHandler func(SessionEvent)

// EventEmitter delivers events to registered handlers synchronously, in
// emission order, on the loop's goroutine. Handlers must not block.
type EventEmitter struct {
	runID    string
	handlers []EventHandler
	closed   bool
	mu       sync.Mutex
}

// NewEventEmitter creates an EventEmitter for one run.
func NewEventEmitter(runID string) *EventEmitter {
	return &EventEmitter{runID: runID}
}

// On registers a handler. Handlers registered after Close are ignored.
func (e *EventEmitter) On(h EventHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.handlers = append(e.handlers, h)
	}
}

// Emit delivers an event to every handler. Events emitted after Close are
// dropped.
func (e *EventEmitter) Emit(kind EventKind, iteration int, data map[string]any) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	event := SessionEvent{
		Kind:      kind,
		Timestamp: time.Now(),
		RunID:     e.runID,
		Iteration: iteration,
		Data:      data,
	}
	for _, h := range handlers {
		h(event)
	}
}

// Close stops delivery. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.handlers = nil
}
