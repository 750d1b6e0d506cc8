package unifiedllm

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxStreamLine bounds a single NDJSON/SSE line. Large file bodies arrive as
// many small deltas, so a few MB is generous.
const maxStreamLine = 4 * 1024 * 1024

// lineResult is what a backend decodes from one raw stream line.
type lineResult struct {
	Delta        string
	Done         bool
	FinishReason string
	Usage        *Usage
	Err          error // error reported by the provider inside the stream
}

// lineDecoder turns raw lines of a streamed body into lineResults. Decode
// returns an error for lines it cannot interpret; those lines are skipped.
type lineDecoder interface {
	Decode(line string) (lineResult, error)
}

// pumpLines reads body line by line, decodes each line and forwards the
// resulting events on ch. It closes ch and body when the stream ends.
func pumpLines(ctx context.Context, provider string, log *logrus.Entry, body io.ReadCloser, dec lineDecoder, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	textID := "text_" + uuid.New().String()[:8]
	if !send(ctx, ch, StreamEvent{Type: StreamStart, TextID: textID}) {
		return
	}

	var usage *Usage
	reason := FinishReason{Reason: "stop", Raw: "stop"}
	terminated := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		res, err := dec.Decode(line)
		if err != nil {
			log.WithError(err).WithField("line", truncateForLog(line)).Debug("skipping undecodable stream line")
			continue
		}
		if res.Err != nil {
			send(ctx, ch, StreamEvent{Type: StreamError, Error: res.Err})
			return
		}
		if res.Delta != "" {
			if !send(ctx, ch, StreamEvent{Type: TextDelta, Delta: res.Delta, TextID: textID}) {
				return
			}
		}
		if res.Usage != nil {
			if usage == nil {
				usage = &Usage{}
			}
			merged := mergeUsage(*usage, *res.Usage)
			usage = &merged
		}
		if res.FinishReason != "" {
			reason = normalizeFinishReason(res.FinishReason)
		}
		if res.Done {
			terminated = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		streamErr := ContextError(ctx, provider+" stream")
		if streamErr == nil {
			streamErr = &StreamErrorType{SDKError: SDKError{Message: provider + " stream read failed", Cause: err}}
		}
		send(ctx, ch, StreamEvent{Type: StreamError, Error: streamErr})
		return
	}
	if !terminated {
		log.WithField("provider", provider).Debug("stream ended without a terminal marker")
	}

	send(ctx, ch, StreamEvent{Type: StreamFinish, TextID: textID, FinishReason: &reason, Usage: usage})
}

// send delivers ev unless ctx is cancelled first.
func send(ctx context.Context, ch chan<- StreamEvent, ev StreamEvent) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// mergeUsage keeps the larger of each counter. Providers report usage either
// once at the end or cumulatively across several events.
func mergeUsage(a, b Usage) Usage {
	out := a
	if b.InputTokens > out.InputTokens {
		out.InputTokens = b.InputTokens
	}
	if b.OutputTokens > out.OutputTokens {
		out.OutputTokens = b.OutputTokens
	}
	out.TotalTokens = out.InputTokens + out.OutputTokens
	if b.TotalTokens > out.TotalTokens {
		out.TotalTokens = b.TotalTokens
	}
	return out
}

func normalizeFinishReason(raw string) FinishReason {
	switch raw {
	case "stop", "end_turn", "stop_sequence":
		return FinishReason{Reason: "stop", Raw: raw}
	case "length", "max_tokens":
		return FinishReason{Reason: "length", Raw: raw}
	default:
		return FinishReason{Reason: "other", Raw: raw}
	}
}

func truncateForLog(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}

// StreamAccumulator collects stream events into the full reply text.
type StreamAccumulator struct {
	text         strings.Builder
	usage        Usage
	finishReason *FinishReason
	err          error
}

// NewStreamAccumulator creates a new StreamAccumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Process ingests a single stream event.
func (sa *StreamAccumulator) Process(event StreamEvent) {
	switch event.Type {
	case TextDelta:
		sa.text.WriteString(event.Delta)
	case StreamFinish:
		sa.finishReason = event.FinishReason
		if event.Usage != nil {
			sa.usage = *event.Usage
		}
	case StreamError:
		if sa.err == nil {
			sa.err = event.Error
		}
	}
}

// Text returns the text accumulated so far.
func (sa *StreamAccumulator) Text() string { return sa.text.String() }

// Usage returns the usage reported by the finish event, if any.
func (sa *StreamAccumulator) Usage() Usage { return sa.usage }

// FinishReason returns the reported finish reason, defaulting to "stop".
func (sa *StreamAccumulator) FinishReason() FinishReason {
	if sa.finishReason == nil {
		return FinishReason{Reason: "stop"}
	}
	return *sa.finishReason
}

// Err returns the first error event seen on the stream.
func (sa *StreamAccumulator) Err() error { return sa.err }

// Collect drains events, calling onDelta for every text fragment in order,
// and returns the accumulated reply. The returned error is the first
// StreamError event, if any; the accumulator still holds the partial text.
func Collect(events <-chan StreamEvent, onDelta func(string)) (*StreamAccumulator, error) {
	sa := NewStreamAccumulator()
	for event := range events {
		if event.Type == TextDelta && onDelta != nil {
			onDelta(event.Delta)
		}
		sa.Process(event)
	}
	return sa, sa.Err()
}
