package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/victorhg/ralph/agentloop"
)

// renderer prints session events for the operator.
type renderer struct {
	out   io.Writer
	quiet bool

	header  *color.Color
	success *color.Color
	failure *color.Color
	warning *color.Color
	faint   *color.Color

	maxIterations int
}

func newRenderer(out io.Writer, quiet bool) *renderer {
	return &renderer{
		out:     out,
		quiet:   quiet,
		header:  color.New(color.FgCyan, color.Bold),
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow),
		faint:   color.New(color.Faint),
	}
}

func (r *renderer) handle(ev agentloop.SessionEvent) {
	switch ev.Kind {
	case agentloop.EventSessionStart:
		r.maxIterations, _ = ev.Data["max_iterations"].(int)
		r.header.Fprintf(r.out, "ralph %s: %s/%s in %s\n", version, ev.Data["provider"], ev.Data["model"], ev.Data["working_dir"])

	case agentloop.EventIterationStart:
		budget := "unlimited"
		if r.maxIterations > 0 {
			budget = fmt.Sprint(r.maxIterations)
		}
		r.header.Fprintf(r.out, "\n=== Iteration %d/%s ===\n", ev.Iteration, budget)

	case agentloop.EventAssistantTextDelta:
		if !r.quiet {
			fmt.Fprint(r.out, ev.Data["delta"])
		}

	case agentloop.EventAssistantTextEnd:
		if !r.quiet {
			fmt.Fprintln(r.out)
		}

	case agentloop.EventDirectiveResult:
		r.directive(ev)

	case agentloop.EventRetry:
		r.warning.Fprintf(r.out, "provider call failed (%v), retry %v in %v\n", ev.Data["error"], ev.Data["attempt"], ev.Data["delay"])

	case agentloop.EventLoopDetection:
		r.warning.Fprintf(r.out, "%v\n", ev.Data["message"])

	case agentloop.EventCompletion:
		r.success.Fprintln(r.out, "Completion signal received.")

	case agentloop.EventTurnLimit:
		r.warning.Fprintf(r.out, "Reached max iterations (%v).\n", ev.Data["max_iterations"])

	case agentloop.EventError:
		r.failure.Fprintf(r.out, "%v\n", ev.Data["error"])
	}
}

func (r *renderer) directive(ev agentloop.SessionEvent) {
	desc, _ := ev.Data["directive"].(string)
	output, _ := ev.Data["output"].(string)
	isError, _ := ev.Data["is_error"].(bool)

	if isError {
		r.failure.Fprintf(r.out, "✗ %s: %s\n", desc, output)
		return
	}
	if kind, _ := ev.Data["kind"].(string); kind == string(agentloop.DirectiveRead) {
		output = fmt.Sprintf("read %d bytes", len(output))
	}
	r.success.Fprintf(r.out, "✓ %s: %s\n", desc, firstLine(output))
}

func (r *renderer) summary(result *agentloop.RunResult) {
	line := fmt.Sprintf("\n%s after %d iteration(s) in %s (%d input / %d output tokens)\n",
		result.Outcome, result.Iterations, result.Duration.Round(time.Millisecond), result.Usage.InputTokens, result.Usage.OutputTokens)
	switch result.Outcome {
	case agentloop.OutcomeCompleted:
		r.success.Fprint(r.out, line)
	case agentloop.OutcomeBudgetExhausted, agentloop.OutcomeInterrupted:
		r.warning.Fprint(r.out, line)
	default:
		r.failure.Fprint(r.out, line)
	}
	r.faint.Fprintf(r.out, "run %s\n", result.RunID)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
