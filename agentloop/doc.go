// Package agentloop implements the tagged-directive agent loop.
//
// Each iteration sends the conversation to a language model, parses the
// reply for text directives, applies them to the project directory and
// feeds the results back as the next user turn. The model acts only
// through three tags:
//
//	<<READ path="notes.md">>
//	<<FILE path="main.go">>
//	...file body...
//	<</FILE>>
//	<<COMMIT_MSG>>Add main<</COMMIT_MSG>>
//
// and ends the run by writing <promise>COMPLETE</promise>.
//
// # Architecture
//
//   - Session: the loop driver holding the conversation, the iteration
//     counter and the configuration for one run.
//   - ContextBuilder: renders the task description, optional notes and the
//     project listing into user turns.
//   - ParseDirectives: turns reply text into a typed DirectiveBatch.
//   - Executor: applies a batch to an ExecutionEnvironment, reporting every
//     failure as text for the model instead of stopping the run.
//   - EventEmitter: synchronous typed events for the host application.
//   - IterationRecorder: optional persistence of run progress.
//
// # Quick Start
//
//	adapter, _ := unifiedllm.NewAdapter(unifiedllm.AdapterConfig{Provider: "ollama"})
//	env := agentloop.NewLocalExecutionEnvironment("/path/to/project")
//	session := agentloop.NewSession(adapter, env, nil)
//	session.On(func(ev agentloop.SessionEvent) {
//	    if ev.Kind == agentloop.EventAssistantTextDelta {
//	        fmt.Print(ev.Data["delta"])
//	    }
//	})
//
//	result, err := session.Run(ctx)
package agentloop
