package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	placeholderName  = "Ralph Agent"
	placeholderEmail = "ralph@localhost"
)

// DirectiveResult is the outcome of one directive.
type DirectiveResult struct {
	Directive Directive `json:"directive"`
	Output    string    `json:"output"`
	IsError   bool      `json:"is_error"`
	// Committed is set when a commit directive created a revision.
	Committed bool `json:"committed,omitempty"`
}

// Executor applies directives to an ExecutionEnvironment. Failures never
// abort the run: each one becomes an "Error: ..." or "Warning: ..." output
// the model sees on its next turn.
type Executor struct {
	env ExecutionEnvironment
	log *logrus.Entry
}

// NewExecutor creates an Executor. A nil log uses the standard logger.
func NewExecutor(env ExecutionEnvironment, log *logrus.Entry) *Executor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Executor{env: env, log: log.WithField("component", "executor")}
}

// Execute applies the batch in execution order and returns one result per
// directive.
func (x *Executor) Execute(ctx context.Context, batch DirectiveBatch) []DirectiveResult {
	directives := batch.Directives()
	results := make([]DirectiveResult, 0, len(directives))
	for _, d := range directives {
		var res DirectiveResult
		switch v := d.(type) {
		case WriteRequest:
			res = x.write(v)
		case ReadRequest:
			res = x.read(v)
		case CommitRequest:
			res = x.commit(ctx, v)
		}
		res.Directive = d
		x.log.WithFields(logrus.Fields{
			"directive": d.Describe(),
			"is_error":  res.IsError,
		}).Debug("directive applied")
		results = append(results, res)
	}
	return results
}

func (x *Executor) read(r ReadRequest) DirectiveResult {
	resolved, err := x.env.ResolvePath(r.Path)
	if errors.Is(err, ErrOutsideProject) {
		return errorResult(fmt.Sprintf("Error: Path %s is outside the project directory.", r.Path))
	}

	content, err := x.env.ReadFile(r.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errorResult(fmt.Sprintf("Error: File %s does not exist.", resolved))
	case err != nil:
		return errorResult(fmt.Sprintf("Error: could not read %s: %v", resolved, err))
	}
	return DirectiveResult{Output: content}
}

func (x *Executor) write(w WriteRequest) DirectiveResult {
	resolved, err := x.env.ResolvePath(w.Path)
	if errors.Is(err, ErrOutsideProject) {
		return errorResult(fmt.Sprintf("Error: Path %s is outside the project directory.", w.Path))
	}

	n, err := x.env.WriteFile(w.Path, w.Content)
	if err != nil {
		return errorResult(fmt.Sprintf("Error: could not write %s: %v", resolved, err))
	}
	return DirectiveResult{Output: fmt.Sprintf("Success: wrote %d bytes to %s", n, resolved)}
}

func (x *Executor) commit(ctx context.Context, c CommitRequest) DirectiveResult {
	if !x.env.FileExists(".git") {
		x.log.Info("initializing git repository")
		steps := [][]string{
			{"init"},
			{"config", "user.name", placeholderName},
			{"config", "user.email", placeholderEmail},
		}
		for _, args := range steps {
			if out, ok := x.git(ctx, args...); !ok {
				return warningResult(out)
			}
		}
	}

	if out, ok := x.git(ctx, "add", "-A"); !ok {
		return warningResult(out)
	}

	status, ok := x.git(ctx, "status", "--porcelain")
	if !ok {
		return warningResult(status)
	}
	if strings.TrimSpace(status) == "" {
		return DirectiveResult{Output: "No changes to commit."}
	}

	if out, ok := x.git(ctx, "commit", "-m", c.Message); !ok {
		return warningResult(out)
	}
	return DirectiveResult{Output: "Committed: " + c.Message, Committed: true}
}

// git runs one git command. On failure it returns a description of the
// failure and false; on success it returns stdout and true.
func (x *Executor) git(ctx context.Context, args ...string) (string, bool) {
	res, err := x.env.Git(ctx, args...)
	if err != nil {
		x.log.WithError(err).WithField("args", args).Warn("git failed to run")
		return err.Error(), false
	}
	if res.TimedOut {
		return fmt.Sprintf("git %s timed out", args[0]), false
	}
	if res.ExitCode != 0 {
		x.log.WithFields(logrus.Fields{"args": args, "exit_code": res.ExitCode}).Warn("git exited with an error")
		return fmt.Sprintf("git %s exited with status %d: %s", args[0], res.ExitCode, strings.TrimSpace(res.Output())), false
	}
	return res.Stdout, true
}

func errorResult(msg string) DirectiveResult {
	return DirectiveResult{Output: msg, IsError: true}
}

func warningResult(detail string) DirectiveResult {
	return DirectiveResult{Output: "Warning: " + detail, IsError: true}
}

// RenderObservation formats directive results as the text of the next user
// turn. Read contents longer than maxReadChars are truncated head and tail.
func RenderObservation(results []DirectiveResult, maxReadChars int) string {
	if len(results) == 0 {
		return "No directives were found in your previous response. " +
			`Use <<READ path="...">>, <<FILE path="...">>...<</FILE>> or <<COMMIT_MSG>>...<</COMMIT_MSG>> to act, ` +
			"or output " + CompletionMarker + " when every task is done."
	}

	var sb strings.Builder
	sb.WriteString("RESULTS OF YOUR PREVIOUS ACTIONS:\n")
	for _, r := range results {
		switch d := r.Directive.(type) {
		case ReadRequest:
			if r.IsError {
				fmt.Fprintf(&sb, "\n[%s] %s\n", d.Describe(), r.Output)
				continue
			}
			fmt.Fprintf(&sb, "\n<<CONTENT path=%q>>\n%s\n<</CONTENT>>\n", d.Path, TruncateOutput(r.Output, maxReadChars, TruncateHeadTail))
		default:
			fmt.Fprintf(&sb, "\n[%s] %s\n", d.Describe(), r.Output)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
