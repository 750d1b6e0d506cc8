package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// DefaultSystemPrompt documents the directive grammar. It is used when no
// prompt file is configured or the configured one does not exist.
const DefaultSystemPrompt = `You are an autonomous developer agent running in a loop.
Your goal is to complete the tasks described in the TASKS_FILE section of the first message.
Each of your replies is parsed for the directives below; their results are sent back to you.

To READ a file:
<<READ path="path/to/file.ext">>

To WRITE a file (the whole file is replaced):
<<FILE path="path/to/file.ext">>
Line 1 of content
Line 2 of content
<</FILE>>

You can write and read several files in one reply. Writes are applied first, then reads,
so a read sees the files you wrote in the same reply.

To COMMIT every change made so far:
<<COMMIT_MSG>>Short description of the change<</COMMIT_MSG>>

Paths are relative to the project directory and must stay inside it.

Check your progress. When you believe every task is complete, output:
<promise>COMPLETE</promise>

If you are not done, analyze the current state, decide on the next step, and output the
directives needed to make progress.`

// LoadSystemPrompt returns the contents of path. A missing file yields
// DefaultSystemPrompt with fromFile false; other read errors are returned.
func LoadSystemPrompt(path string) (prompt string, fromFile bool, err error) {
	if path == "" {
		return DefaultSystemPrompt, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSystemPrompt, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read system prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return DefaultSystemPrompt, false, nil
	}
	return text, true, nil
}

// BuildSystemPrompt appends the environment block to base.
func BuildSystemPrompt(ctx context.Context, base string, env ExecutionEnvironment, model string) string {
	return base + "\n\n" + BuildEnvironmentContext(ctx, env, model)
}

// BuildEnvironmentContext generates the structured environment context block.
func BuildEnvironmentContext(ctx context.Context, env ExecutionEnvironment, model string) string {
	isGitRepo := isGitRepository(ctx, env)
	gitBranch := ""
	if isGitRepo {
		gitBranch = getGitBranch(ctx, env)
	}

	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", env.WorkingDirectory())
	fmt.Fprintf(&sb, "Is git repository: %v\n", isGitRepo)
	if gitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", gitBranch)
	}
	fmt.Fprintf(&sb, "Platform: %s\n", env.Platform())
	fmt.Fprintf(&sb, "OS version: %s\n", env.OSVersion())
	fmt.Fprintf(&sb, "Today's date: %s\n", time.Now().Format("2006-01-02"))
	if model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}

func isGitRepository(ctx context.Context, env ExecutionEnvironment) bool {
	out, ok := runGit(ctx, env, "rev-parse", "--is-inside-work-tree")
	return ok && strings.TrimSpace(out) == "true"
}

func getGitBranch(ctx context.Context, env ExecutionEnvironment) string {
	out, ok := runGit(ctx, env, "rev-parse", "--abbrev-ref", "HEAD")
	if !ok {
		return ""
	}
	return strings.TrimSpace(out)
}

// runGit returns stdout of a successful git command.
func runGit(ctx context.Context, env ExecutionEnvironment, args ...string) (string, bool) {
	res, err := env.Git(ctx, args...)
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	return res.Stdout, true
}
