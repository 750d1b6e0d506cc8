package agentloop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProjectSnapshot lists the project's files as sorted, slash-separated
// relative paths. Inside a git work tree it lists tracked files plus
// untracked files that are not ignored; elsewhere it walks the directory,
// skipping .git.
func ProjectSnapshot(ctx context.Context, env ExecutionEnvironment) ([]string, error) {
	var files []string
	if isGitRepository(ctx, env) {
		if out, ok := runGit(ctx, env, "-c", "core.quotepath=off", "ls-files", "--cached", "--others", "--exclude-standard"); ok {
			for _, line := range strings.Split(out, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					files = append(files, line)
				}
			}
			return dedupeSorted(files), nil
		}
	}

	files, err := env.WalkFiles()
	if err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	return dedupeSorted(files), nil
}

func dedupeSorted(files []string) []string {
	sort.Strings(files)
	out := files[:0]
	for i, f := range files {
		if i > 0 && f == files[i-1] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ContextBuilder produces the text of each user turn.
type ContextBuilder struct {
	env ExecutionEnvironment

	// TasksFile is required; ProgressFile and HeuristicsFile are optional
	// notes omitted when absent. Relative paths are taken from the project
	// directory.
	TasksFile      string
	ProgressFile   string
	HeuristicsFile string

	// SnapshotLineLimit bounds the project listing; 0 means unlimited.
	SnapshotLineLimit int
}

// NewContextBuilder creates a ContextBuilder with the default note files.
func NewContextBuilder(env ExecutionEnvironment, tasksFile string) *ContextBuilder {
	return &ContextBuilder{
		env:               env,
		TasksFile:         tasksFile,
		ProgressFile:      "progress.txt",
		HeuristicsFile:    "HEURISTICS.md",
		SnapshotLineLimit: DefaultSnapshotLineLimit,
	}
}

// BuildInitial returns the first user turn: the task description, the
// optional progress and heuristics notes, and the project listing.
func (b *ContextBuilder) BuildInitial(ctx context.Context) (string, error) {
	tasks, err := os.ReadFile(b.notePath(b.TasksFile))
	if err != nil {
		return "", fmt.Errorf("read tasks file: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "TASKS_FILE:\n%s\n\n", strings.TrimRight(string(tasks), "\n"))

	if note, ok := b.readOptional(b.ProgressFile); ok {
		fmt.Fprintf(&sb, "PROGRESS SO FAR:\n%s\n\n", note)
	}
	if note, ok := b.readOptional(b.HeuristicsFile); ok {
		fmt.Fprintf(&sb, "HEURISTICS:\n%s\n\n", note)
	}

	if err := b.writeSnapshot(ctx, &sb); err != nil {
		return "", err
	}
	sb.WriteString("Please proceed with the next step.")
	return sb.String(), nil
}

// BuildFollowup returns a later user turn: the observation from the
// previous reply and a fresh project listing.
func (b *ContextBuilder) BuildFollowup(ctx context.Context, observation string) (string, error) {
	var sb strings.Builder
	sb.WriteString(observation)
	sb.WriteString("\n\n")
	if err := b.writeSnapshot(ctx, &sb); err != nil {
		return "", err
	}
	sb.WriteString("Please proceed with the next step.")
	return sb.String(), nil
}

func (b *ContextBuilder) writeSnapshot(ctx context.Context, sb *strings.Builder) error {
	files, err := ProjectSnapshot(ctx, b.env)
	if err != nil {
		return err
	}
	listing := "(no files yet)"
	if len(files) > 0 {
		listing = TruncateLines(strings.Join(files, "\n"), b.SnapshotLineLimit)
	}
	fmt.Fprintf(sb, "CURRENT PROJECT STRUCTURE:\n%s\n\n", listing)
	return nil
}

func (b *ContextBuilder) readOptional(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	data, err := os.ReadFile(b.notePath(path))
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	return text, text != ""
}

func (b *ContextBuilder) notePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.env.WorkingDirectory(), path)
}
