package agentloop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuildInitial(t *testing.T) {
	env := newTestEnv(t)
	dir := env.WorkingDirectory()
	writeFile(t, dir, "TASKS.md", "Build it\n")
	writeFile(t, dir, "src/main.go", "package main\n")

	b := NewContextBuilder(env, "TASKS.md")
	text, err := b.BuildInitial(context.Background())
	require.NoError(t, err)

	want := "TASKS_FILE:\nBuild it\n\n" +
		"CURRENT PROJECT STRUCTURE:\nTASKS.md\nsrc/main.go\n\n" +
		"Please proceed with the next step."
	assert.Equal(t, want, text)
}

func TestBuildInitialWithNotes(t *testing.T) {
	env := newTestEnv(t)
	dir := env.WorkingDirectory()
	writeFile(t, dir, "TASKS.md", "Build it")
	writeFile(t, dir, "progress.txt", "step 1 done\n")
	writeFile(t, dir, "HEURISTICS.md", "  \n")

	text, err := NewContextBuilder(env, "TASKS.md").BuildInitial(context.Background())
	require.NoError(t, err)

	assert.Contains(t, text, "PROGRESS SO FAR:\nstep 1 done\n\n")
	assert.NotContains(t, text, "HEURISTICS:")
	assert.Less(t, strings.Index(text, "TASKS_FILE:"), strings.Index(text, "PROGRESS SO FAR:"))
	assert.Less(t, strings.Index(text, "PROGRESS SO FAR:"), strings.Index(text, "CURRENT PROJECT STRUCTURE:"))
}

func TestBuildInitialTasksOutsideProject(t *testing.T) {
	env := newTestEnv(t)
	tasks := filepath.Join(t.TempDir(), "tasks.md")
	require.NoError(t, os.WriteFile(tasks, []byte("do things"), 0o644))

	text, err := NewContextBuilder(env, tasks).BuildInitial(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "CURRENT PROJECT STRUCTURE:\n(no files yet)\n\n")
}

func TestBuildInitialMissingTasks(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewContextBuilder(env, "TASKS.md").BuildInitial(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildFollowup(t *testing.T) {
	env := newTestEnv(t)
	writeFile(t, env.WorkingDirectory(), "a.txt", "x")

	text, err := NewContextBuilder(env, "TASKS.md").BuildFollowup(context.Background(), "RESULTS OF YOUR PREVIOUS ACTIONS:\n[FILE a.txt] ok")
	require.NoError(t, err)
	assert.Equal(t, "RESULTS OF YOUR PREVIOUS ACTIONS:\n[FILE a.txt] ok\n\n"+
		"CURRENT PROJECT STRUCTURE:\na.txt\n\nPlease proceed with the next step.", text)
}

func TestSnapshotLineLimit(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 20; i++ {
		writeFile(t, env.WorkingDirectory(), fmt.Sprintf("f%02d.txt", i), "x")
	}

	b := NewContextBuilder(env, "TASKS.md")
	b.SnapshotLineLimit = 4
	text, err := b.BuildFollowup(context.Background(), "obs")
	require.NoError(t, err)
	assert.Contains(t, text, "f00.txt\nf01.txt\n[... 16 lines omitted ...]\nf18.txt\nf19.txt")
}

func TestProjectSnapshotWalkSkipsGitDir(t *testing.T) {
	env := newTestEnv(t)
	dir := env.WorkingDirectory()
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, dir, "b/c.txt", "x")
	writeFile(t, dir, "a.txt", "x")

	files, err := env.WalkFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b/c.txt"}, files)
}

func TestProjectSnapshotRespectsGitignore(t *testing.T) {
	requireGit(t)
	env := newTestEnv(t)
	dir := env.WorkingDirectory()
	gitOutput(t, dir, "init")
	writeFile(t, dir, ".gitignore", "build/\n*.log\n")
	writeFile(t, dir, "main.go", "package main\n")
	writeFile(t, dir, "build/out.bin", "bin")
	writeFile(t, dir, "debug.log", "log")

	files, err := ProjectSnapshot(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, []string{".gitignore", "main.go"}, files)
}

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	prompt, fromFile, err := LoadSystemPrompt(filepath.Join(dir, "missing.md"))
	require.NoError(t, err)
	assert.False(t, fromFile)
	assert.Equal(t, DefaultSystemPrompt, prompt)

	custom := filepath.Join(dir, "prompt.md")
	require.NoError(t, os.WriteFile(custom, []byte("\nBe brief.\n"), 0o644))
	prompt, fromFile, err = LoadSystemPrompt(custom)
	require.NoError(t, err)
	assert.True(t, fromFile)
	assert.Equal(t, "Be brief.", prompt)

	_, _, err = LoadSystemPrompt(dir)
	assert.Error(t, err)
}

func TestBuildSystemPrompt(t *testing.T) {
	env := newTestEnv(t)
	prompt := BuildSystemPrompt(context.Background(), "BASE", env, "llama3")

	assert.True(t, strings.HasPrefix(prompt, "BASE\n\n<environment>\n"))
	assert.Contains(t, prompt, "Working directory: "+env.WorkingDirectory())
	assert.Contains(t, prompt, "Model: llama3")
	assert.True(t, strings.HasSuffix(prompt, "</environment>"))
}
