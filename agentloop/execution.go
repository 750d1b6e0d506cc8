package agentloop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// ErrOutsideProject is returned for paths that resolve outside the project
// directory.
var ErrOutsideProject = errors.New("path is outside the project directory")

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Output returns combined stdout and stderr.
func (r ExecResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// ExecutionEnvironment abstracts the project directory the directives act on.
type ExecutionEnvironment interface {
	// ResolvePath maps a directive path to an absolute path inside the
	// project, or fails with ErrOutsideProject.
	ResolvePath(path string) (string, error)

	// File operations. Paths are resolved with ResolvePath.
	ReadFile(path string) (string, error)
	WriteFile(path string, content string) (int, error)
	FileExists(path string) bool

	// WalkFiles lists every regular file below the project directory as a
	// slash-separated relative path, skipping .git.
	WalkFiles() ([]string, error)

	// Git runs git in the project directory. A non-zero exit is reported
	// through ExecResult.ExitCode, not as an error.
	Git(ctx context.Context, args ...string) (*ExecResult, error)

	// Lifecycle.
	Initialize() error

	// Metadata.
	WorkingDirectory() string
	Platform() string
	OSVersion() string
}

// sensitiveEnvPatterns are case-insensitive suffixes for environment variables
// that should not leak into child processes.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always included regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns the process environment minus credentials.
func filterEnvironment() []string {
	var filtered []string
	for _, env := range os.Environ() {
		name, _, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// LocalExecutionEnvironment acts on a directory of the local machine.
type LocalExecutionEnvironment struct {
	workingDir string
	platform   string
	osVersion  string
	gitTimeout time.Duration
}

// NewLocalExecutionEnvironment creates a local execution environment rooted
// at workingDir, or at the current directory when it is empty.
func NewLocalExecutionEnvironment(workingDir string) *LocalExecutionEnvironment {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	if abs, err := filepath.Abs(workingDir); err == nil {
		workingDir = abs
	}
	return &LocalExecutionEnvironment{
		workingDir: filepath.Clean(workingDir),
		platform:   runtime.GOOS,
		osVersion:  runtime.GOOS + "/" + runtime.GOARCH,
		gitTimeout: 2 * time.Minute,
	}
}

func (e *LocalExecutionEnvironment) Initialize() error {
	return os.MkdirAll(e.workingDir, 0o755)
}

func (e *LocalExecutionEnvironment) WorkingDirectory() string {
	return e.workingDir
}

func (e *LocalExecutionEnvironment) Platform() string {
	return e.platform
}

func (e *LocalExecutionEnvironment) OSVersion() string {
	return e.osVersion
}

// ResolvePath joins relative paths onto the working directory and rejects
// any path whose real location, after following symlinks, is outside it.
func (e *LocalExecutionEnvironment) ResolvePath(path string) (string, error) {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(e.workingDir, resolved)
	}
	resolved = filepath.Clean(resolved)

	if !within(e.workingDir, resolved) {
		return resolved, ErrOutsideProject
	}

	root, err := filepath.EvalSymlinks(e.workingDir)
	if err != nil {
		// A project that does not exist yet has no symlinks to follow.
		return resolved, nil
	}
	actual, err := realPath(resolved)
	if err != nil || !within(root, actual) {
		return resolved, ErrOutsideProject
	}
	return resolved, nil
}

// realPath follows symlinks in the deepest existing ancestor of path and
// appends the components that do not exist yet.
func realPath(path string) (string, error) {
	existing, rest := path, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return path, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	actual, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(actual, rest), nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *LocalExecutionEnvironment) ReadFile(path string) (string, error) {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *LocalExecutionEnvironment) WriteFile(path string, content string) (int, error) {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return 0, err
	}
	return len(content), nil
}

func (e *LocalExecutionEnvironment) FileExists(path string) bool {
	resolved, err := e.ResolvePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(resolved)
	return err == nil
}

func (e *LocalExecutionEnvironment) WalkFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(e.workingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are left out of the listing.
			if d != nil && d.IsDir() && path != e.workingDir {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(e.workingDir, path)
		if err != nil {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (e *LocalExecutionEnvironment) Git(ctx context.Context, args ...string) (*ExecResult, error) {
	if e.gitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.gitTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.workingDir
	cmd.Env = append(filterEnvironment(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			result.TimedOut = true
			result.ExitCode = -1
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
		}
	}
	return result, nil
}
