package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/victorhg/ralph/agentloop"
	"github.com/victorhg/ralph/config"
	"github.com/victorhg/ralph/history"
	"github.com/victorhg/ralph/unifiedllm"
)

type rootOptions struct {
	provider      string
	model         string
	host          string
	maxIterations int
	tasks         string
	prompt        string
	dir           string
	historyDB     string
	logLevel      string
	quiet         bool
	envFile       string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ralph",
		Short: "Run an autonomous coding loop over a project directory",
		Long: `ralph repeatedly asks a language model for the next step of the tasks in
TASKS.md, applies the READ, FILE and COMMIT_MSG directives in its reply to the
project directory and feeds the results back, until the model prints
<promise>COMPLETE</promise> or the iteration budget runs out.

Settings come from the environment (and a .env file); flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(cmd, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.provider, "provider", "p", "", "LLM provider (ollama, openai, anthropic, openrouter, groq, or any gollm provider)")
	f.StringVarP(&opts.model, "model", "m", "", "model name (default: the provider's catalog default)")
	f.StringVar(&opts.host, "host", "", "provider base URL")
	f.IntVarP(&opts.maxIterations, "max-iterations", "n", 0, "iteration budget, 0 for unlimited (default 10)")
	f.StringVarP(&opts.tasks, "tasks", "t", "", "tasks file (default TASKS.md)")
	f.StringVar(&opts.prompt, "prompt", "", "system prompt file (default prompts/system.md)")
	f.StringVarP(&opts.dir, "dir", "C", "", "project directory (default the current directory)")
	f.StringVar(&opts.historyDB, "history-db", "", "record runs in this SQLite database")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default info)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "do not stream model output")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newModelsCmd(stdout))
	cmd.AddCommand(newHistoryCmd(opts, stdout))

	return cmd
}

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Provider = opts.provider
	}
	if flags.Changed("model") {
		cfg.Model = opts.model
	}
	if flags.Changed("host") {
		cfg.Host = opts.host
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = opts.maxIterations
	}
	if flags.Changed("tasks") {
		cfg.TasksFile = opts.tasks
	}
	if flags.Changed("prompt") {
		cfg.PromptFile = opts.prompt
	}
	if flags.Changed("dir") {
		cfg.WorkDir = opts.dir
	}
	if flags.Changed("history-db") {
		cfg.HistoryDB = opts.historyDB
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func runLoop(cmd *cobra.Command, opts *rootOptions, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	log := logrus.NewEntry(newLogger(cfg.LogLevel, stderr))

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("resolve project directory: %w", err)}
	}
	if info, err := os.Stat(workDir); err != nil || !info.IsDir() {
		return &exitError{code: exitFailure, err: fmt.Errorf("project directory %s does not exist", workDir)}
	}

	tasksPath := cfg.Resolve(cfg.TasksFile)
	if _, err := os.Stat(tasksPath); err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("tasks file %s not found", tasksPath)}
	}

	promptPath := cfg.Resolve(cfg.PromptFile)
	systemPrompt, fromFile, err := agentloop.LoadSystemPrompt(promptPath)
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if fromFile {
		log.WithField("path", promptPath).Debug("loaded system prompt")
	} else {
		log.WithField("path", promptPath).Debug("system prompt file not found, using built-in prompt")
	}

	adapter, err := unifiedllm.NewAdapter(cfg.AdapterConfig(log))
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if c, ok := adapter.(unifiedllm.Closer); ok {
		defer c.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionCfg := cfg.SessionConfig(systemPrompt)
	session := agentloop.NewSession(adapter, agentloop.NewLocalExecutionEnvironment(workDir), &sessionCfg)
	session.SetLogger(log)

	if cfg.HistoryDB != "" {
		store, err := history.Open(ctx, cfg.HistoryDB)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		defer store.Close()
		session.SetRecorder(store)
	}

	r := newRenderer(stdout, opts.quiet)
	session.On(r.handle)

	result, err := session.Run(ctx)
	if result != nil {
		r.summary(result)
	}
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	if result.Outcome == agentloop.OutcomeInterrupted {
		return &exitError{code: exitInterrupted, err: errInterrupted}
	}
	return nil
}
