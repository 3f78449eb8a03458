package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/browser"
	"github.com/abdul-hamid-achik/uispec/packages/core/config"
	"github.com/abdul-hamid-achik/uispec/packages/core/env"
	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/history"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/notify"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>",
	Short: "Run browser scenarios from suite files",
	Long: `Run the scenarios defined in .yaml suite files in Chrome, answering the
application's API calls from the suite's fixtures.

Examples:
  uispec run examples/burger
  uispec run burger.yaml --base-url http://localhost:3000
  uispec run ./e2e/ --tags smoke --parallel
  uispec run burger.yaml --name "closes*" -v
  uispec run burger.yaml --output console,junit --output-dir reports
  uispec run burger.yaml --unmocked passthrough --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond

	// flakyWindow is how many recent runs flaky detection looks at
	flakyWindow = 20
)

var (
	envFlag             string
	envFileFlag         string
	configFlag          string
	baseURLFlag         string
	varFlags            []string
	nameFlag            string
	tagsFlag            string
	verboseFlag         int // 0=off, 1=-v, 2=-vv
	quietFlag           bool
	noColorFlag         bool
	outputFlag          string
	outputFileFlag      string
	outputDirFlag       string
	bailFlag            bool
	timeoutFlag         string
	scenarioTimeoutFlag string
	pollIntervalFlag    string
	unmockedFlag        string
	scopeFlag           string
	dryRunFlag          bool
	parallelFlag        bool
	concurrencyFlag     int
	watchFlag           bool

	// Browser flags
	headlessFlag   bool
	noSandboxFlag  bool
	browserBinFlag string
	controlURLFlag string
	slowMotionFlag string

	// History flags
	historyFlag   string
	noHistoryFlag bool

	// Notification flags
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("UISPEC_ENV", ""), "Environment from the config file to use (env: UISPEC_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("UISPEC_ENV_FILE", ""), "Path to .env file for variable interpolation (env: UISPEC_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("UISPEC_CONFIG", ""), "Path to config file (env: UISPEC_CONFIG)")
	runCmd.Flags().StringVar(&baseURLFlag, "base-url", getEnvString("UISPEC_BASE_URL", ""), "Application URL, overrides the suite's baseUrl (env: UISPEC_BASE_URL)")
	runCmd.Flags().StringArrayVar(&varFlags, "var", nil, "Set a variable (name=value), repeatable")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only scenarios matching name pattern")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("UISPEC_TAGS", ""), "Run only scenarios with specified tags (comma-separated) (env: UISPEC_TAGS)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v for steps and calls, -vv for debug logs)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("UISPEC_QUIET", false), "Suppress console output (env: UISPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("UISPEC_NO_COLOR", false), "Disable colored output (env: UISPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("UISPEC_OUTPUT", ""), "Output formats, comma-separated: console, json, junit, tap (env: UISPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("UISPEC_OUTPUT_FILE", ""), "Write a single output format to file (env: UISPEC_OUTPUT_FILE)")
	runCmd.Flags().StringVar(&outputDirFlag, "output-dir", getEnvString("UISPEC_OUTPUT_DIR", ""), "Directory for report files (env: UISPEC_OUTPUT_DIR)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("UISPEC_BAIL", false), "Stop on first failure (env: UISPEC_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("UISPEC_TIMEOUT", ""), "Bound on each wait, e.g. 4s (env: UISPEC_TIMEOUT)")
	runCmd.Flags().StringVar(&scenarioTimeoutFlag, "scenario-timeout", getEnvString("UISPEC_SCENARIO_TIMEOUT", ""), "Bound on a whole scenario, e.g. 1m (env: UISPEC_SCENARIO_TIMEOUT)")
	runCmd.Flags().StringVar(&pollIntervalFlag, "poll-interval", getEnvString("UISPEC_POLL_INTERVAL", ""), "Delay between DOM polls, e.g. 50ms (env: UISPEC_POLL_INTERVAL)")
	runCmd.Flags().StringVar(&unmockedFlag, "unmocked", getEnvString("UISPEC_UNMOCKED", ""), "Unmocked request mode: fail or passthrough (env: UISPEC_UNMOCKED)")
	runCmd.Flags().StringVar(&scopeFlag, "scope", getEnvString("UISPEC_SCOPE", ""), "Path prefix guarded by fail mode (env: UISPEC_SCOPE)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without a browser")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("UISPEC_PARALLEL", false), "Run scenarios in parallel, each in its own browser context (env: UISPEC_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("UISPEC_CONCURRENCY", 0), "Number of concurrent scenarios when running in parallel (env: UISPEC_CONCURRENCY)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch suites and fixtures for changes and re-run")

	// Browser flags
	runCmd.Flags().BoolVar(&headlessFlag, "headless", getEnvBool("UISPEC_HEADLESS", true), "Run Chrome without a window (env: UISPEC_HEADLESS)")
	runCmd.Flags().BoolVar(&noSandboxFlag, "no-sandbox", getEnvBool("UISPEC_NO_SANDBOX", true), "Disable the Chrome sandbox (env: UISPEC_NO_SANDBOX)")
	runCmd.Flags().StringVar(&browserBinFlag, "browser", getEnvString("UISPEC_BROWSER", ""), "Chrome binary (env: UISPEC_BROWSER)")
	runCmd.Flags().StringVar(&controlURLFlag, "control-url", getEnvString("UISPEC_CONTROL_URL", ""), "Connect to a running Chrome DevTools endpoint (env: UISPEC_CONTROL_URL)")
	runCmd.Flags().StringVar(&slowMotionFlag, "slow-motion", getEnvString("UISPEC_SLOW_MOTION", ""), "Delay every input action, e.g. 250ms (env: UISPEC_SLOW_MOTION)")

	// History flags
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("UISPEC_HISTORY", ""), "Record runs in this SQLite file (env: UISPEC_HISTORY)")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", false, "Do not record this run")

	// Notification flags
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("UISPEC_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: UISPEC_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
}

// runOptions is the effective configuration of one run command: the config
// file with flags and environment layered on top.
type runOptions struct {
	cfg       *config.Config
	runner    *runner.Config
	browser   browser.Config
	formats   []string
	variables map[string]any
	history   string
	logger    *slog.Logger
}

func runCommand(cmd *cobra.Command, args []string) error {
	opts, err := loadRunOptions(cmd)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dryRunFlag {
		return dryRun(cmd.OutOrStdout(), files, opts)
	}

	b, err := browser.Launch(ctx, opts.browser, opts.logger)
	if err != nil {
		return withExitCode(ExitBrowserError, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			opts.logger.Warn("closing browser", "error", err)
		}
	}()

	failed, err := runOnce(ctx, cmd, files, opts, b)
	if !watchFlag {
		if err != nil {
			return err
		}
		if failed {
			return withExitCode(ExitTestFailure, nil)
		}
		return nil
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}

	return watch(ctx, cmd, args, files, func() {
		if _, err := runOnce(ctx, cmd, files, opts, b); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	})
}

// runOnce runs every suite file, reports, records history and notifies.
// It reports whether any scenario failed.
func runOnce(ctx context.Context, cmd *cobra.Command, files []string, opts *runOptions, b *browser.Browser) (bool, error) {
	reporters, closeReporters, err := openReporters(opts.formats, cmd.OutOrStdout(), reporterOptions{
		outputFile: outputFileFlag,
		outputDir:  opts.cfg.OutputDir,
		verbose:    verboseFlag > 0 || opts.cfg.GetVerbose(),
		noColor:    noColorFlag || opts.cfg.GetNoColor(),
		quiet:      quietFlag,
	})
	if err != nil {
		return false, withExitCode(ExitConfigError, err)
	}
	defer closeReporters()

	reporters.FormatHeader(version)

	var hist *history.Store
	if opts.history != "" {
		hist, err = history.Open(ctx, opts.history)
		if err != nil {
			opts.logger.Warn("history disabled", "error", err)
		} else {
			defer hist.Close()
		}
	}
	lastOK := previousState(ctx, hist, files, opts.logger)

	start := time.Now()
	var (
		results []*runner.RunResult
		setup   error
	)
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		suite, err := scenario.Load(file)
		if err != nil {
			reporters.FormatError(err)
			setup = withExitCode(ExitParseError, err)
			if opts.runner.Bail {
				break
			}
			continue
		}

		r := runner.NewRunner(pageLauncher(b, suiteOrigin(suite, opts)), opts.runner)
		result, err := r.RunSuite(ctx, suite)
		if err != nil {
			err = fmt.Errorf("%s: %w", file, err)
			reporters.FormatError(err)
			if setup == nil {
				setup = withExitCode(ExitConfigError, err)
			}
			if opts.runner.Bail {
				break
			}
			continue
		}

		reporters.FormatResult(result)
		results = append(results, result)
		if hist != nil {
			if _, err := hist.Record(ctx, result); err != nil {
				opts.logger.Warn("recording run", "suite", result.Suite, "error", err)
			}
		}
		if opts.runner.Bail && !result.OK() {
			break
		}
	}
	duration := time.Since(start)

	if err := reporters.Flush(duration); err != nil {
		return false, fmt.Errorf("error writing output: %w", err)
	}

	summary := notify.Summarize(results, duration)
	summary.Environment = envFlag
	summary.Flaky = flakyScenarios(ctx, hist, results, opts.logger)
	if err := sendNotifications(ctx, opts, summary, lastOK); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to send notification: %v\n", err)
	}

	return !summary.OK(), setup
}

func loadRunOptions(cmd *cobra.Command) (*runOptions, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	cfg := fileConfig.Merge(flagConfig(cmd))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verboseFlag > 1 {
		level = slog.LevelDebug
	} else if verboseFlag == 1 {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	variables, err := loadVariables(cfg)
	if err != nil {
		return nil, err
	}

	opts := &runOptions{
		cfg:       cfg,
		variables: variables,
		logger:    logger,
		formats:   cfg.Reporters,
	}
	if outputFlag != "" {
		opts.formats = splitList(outputFlag)
	}

	rc := &runner.Config{
		BaseURL:         cfg.BaseURL,
		Variables:       variables,
		Timeout:         cfg.TimeoutDuration(),
		ScenarioTimeout: cfg.ScenarioTimeoutDuration(),
		PollInterval:    cfg.PollIntervalDuration(),
		Scope:           cfg.Scope,
		Bail:            cfg.GetBail(),
		NameFilter:      nameFlag,
		TagsFilter:      splitList(tagsFlag),
		Parallel:        cfg.GetParallel(),
		Concurrency:     cfg.Concurrency,
		Logger:          logger,
	}
	if cfg.Unmocked != "" {
		if rc.Unmocked, err = intercept.ParseMode(cfg.Unmocked); err != nil {
			return nil, err
		}
	}
	opts.runner = rc

	opts.browser = browser.Config{
		Headless:   cfg.GetHeadless(),
		NoSandbox:  cfg.GetNoSandbox(),
		Bin:        cfg.Browser,
		ControlURL: cfg.ControlURL,
		SlowMotion: time.Duration(cfg.SlowMotion) * time.Millisecond,
		Origin:     cfg.BaseURL,
	}

	switch {
	case noHistoryFlag:
	case historyFlag != "":
		opts.history = historyFlag
	default:
		opts.history = cfg.History
	}

	return opts, nil
}

// flagConfig turns the flags the user set, on the command line or through
// the environment, into a config overlay.
func flagConfig(cmd *cobra.Command) *config.Config {
	set := func(name, envKey string) bool {
		if cmd.Flags().Changed(name) {
			return true
		}
		_, ok := os.LookupEnv(envKey)
		return envKey != "" && ok
	}

	c := &config.Config{}
	if set("base-url", "UISPEC_BASE_URL") {
		c.BaseURL = baseURLFlag
	}
	if set("env", "UISPEC_ENV") {
		c.DefaultEnvironment = envFlag
	}
	if d, ok := flagMillis(timeoutFlag); ok && set("timeout", "UISPEC_TIMEOUT") {
		c.Timeout = d
	}
	if d, ok := flagMillis(scenarioTimeoutFlag); ok && set("scenario-timeout", "UISPEC_SCENARIO_TIMEOUT") {
		c.ScenarioTimeout = d
	}
	if d, ok := flagMillis(pollIntervalFlag); ok && set("poll-interval", "UISPEC_POLL_INTERVAL") {
		c.PollInterval = d
	}
	if d, ok := flagMillis(slowMotionFlag); ok && set("slow-motion", "UISPEC_SLOW_MOTION") {
		c.SlowMotion = d
	}
	if set("unmocked", "UISPEC_UNMOCKED") {
		c.Unmocked = unmockedFlag
	}
	if set("scope", "UISPEC_SCOPE") {
		c.Scope = config.StringPtr(scopeFlag)
	}
	if set("output-dir", "UISPEC_OUTPUT_DIR") {
		c.OutputDir = outputDirFlag
	}
	if set("browser", "UISPEC_BROWSER") {
		c.Browser = browserBinFlag
	}
	if set("control-url", "UISPEC_CONTROL_URL") {
		c.ControlURL = controlURLFlag
	}
	if set("concurrency", "UISPEC_CONCURRENCY") && concurrencyFlag > 0 {
		c.Concurrency = concurrencyFlag
	}
	if set("headless", "UISPEC_HEADLESS") {
		c.Headless = config.BoolPtr(headlessFlag)
	}
	if set("no-sandbox", "UISPEC_NO_SANDBOX") {
		c.NoSandbox = config.BoolPtr(noSandboxFlag)
	}
	if set("parallel", "UISPEC_PARALLEL") {
		c.Parallel = config.BoolPtr(parallelFlag)
	}
	if set("bail", "UISPEC_BAIL") {
		c.Bail = config.BoolPtr(bailFlag)
	}
	if set("no-color", "UISPEC_NO_COLOR") {
		c.NoColor = config.BoolPtr(noColorFlag)
	}
	if set("notify-on", "UISPEC_NOTIFY_ON") || set("slack-webhook", "SLACK_WEBHOOK") || set("slack-channel", "SLACK_CHANNEL") {
		c.Notify = &config.NotifyConfig{
			On:           notifyOnFlag,
			SlackWebhook: slackWebhookFlag,
			SlackChannel: slackChannelFlag,
		}
	}
	return c
}

// flagMillis parses a duration flag into config milliseconds.
func flagMillis(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, false
	}
	return int(d / time.Millisecond), true
}

// loadVariables merges, later winning: config variables, the selected
// environment, the .env file, UISPEC_VAR_* process variables and --var.
func loadVariables(cfg *config.Config) (map[string]any, error) {
	var dotenv map[string]any
	if envFileFlag != "" {
		vars, err := env.LoadDotEnv(envFileFlag)
		if err != nil {
			return nil, err
		}
		dotenv = env.StringVariables(vars)
	}

	cli := make(map[string]any, len(varFlags))
	for _, v := range varFlags {
		name, value, ok := strings.Cut(v, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid --var %q (use name=value)", v)
		}
		cli[strings.TrimSpace(name)] = value
	}

	return env.MergeVariables(
		cfg.Variables,
		env.Select(cfg.Environments, cfg.DefaultEnvironment),
		dotenv,
		env.LoadSystemEnv(env.Prefix),
		cli,
	), nil
}

// suiteOrigin is the application origin session cookies are scoped to.
func suiteOrigin(suite *scenario.Suite, opts *runOptions) string {
	if opts.runner.BaseURL != "" {
		return opts.runner.BaseURL
	}
	res := env.NewResolver()
	res.SetVariables(opts.variables)
	return res.Resolve(suite.BaseURL)
}

func dryRun(w io.Writer, files []string, opts *runOptions) error {
	filter := scenario.Filter{Name: opts.runner.NameFilter, Tags: opts.runner.TagsFilter}
	var errs []error
	for _, file := range files {
		suite, err := scenario.Load(file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Would run: %s (%s)\n", file, suite.Name)
		for _, sc := range suite.Select(filter) {
			if sc.Skip != "" {
				fmt.Fprintf(w, "  - %s (skip: %s)\n", sc.Name, sc.Skip)
				continue
			}
			fmt.Fprintf(w, "  - %s\n", sc.Name)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return withExitCode(ExitParseError, err)
	}
	return nil
}

// previousState reports whether the last recorded run of every suite
// passed. Suites without history count as passing.
func previousState(ctx context.Context, hist *history.Store, files []string, logger *slog.Logger) bool {
	if hist == nil {
		return true
	}
	for _, file := range files {
		suite, err := scenario.Load(file)
		if err != nil {
			continue
		}
		run, err := hist.LastRun(ctx, suite.Name)
		if errors.Is(err, history.ErrNoRuns) {
			continue
		}
		if err != nil {
			logger.Warn("reading history", "suite", suite.Name, "error", err)
			continue
		}
		if !run.OK() {
			return false
		}
	}
	return true
}

func flakyScenarios(ctx context.Context, hist *history.Store, results []*runner.RunResult, logger *slog.Logger) []string {
	if hist == nil {
		return nil
	}
	var out []string
	for _, r := range results {
		flaky, err := hist.Flaky(ctx, r.Suite, flakyWindow)
		if err != nil {
			logger.Warn("flaky detection", "suite", r.Suite, "error", err)
			continue
		}
		for _, f := range flaky {
			out = append(out, fmt.Sprintf("%s/%s", r.Suite, f.Name))
		}
	}
	return out
}

func sendNotifications(ctx context.Context, opts *runOptions, summary *notify.RunSummary, lastOK bool) error {
	nc := opts.cfg.Notify
	if nc == nil || nc.SlackWebhook == "" {
		return nil
	}
	on, err := notify.ParseNotifyOn(nc.On)
	if err != nil {
		return err
	}

	var slackOpts []notify.SlackOption
	if nc.SlackChannel != "" {
		slackOpts = append(slackOpts, notify.WithSlackChannel(nc.SlackChannel))
	}
	m := notify.NewManager(on, notify.NewSlackNotifier(nc.SlackWebhook, slackOpts...))
	m.SetLastState(lastOK)

	sent, err := m.Notify(ctx, summary)
	if sent && err == nil {
		opts.logger.Info("notification sent", "policy", string(on), "recovery", summary.IsRecovery)
	}
	return err
}
