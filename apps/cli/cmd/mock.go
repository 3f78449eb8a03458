package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/mock"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
)

var (
	mockPortFlag    int
	mockDelayFlag   string
	mockVerboseFlag bool
)

var mockCmd = &cobra.Command{
	Use:   "mock <file|directory>",
	Short: "Serve a suite's intercepts over HTTP",
	Long: `Start an HTTP server that answers the requests a suite intercepts from
the same fixtures, so the front-end can be developed without a backend.

Requests no intercept answers get 501. The journal of received requests
is available at /__admin/requests and cleared with POST /__admin/reset.

Examples:
  uispec mock burger.yaml
  uispec mock burger.yaml --port 3001
  uispec mock burger.yaml --delay 300ms --verbose`,
	Args: cobra.MinimumNArgs(1),
	RunE: mockCommand,
}

func init() {
	mockCmd.Flags().IntVarP(&mockPortFlag, "port", "p", getEnvInt("UISPEC_MOCK_PORT", 3001), "Port to run the mock server on (env: UISPEC_MOCK_PORT)")
	mockCmd.Flags().StringVarP(&mockDelayFlag, "delay", "d", "0", "Delay to add to all responses (e.g., 100ms, 1s)")
	mockCmd.Flags().BoolVarP(&mockVerboseFlag, "verbose", "v", false, "Enable debug logging")
}

func mockCommand(cmd *cobra.Command, args []string) error {
	var delay time.Duration
	if mockDelayFlag != "0" {
		var err error
		delay, err = time.ParseDuration(mockDelayFlag)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid delay value %q: %w", mockDelayFlag, err))
		}
	}

	files, err := collectFiles(args)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withExitCode(ExitUsageError, fmt.Errorf("no suite files found"))
	}

	level := slog.LevelInfo
	if mockVerboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	set, err := mockRuleSet(files, logger)
	if err != nil {
		return err
	}
	if len(set.Rules()) == 0 {
		return withExitCode(ExitConfigError, fmt.Errorf("no intercepts found in the provided files"))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Loaded %d routes from %d files\n", len(set.Rules()), len(files))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := mock.NewServer(set,
		mock.WithPort(mockPortFlag),
		mock.WithDelay(delay),
		mock.WithLogger(logger),
	)
	return server.Start(ctx)
}

// mockRuleSet compiles the intercepts of every suite into one rule set.
// Later files win over earlier ones for overlapping routes.
func mockRuleSet(files []string, logger *slog.Logger) (*intercept.RuleSet, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := runner.NewRunner(nil, &runner.Config{Logger: logger})
	set := intercept.NewRuleSet(intercept.ModeFail, intercept.WithLogger(logger))
	for _, file := range files {
		suite, err := scenario.Load(file)
		if err != nil {
			return nil, withExitCode(ExitParseError, err)
		}
		s, err := r.RuleSet(suite)
		if err != nil {
			return nil, withExitCode(ExitConfigError, fmt.Errorf("%s: %w", file, err))
		}
		for _, rule := range s.Rules() {
			set.Add(rule)
		}
	}
	return set, nil
}
