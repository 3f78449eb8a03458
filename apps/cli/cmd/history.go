package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/uispec/packages/core/config"
	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/history"
)

var (
	historyDBFlag      string
	historySuiteFlag   string
	historyLimitFlag   int
	historyFlakyFlag   bool
	historyRunFlag     string
	historyPruneFlag   int
	historyNoColorFlag bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs and flaky scenarios",
	Long: `Show runs recorded by 'uispec run --history'.

Examples:
  uispec history
  uispec history --suite burger --limit 5
  uispec history --run 3f0c...        # scenarios of one run
  uispec history --suite burger --flaky
  uispec history --prune 50`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("UISPEC_HISTORY", ""), "History database (env: UISPEC_HISTORY)")
	historyCmd.Flags().StringVar(&historySuiteFlag, "suite", "", "Only show runs of this suite")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyFlakyFlag, "flaky", false, "List scenarios that both passed and failed recently (needs --suite)")
	historyCmd.Flags().StringVar(&historyRunFlag, "run", "", "Show the scenarios of one run")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", 0, "Keep only the newest N runs of every suite")
	historyCmd.Flags().BoolVar(&historyNoColorFlag, "no-color", getEnvBool("UISPEC_NO_COLOR", false), "Disable colored output (env: UISPEC_NO_COLOR)")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	location := historyDBFlag
	if location == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		location = cfg.History
	}
	if location == "" {
		location = history.DefaultPath
	}

	if historyNoColorFlag {
		color.NoColor = true
	}

	store, err := history.Open(cmd.Context(), location)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	switch {
	case historyPruneFlag > 0:
		n, err := store.Prune(cmd.Context(), historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d runs\n", n)
		return nil

	case historyRunFlag != "":
		recs, err := store.Scenarios(cmd.Context(), historyRunFlag)
		if err != nil {
			return err
		}
		printScenarioRecords(out, recs)
		return nil

	case historyFlakyFlag:
		if historySuiteFlag == "" {
			return withExitCode(ExitUsageError, fmt.Errorf("--flaky needs --suite"))
		}
		flaky, err := store.Flaky(cmd.Context(), historySuiteFlag, historyLimitFlag)
		if err != nil {
			return err
		}
		printFlaky(out, historySuiteFlag, flaky)
		return nil
	}

	runs, err := store.Runs(cmd.Context(), historySuiteFlag, historyLimitFlag)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No recorded runs")
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, r := range runs {
		mark := green("✓")
		if !r.OK() {
			mark = red("✗")
		}
		fmt.Fprintf(w, "%s %s  %-20s %d passed, %d failed, %d skipped  %s\n",
			mark,
			r.StartedAt.Local().Format(time.DateTime),
			r.Suite,
			r.Passed, r.Failed, r.Skipped,
			dim(fmt.Sprintf("%s  %s", r.Duration.Round(time.Millisecond), r.ID)),
		)
	}
}

func printScenarioRecords(w io.Writer, recs []*history.ScenarioRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, "No scenarios recorded for this run")
		return
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, rec := range recs {
		switch rec.Status {
		case runner.StatusPassed:
			fmt.Fprintf(w, "%s %s (%s)\n", green("✓"), rec.Name, rec.Duration.Round(time.Millisecond))
		case runner.StatusSkipped:
			fmt.Fprintf(w, "%s %s\n", yellow("-"), rec.Name)
		default:
			fmt.Fprintf(w, "%s %s [%s]\n", red("✗"), rec.Name, rec.Kind)
			if rec.Error != "" {
				fmt.Fprintf(w, "    %s\n", rec.Error)
			}
		}
	}
}

func printFlaky(w io.Writer, suite string, flaky []history.Flaky) {
	if len(flaky) == 0 {
		fmt.Fprintf(w, "No flaky scenarios in %s\n", suite)
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	for _, f := range flaky {
		fmt.Fprintf(w, "%s %s  failed %d of %d runs (%.0f%%)\n", yellow("~"), f.Name, f.Failures, f.Runs, f.FailureRate()*100)
		if f.LastError != "" {
			fmt.Fprintf(w, "    last error: %s\n", f.LastError)
		}
	}
}
